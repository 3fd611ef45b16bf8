package nomination

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
)

const ServiceName = "fantamarket.nomination.v1.NominationService"

const (
	procNominate         = "/" + ServiceName + "/Nominate"
	procConfirm          = "/" + ServiceName + "/ConfirmNomination"
	procMarkReady        = "/" + ServiceName + "/MarkReady"
	procCancelNomination = "/" + ServiceName + "/CancelNomination"
)

// NominationApp defines what the service layer needs from the nomination application
type NominationApp interface {
	SetPending(ctx context.Context, sessionID, memberID, playerID uuid.UUID, openingPrice int) (models.MarketSession, error)
	Confirm(ctx context.Context, sessionID, memberID uuid.UUID) (Result, error)
	MarkReady(ctx context.Context, sessionID, memberID uuid.UUID) (Result, error)
	Cancel(ctx context.Context, sessionID, memberID uuid.UUID, reason string) (models.MarketSession, error)
}

type NominateRequest struct {
	SessionID    string `json:"session_id"`
	PlayerID     string `json:"player_id"`
	OpeningPrice int    `json:"opening_price,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

type SessionResponse struct {
	Session models.MarketSession `json:"session"`
}

type ResultResponse struct {
	Session models.MarketSession `json:"session"`
	// Auction is set when the call opened the auction.
	Auction *models.Auction `json:"auction,omitempty"`
}

type Service struct {
	app NominationApp
}

func NewService(app NominationApp) *Service {
	return &Service{app: app}
}

func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(procNominate, connect.NewUnaryHandler(procNominate, s.Nominate, opts...))
	mux.Handle(procConfirm, connect.NewUnaryHandler(procConfirm, s.ConfirmNomination, opts...))
	mux.Handle(procMarkReady, connect.NewUnaryHandler(procMarkReady, s.MarkReady, opts...))
	mux.Handle(procCancelNomination, connect.NewUnaryHandler(procCancelNomination, s.CancelNomination, opts...))
	return "/" + ServiceName + "/", mux
}

func sessionCall(req connect.AnyRequest, raw string) (caller, sessionID uuid.UUID, err error) {
	if caller, err = rpc.Caller(req.Header()); err != nil {
		return
	}
	sessionID, err = rpc.ParseID("session_id", raw)
	return
}

func (s *Service) Nominate(ctx context.Context, req *connect.Request[NominateRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := sessionCall(req, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	playerID, err := rpc.ParseID("player_id", req.Msg.PlayerID)
	if err != nil {
		return nil, err
	}
	session, err := s.app.SetPending(ctx, sessionID, caller, playerID, req.Msg.OpeningPrice)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) ConfirmNomination(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ResultResponse], error) {
	caller, sessionID, err := sessionCall(req, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.app.Confirm(ctx, sessionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&ResultResponse{Session: res.Session, Auction: res.Auction}), nil
}

func (s *Service) MarkReady(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[ResultResponse], error) {
	caller, sessionID, err := sessionCall(req, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.app.MarkReady(ctx, sessionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&ResultResponse{Session: res.Session, Auction: res.Auction}), nil
}

func (s *Service) CancelNomination(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := sessionCall(req, req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.app.Cancel(ctx, sessionID, caller, req.Msg.Reason)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}
