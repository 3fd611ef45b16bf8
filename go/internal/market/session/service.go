package session

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
)

const ServiceName = "fantamarket.session.v1.SessionService"

const (
	procCreateSession  = "/" + ServiceName + "/CreateSession"
	procGetSession     = "/" + ServiceName + "/GetSession"
	procListSessions   = "/" + ServiceName + "/ListSessions"
	procSetPhase       = "/" + ServiceName + "/SetPhase"
	procSetTurnOrder   = "/" + ServiceName + "/SetTurnOrder"
	procCloseSession   = "/" + ServiceName + "/CloseSession"
	procCancelSession  = "/" + ServiceName + "/CancelSession"
	procHeartbeat      = "/" + ServiceName + "/Heartbeat"
	procGetMarketState = "/" + ServiceName + "/GetMarketState"
)

// SessionApp defines what the service layer needs from the session application
type SessionApp interface {
	Create(ctx context.Context, req CreateRequest) (models.MarketSession, error)
	Get(ctx context.Context, sessionID, memberID uuid.UUID) (models.MarketSession, error)
	List(ctx context.Context, leagueID, memberID uuid.UUID) ([]models.MarketSession, error)
	SetPhase(ctx context.Context, sessionID, adminID uuid.UUID, phase models.SessionPhase) (models.MarketSession, error)
	SetTurnOrder(ctx context.Context, sessionID, adminID uuid.UUID, order []uuid.UUID) (models.MarketSession, error)
	Close(ctx context.Context, sessionID, adminID uuid.UUID, reason string) (models.MarketSession, error)
	Cancel(ctx context.Context, sessionID, adminID uuid.UUID, reason string) (models.MarketSession, error)
	Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID) error
	GetMarketState(ctx context.Context, sessionID, memberID uuid.UUID) (MarketState, error)
}

type CreateSessionRequest struct {
	LeagueID     string             `json:"league_id"`
	Type         models.SessionType `json:"type"`
	TimerSeconds int                `json:"timer_seconds,omitempty"`
	InPersonMode bool               `json:"in_person_mode,omitempty"`
	TurnOrder    []string           `json:"turn_order,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

type SessionResponse struct {
	Session models.MarketSession `json:"session"`
}

type ListSessionsRequest struct {
	LeagueID string `json:"league_id"`
}

type ListSessionsResponse struct {
	Sessions []models.MarketSession `json:"sessions"`
}

type SetPhaseRequest struct {
	SessionID string              `json:"session_id"`
	Phase     models.SessionPhase `json:"phase"`
}

type SetTurnOrderRequest struct {
	SessionID string   `json:"session_id"`
	TurnOrder []string `json:"turn_order"`
}

type HeartbeatResponse struct{}

type MarketStateResponse struct {
	State MarketState `json:"state"`
}

type Service struct {
	app SessionApp
}

func NewService(app SessionApp) *Service {
	return &Service{app: app}
}

func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(procCreateSession, connect.NewUnaryHandler(procCreateSession, s.CreateSession, opts...))
	mux.Handle(procGetSession, connect.NewUnaryHandler(procGetSession, s.GetSession, opts...))
	mux.Handle(procListSessions, connect.NewUnaryHandler(procListSessions, s.ListSessions, opts...))
	mux.Handle(procSetPhase, connect.NewUnaryHandler(procSetPhase, s.SetPhase, opts...))
	mux.Handle(procSetTurnOrder, connect.NewUnaryHandler(procSetTurnOrder, s.SetTurnOrder, opts...))
	mux.Handle(procCloseSession, connect.NewUnaryHandler(procCloseSession, s.CloseSession, opts...))
	mux.Handle(procCancelSession, connect.NewUnaryHandler(procCancelSession, s.CancelSession, opts...))
	mux.Handle(procHeartbeat, connect.NewUnaryHandler(procHeartbeat, s.Heartbeat, opts...))
	mux.Handle(procGetMarketState, connect.NewUnaryHandler(procGetMarketState, s.GetMarketState, opts...))
	return "/" + ServiceName + "/", mux
}

func call(req connect.AnyRequest, field, raw string) (caller, id uuid.UUID, err error) {
	if caller, err = rpc.Caller(req.Header()); err != nil {
		return
	}
	id, err = rpc.ParseID(field, raw)
	return
}

func parseOrder(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	order := make([]uuid.UUID, len(raw))
	for i, r := range raw {
		id, err := rpc.ParseID("turn_order", r)
		if err != nil {
			return nil, err
		}
		order[i] = id
	}
	return order, nil
}

func (s *Service) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[SessionResponse], error) {
	caller, leagueID, err := call(req, "league_id", req.Msg.LeagueID)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(req.Msg.TurnOrder)
	if err != nil {
		return nil, err
	}
	session, err := s.app.Create(ctx, CreateRequest{
		LeagueID:     leagueID,
		AdminID:      caller,
		Type:         req.Msg.Type,
		TimerSeconds: req.Msg.TimerSeconds,
		InPersonMode: req.Msg.InPersonMode,
		TurnOrder:    order,
	})
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) GetSession(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.app.Get(ctx, sessionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) ListSessions(ctx context.Context, req *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error) {
	caller, leagueID, err := call(req, "league_id", req.Msg.LeagueID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.app.List(ctx, leagueID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&ListSessionsResponse{Sessions: sessions}), nil
}

func (s *Service) SetPhase(ctx context.Context, req *connect.Request[SetPhaseRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.app.SetPhase(ctx, sessionID, caller, req.Msg.Phase)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) SetTurnOrder(ctx context.Context, req *connect.Request[SetTurnOrderRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(req.Msg.TurnOrder)
	if err != nil {
		return nil, err
	}
	session, err := s.app.SetTurnOrder(ctx, sessionID, caller, order)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) CloseSession(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.app.Close(ctx, sessionID, caller, req.Msg.Reason)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) CancelSession(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[SessionResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.app.Cancel(ctx, sessionID, caller, req.Msg.Reason)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func (s *Service) Heartbeat(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[HeartbeatResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.app.Heartbeat(ctx, sessionID, caller); err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&HeartbeatResponse{}), nil
}

func (s *Service) GetMarketState(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[MarketStateResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	state, err := s.app.GetMarketState(ctx, sessionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&MarketStateResponse{State: state}), nil
}
