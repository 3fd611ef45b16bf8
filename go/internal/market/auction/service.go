package auction

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
)

const ServiceName = "fantamarket.auction.v1.AuctionService"

const (
	procGetAuction        = "/" + ServiceName + "/GetAuction"
	procGetCurrentAuction = "/" + ServiceName + "/GetCurrentAuction"
	procListBids          = "/" + ServiceName + "/ListBids"
	procPlaceBid          = "/" + ServiceName + "/PlaceBid"
	procCloseAuction      = "/" + ServiceName + "/CloseAuction"
	procPauseAuction      = "/" + ServiceName + "/PauseAuction"
	procResumeAuction     = "/" + ServiceName + "/ResumeAuction"
	procCancelAuction     = "/" + ServiceName + "/CancelAuction"
	procGetGate           = "/" + ServiceName + "/GetGate"
	procAcknowledge       = "/" + ServiceName + "/Acknowledge"
)

// AuctionApp defines what the service layer needs from the auction application
type AuctionApp interface {
	Get(ctx context.Context, auctionID uuid.UUID) (models.Auction, error)
	Current(ctx context.Context, sessionID uuid.UUID) (*models.Auction, error)
	Bids(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionBid, error)
	PlaceBid(ctx context.Context, auctionID, memberID uuid.UUID, amount int) (models.Auction, models.AuctionBid, error)
	Close(ctx context.Context, auctionID, adminID uuid.UUID) (models.Auction, error)
	Pause(ctx context.Context, auctionID, adminID uuid.UUID, reason string) (models.Auction, error)
	Resume(ctx context.Context, auctionID, adminID uuid.UUID) (models.Auction, error)
	CancelActive(ctx context.Context, auctionID, adminID uuid.UUID, reason string) (models.Auction, error)
	Gate(ctx context.Context, sessionID uuid.UUID) (Gate, error)
	Acknowledge(ctx context.Context, auctionID, memberID uuid.UUID, commentary *string) (Gate, error)
}

type AuctionRequest struct {
	AuctionID string `json:"auction_id"`
	Reason    string `json:"reason,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type AuctionResponse struct {
	Auction *models.Auction `json:"auction"`
}

type BidsResponse struct {
	Bids []models.AuctionBid `json:"bids"`
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	Amount    int    `json:"amount"`
}

type PlaceBidResponse struct {
	Auction models.Auction    `json:"auction"`
	Bid     models.AuctionBid `json:"bid"`
}

type AcknowledgeRequest struct {
	AuctionID  string  `json:"auction_id"`
	Commentary *string `json:"commentary,omitempty"`
}

type GateResponse struct {
	Gate Gate `json:"gate"`
}

// Service exposes the bidding engine and the acknowledgment gate over connect.
type Service struct {
	app AuctionApp
}

func NewService(app AuctionApp) *Service {
	return &Service{app: app}
}

// Handler returns the mount path and handler of the service.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(procGetAuction, connect.NewUnaryHandler(procGetAuction, s.GetAuction, opts...))
	mux.Handle(procGetCurrentAuction, connect.NewUnaryHandler(procGetCurrentAuction, s.GetCurrentAuction, opts...))
	mux.Handle(procListBids, connect.NewUnaryHandler(procListBids, s.ListBids, opts...))
	mux.Handle(procPlaceBid, connect.NewUnaryHandler(procPlaceBid, s.PlaceBid, opts...))
	mux.Handle(procCloseAuction, connect.NewUnaryHandler(procCloseAuction, s.CloseAuction, opts...))
	mux.Handle(procPauseAuction, connect.NewUnaryHandler(procPauseAuction, s.PauseAuction, opts...))
	mux.Handle(procResumeAuction, connect.NewUnaryHandler(procResumeAuction, s.ResumeAuction, opts...))
	mux.Handle(procCancelAuction, connect.NewUnaryHandler(procCancelAuction, s.CancelAuction, opts...))
	mux.Handle(procGetGate, connect.NewUnaryHandler(procGetGate, s.GetGate, opts...))
	mux.Handle(procAcknowledge, connect.NewUnaryHandler(procAcknowledge, s.Acknowledge, opts...))
	return "/" + ServiceName + "/", mux
}

// auctionCall parses the caller and auction id shared by most procedures.
func auctionCall(req connect.AnyRequest, raw string) (caller, auctionID uuid.UUID, err error) {
	if caller, err = rpc.Caller(req.Header()); err != nil {
		return
	}
	auctionID, err = rpc.ParseID("auction_id", raw)
	return
}

func (s *Service) GetAuction(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[AuctionResponse], error) {
	_, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	auc, err := s.app.Get(ctx, auctionID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: &auc}), nil
}

func (s *Service) GetCurrentAuction(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[AuctionResponse], error) {
	if _, err := rpc.Caller(req.Header()); err != nil {
		return nil, err
	}
	sessionID, err := rpc.ParseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	auc, err := s.app.Current(ctx, sessionID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: auc}), nil
}

func (s *Service) ListBids(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[BidsResponse], error) {
	_, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	bids, err := s.app.Bids(ctx, auctionID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&BidsResponse{Bids: bids}), nil
}

func (s *Service) PlaceBid(ctx context.Context, req *connect.Request[PlaceBidRequest]) (*connect.Response[PlaceBidResponse], error) {
	caller, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	auc, bid, err := s.app.PlaceBid(ctx, auctionID, caller, req.Msg.Amount)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&PlaceBidResponse{Auction: auc, Bid: bid}), nil
}

func (s *Service) CloseAuction(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[AuctionResponse], error) {
	caller, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	auc, err := s.app.Close(ctx, auctionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: &auc}), nil
}

func (s *Service) PauseAuction(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[AuctionResponse], error) {
	caller, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	auc, err := s.app.Pause(ctx, auctionID, caller, req.Msg.Reason)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: &auc}), nil
}

func (s *Service) ResumeAuction(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[AuctionResponse], error) {
	caller, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	auc, err := s.app.Resume(ctx, auctionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: &auc}), nil
}

func (s *Service) CancelAuction(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[AuctionResponse], error) {
	caller, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	auc, err := s.app.CancelActive(ctx, auctionID, caller, req.Msg.Reason)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: &auc}), nil
}

func (s *Service) GetGate(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[GateResponse], error) {
	if _, err := rpc.Caller(req.Header()); err != nil {
		return nil, err
	}
	sessionID, err := rpc.ParseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	gate, err := s.app.Gate(ctx, sessionID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&GateResponse{Gate: gate}), nil
}

func (s *Service) Acknowledge(ctx context.Context, req *connect.Request[AcknowledgeRequest]) (*connect.Response[GateResponse], error) {
	caller, auctionID, err := auctionCall(req, req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	gate, err := s.app.Acknowledge(ctx, auctionID, caller, req.Msg.Commentary)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&GateResponse{Gate: gate}), nil
}
