package appeal

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
)

const ServiceName = "fantamarket.appeal.v1.AppealService"

const (
	procSubmitAppeal      = "/" + ServiceName + "/SubmitAppeal"
	procResolveAppeal     = "/" + ServiceName + "/ResolveAppeal"
	procListAppeals       = "/" + ServiceName + "/ListAppeals"
	procAcknowledge       = "/" + ServiceName + "/AcknowledgeDecision"
	procMarkReadyToResume = "/" + ServiceName + "/MarkReadyToResume"
	procRectify           = "/" + ServiceName + "/RectifyAuction"
	procListAudit         = "/" + ServiceName + "/ListAudit"
)

// AppealApp defines what the service layer needs from the appeal application
type AppealApp interface {
	Submit(ctx context.Context, auctionID, memberID uuid.UUID, reason string) (models.AuctionAppeal, error)
	Resolve(ctx context.Context, appealID, adminID uuid.UUID, decision models.AppealStatus, note string) (models.AuctionAppeal, error)
	List(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionAppeal, error)
	AcknowledgeDecision(ctx context.Context, auctionID, memberID uuid.UUID) (Progress, error)
	MarkReadyToResume(ctx context.Context, auctionID, memberID uuid.UUID) (Progress, error)
	Rectify(ctx context.Context, req RectifyRequest) (models.Auction, error)
	ListAudit(ctx context.Context, sessionID, adminID uuid.UUID) ([]models.AuditEntry, error)
}

type SubmitAppealRequest struct {
	AuctionID string `json:"auction_id"`
	Reason    string `json:"reason"`
}

type ResolveAppealRequest struct {
	AppealID string              `json:"appeal_id"`
	Decision models.AppealStatus `json:"decision"`
	Note     string              `json:"note,omitempty"`
}

type AppealResponse struct {
	Appeal models.AuctionAppeal `json:"appeal"`
}

type AuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type AppealsResponse struct {
	Appeals []models.AuctionAppeal `json:"appeals"`
}

type ProgressResponse struct {
	Auction models.Auction `json:"auction"`
	Count   int            `json:"count"`
	Total   int            `json:"total"`
	Done    bool           `json:"done"`
}

type RectifyAuctionRequest struct {
	AuctionID string `json:"auction_id"`
	Reason    string `json:"reason"`
	// NewWinnerID reassigns the player; empty cancels the transfer.
	NewWinnerID string `json:"new_winner_id,omitempty"`
	Price       int    `json:"price,omitempty"`
}

type AuctionResponse struct {
	Auction models.Auction `json:"auction"`
}

type ListAuditRequest struct {
	SessionID string `json:"session_id"`
}

type AuditResponse struct {
	Entries []models.AuditEntry `json:"entries"`
}

type Service struct {
	app AppealApp
}

func NewService(app AppealApp) *Service {
	return &Service{app: app}
}

func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(procSubmitAppeal, connect.NewUnaryHandler(procSubmitAppeal, s.SubmitAppeal, opts...))
	mux.Handle(procResolveAppeal, connect.NewUnaryHandler(procResolveAppeal, s.ResolveAppeal, opts...))
	mux.Handle(procListAppeals, connect.NewUnaryHandler(procListAppeals, s.ListAppeals, opts...))
	mux.Handle(procAcknowledge, connect.NewUnaryHandler(procAcknowledge, s.AcknowledgeDecision, opts...))
	mux.Handle(procMarkReadyToResume, connect.NewUnaryHandler(procMarkReadyToResume, s.MarkReadyToResume, opts...))
	mux.Handle(procRectify, connect.NewUnaryHandler(procRectify, s.RectifyAuction, opts...))
	mux.Handle(procListAudit, connect.NewUnaryHandler(procListAudit, s.ListAudit, opts...))
	return "/" + ServiceName + "/", mux
}

func call(req connect.AnyRequest, field, raw string) (caller, id uuid.UUID, err error) {
	if caller, err = rpc.Caller(req.Header()); err != nil {
		return
	}
	id, err = rpc.ParseID(field, raw)
	return
}

func progressResponse(p Progress) *connect.Response[ProgressResponse] {
	return connect.NewResponse(&ProgressResponse{Auction: p.Auction, Count: p.Count, Total: p.Total, Done: p.Done})
}

func (s *Service) SubmitAppeal(ctx context.Context, req *connect.Request[SubmitAppealRequest]) (*connect.Response[AppealResponse], error) {
	caller, auctionID, err := call(req, "auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	ap, err := s.app.Submit(ctx, auctionID, caller, req.Msg.Reason)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AppealResponse{Appeal: ap}), nil
}

func (s *Service) ResolveAppeal(ctx context.Context, req *connect.Request[ResolveAppealRequest]) (*connect.Response[AppealResponse], error) {
	caller, appealID, err := call(req, "appeal_id", req.Msg.AppealID)
	if err != nil {
		return nil, err
	}
	ap, err := s.app.Resolve(ctx, appealID, caller, req.Msg.Decision, req.Msg.Note)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AppealResponse{Appeal: ap}), nil
}

func (s *Service) ListAppeals(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[AppealsResponse], error) {
	_, auctionID, err := call(req, "auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	appeals, err := s.app.List(ctx, auctionID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AppealsResponse{Appeals: appeals}), nil
}

func (s *Service) AcknowledgeDecision(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[ProgressResponse], error) {
	caller, auctionID, err := call(req, "auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	p, err := s.app.AcknowledgeDecision(ctx, auctionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return progressResponse(p), nil
}

func (s *Service) MarkReadyToResume(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[ProgressResponse], error) {
	caller, auctionID, err := call(req, "auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	p, err := s.app.MarkReadyToResume(ctx, auctionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return progressResponse(p), nil
}

func (s *Service) RectifyAuction(ctx context.Context, req *connect.Request[RectifyAuctionRequest]) (*connect.Response[AuctionResponse], error) {
	caller, auctionID, err := call(req, "auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	r := RectifyRequest{AuctionID: auctionID, AdminID: caller, Reason: req.Msg.Reason, Price: req.Msg.Price}
	if req.Msg.NewWinnerID != "" {
		winner, err := rpc.ParseID("new_winner_id", req.Msg.NewWinnerID)
		if err != nil {
			return nil, err
		}
		r.NewWinnerID = &winner
	}
	auc, err := s.app.Rectify(ctx, r)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuctionResponse{Auction: auc}), nil
}

func (s *Service) ListAudit(ctx context.Context, req *connect.Request[ListAuditRequest]) (*connect.Response[AuditResponse], error) {
	caller, sessionID, err := call(req, "session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.app.ListAudit(ctx, sessionID, caller)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return connect.NewResponse(&AuditResponse{Entries: entries}), nil
}
