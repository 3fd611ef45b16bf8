package auction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
)

func newServer(t *testing.T, app AuctionApp) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(NewService(app).Handler(rpc.HandlerOptions()...))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func as[T any](member uuid.UUID, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(rpc.MemberHeader, member.String())
	return req
}

func TestServicePlaceBid(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 1, e.f.Player(models.RoleDefender, 0), 1)
	srv := newServer(t, e.app)
	client := connect.NewClient[PlaceBidRequest, PlaceBidResponse](srv.Client(), srv.URL+procPlaceBid, rpc.ClientOptions()...)

	res, err := client.CallUnary(ctx, as(e.f.Member(2).ID, &PlaceBidRequest{AuctionID: auc.ID.String(), Amount: 5}))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if res.Msg.Auction.CurrentPrice != 5 || res.Msg.Bid.MemberID != e.f.Member(2).ID {
		t.Fatalf("response = %+v, want price 5 by member 2", res.Msg)
	}

	_, err = client.CallUnary(ctx, as(e.f.Member(3).ID, &PlaceBidRequest{AuctionID: auc.ID.String(), Amount: 5}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("code = %v, want %v", connect.CodeOf(err), connect.CodeFailedPrecondition)
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) || cerr.Meta().Get(rpc.ErrorCodeHeader) != marketerr.CodeBidTooLow {
		t.Fatalf("error = %v, want %s metadata", err, marketerr.CodeBidTooLow)
	}
}

func TestServiceRequiresCaller(t *testing.T) {
	e := newEnv(t)
	srv := newServer(t, e.app)
	client := connect.NewClient[AuctionRequest, AuctionResponse](srv.Client(), srv.URL+procCloseAuction, rpc.ClientOptions()...)

	_, err := client.CallUnary(context.Background(), connect.NewRequest(&AuctionRequest{AuctionID: uuid.NewString()}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("code = %v, want %v", connect.CodeOf(err), connect.CodeUnauthenticated)
	}

	_, err = client.CallUnary(context.Background(), as(e.f.Admin.ID, &AuctionRequest{AuctionID: "nope"}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("code = %v, want %v", connect.CodeOf(err), connect.CodeInvalidArgument)
	}
}

func TestServiceGateReportsPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 1, e.f.Player(models.RoleForward, 0), 1)
	if _, err := e.app.Close(ctx, auc.ID, e.f.Admin.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	srv := newServer(t, e.app)
	client := connect.NewClient[AcknowledgeRequest, GateResponse](srv.Client(), srv.URL+procAcknowledge, rpc.ClientOptions()...)

	res, err := client.CallUnary(ctx, as(e.f.Member(1).ID, &AcknowledgeRequest{AuctionID: auc.ID.String()}))
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if res.Msg.Gate.State != GateAwaitingAcks || res.Msg.Gate.Acknowledged != 1 {
		t.Fatalf("gate = %+v, want awaiting with 1 ack", res.Msg.Gate)
	}
}
