package appeal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/rpc"
)

func as[T any](member uuid.UUID, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(rpc.MemberHeader, member.String())
	return req
}

func TestServiceAppealFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.won(t, 1, 4)

	mux := http.NewServeMux()
	mux.Handle(NewService(e.app).Handler(rpc.HandlerOptions()...))
	srv := httptest.NewServer(mux)
	defer srv.Close()
	opts := rpc.ClientOptions()
	submit := connect.NewClient[SubmitAppealRequest, AppealResponse](srv.Client(), srv.URL+procSubmitAppeal, opts...)
	resolve := connect.NewClient[ResolveAppealRequest, AppealResponse](srv.Client(), srv.URL+procResolveAppeal, opts...)
	audit := connect.NewClient[ListAuditRequest, AuditResponse](srv.Client(), srv.URL+procListAudit, opts...)

	sub, err := submit.CallUnary(ctx, as(e.f.Member(2).ID, &SubmitAppealRequest{AuctionID: auc.ID.String(), Reason: "bid arrived late"}))
	if err != nil {
		t.Fatalf("SubmitAppeal: %v", err)
	}
	appealID := sub.Msg.Appeal.ID.String()

	_, err = resolve.CallUnary(ctx, as(e.f.Member(2).ID, &ResolveAppealRequest{AppealID: appealID, Decision: models.AppealStatusRejected}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Fatalf("non-admin resolve code = %v, want %v", connect.CodeOf(err), connect.CodePermissionDenied)
	}
	res, err := resolve.CallUnary(ctx, as(e.f.Admin.ID, &ResolveAppealRequest{AppealID: appealID, Decision: models.AppealStatusRejected, Note: "on time"}))
	if err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}
	if res.Msg.Appeal.Status != models.AppealStatusRejected {
		t.Fatalf("status = %v, want REJECTED", res.Msg.Appeal.Status)
	}

	entries, err := audit.CallUnary(ctx, as(e.f.Admin.ID, &ListAuditRequest{SessionID: e.session.ID.String()}))
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	found := false
	for _, entry := range entries.Msg.Entries {
		if entry.Action == models.AuditActionResolveAppeal {
			found = true
		}
	}
	if !found {
		t.Fatalf("audit = %+v, want a RESOLVE_APPEAL entry", entries.Msg.Entries)
	}
}
