package turn

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/rs/zerolog/log"
)

// App binds the scheduler to stored sessions.
type App struct {
	ledger *roster.Ledger
}

func NewApp(ledger *roster.Ledger) *App {
	return &App{ledger: ledger}
}

// State loads the scheduler input for a session.
func (a *App) State(ctx context.Context, q db.Querier, session models.MarketSession, league models.League) (State, error) {
	standings, err := a.ledger.Standings(ctx, q, league.ID)
	if err != nil {
		return State{}, fmt.Errorf("failed to load standings: %w", err)
	}
	return State{
		FirstMarket: session.IsFirstMarket(),
		Role:        session.CurrentRole,
		Order:       session.TurnOrder,
		Index:       session.CurrentTurnIndex,
		Standings:   standings,
		Limits:      league.RosterLimits,
	}, nil
}

// Current returns the designated nominator of a session.
func (a *App) Current(ctx context.Context, q db.Querier, session models.MarketSession, league models.League) (Result, error) {
	state, err := a.State(ctx, q, session, league)
	if err != nil {
		return Result{}, err
	}
	return Resolve(state), nil
}

// Authorize checks that memberID holds the turn and returns the decision so
// the caller can store an auto-advanced role.
func (a *App) Authorize(ctx context.Context, q db.Querier, session models.MarketSession, league models.League, memberID uuid.UUID) (Result, error) {
	res, err := a.Current(ctx, q, session, league)
	if err != nil {
		return Result{}, err
	}
	switch res.Outcome {
	case RoundComplete:
		return res, marketerr.BusinessRule(marketerr.CodeRoundComplete, "every roster slot of the round is filled")
	case NoEligible:
		return res, marketerr.BusinessRule(marketerr.CodeNoEligible, "no member is eligible to nominate")
	}
	if res.NominatorID != memberID {
		return res, marketerr.Authorization(marketerr.CodeNotNominator, "it is not member %s's turn to nominate", memberID)
	}
	return res, nil
}

// Advance moves the turn past the current nominator and stores the result in
// session. The caller persists the session.
func (a *App) Advance(ctx context.Context, q db.Querier, session *models.MarketSession, league models.League) (Result, error) {
	state, err := a.State(ctx, q, *session, league)
	if err != nil {
		return Result{}, err
	}
	res := Advance(state)
	Apply(session, res)

	evt := log.Info().
		Str("session_id", session.ID.String()).
		Str("outcome", res.Outcome.String()).
		Int("turn_index", res.Index)
	if res.Role != nil {
		evt = evt.Str("role", string(*res.Role))
	}
	if res.Outcome == Nominator {
		evt = evt.Str("nominator_id", res.NominatorID.String())
	}
	evt.Msg("turn advanced")
	return res, nil
}

// Apply copies a scheduler decision onto a session.
func Apply(session *models.MarketSession, res Result) {
	if session.IsFirstMarket() && res.Role != nil {
		role := *res.Role
		session.CurrentRole = &role
	}
	session.CurrentTurnIndex = res.Index
}
