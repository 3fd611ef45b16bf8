package db

import (
	"context"
	"fmt"

	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

// SaveAuction writes a if its stored version still equals a.Version, then
// advances a.Version. A lost race yields marketerr.ErrVersionConflict.
func SaveAuction(ctx context.Context, q Querier, a *models.Auction) error {
	ok, err := q.UpdateAuction(ctx, *a, a.Version)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	if !ok {
		return marketerr.ErrVersionConflict
	}
	a.Version++
	return nil
}

// SaveSession is SaveAuction for market sessions.
func SaveSession(ctx context.Context, q Querier, s *models.MarketSession) error {
	ok, err := q.UpdateSession(ctx, *s, s.Version)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if !ok {
		return marketerr.ErrVersionConflict
	}
	s.Version++
	return nil
}
