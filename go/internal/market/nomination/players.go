package nomination

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

const playerCacheSize = 2048

// playerCache keeps recently nominated players in memory. Players are
// reference data and never change while a market runs.
type playerCache struct {
	cache *lru.Cache
}

func newPlayerCache(size int) *playerCache {
	if size <= 0 {
		size = playerCacheSize
	}
	cache, _ := lru.New(size)
	return &playerCache{cache: cache}
}

func (c *playerCache) get(ctx context.Context, q db.Querier, id uuid.UUID) (models.Player, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(models.Player), nil
	}
	p, err := q.GetPlayer(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return models.Player{}, marketerr.NotFound(marketerr.CodePlayerNotFound, "player %s not found", id)
	}
	if err != nil {
		return models.Player{}, fmt.Errorf("failed to get player: %w", err)
	}
	c.cache.Add(id, p)
	return p, nil
}
