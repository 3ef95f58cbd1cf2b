package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// DefaultOddsTTL bounds staleness of cached odds. The ledger invalidates on
// every accepted stake, so the TTL only matters if an invalidation is lost.
const DefaultOddsTTL = 30 * time.Second

// OddsCache implements domain.OddsCache with one JSON value per proposition.
type OddsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOddsCache creates an OddsCache backed by the given Client. A zero ttl
// falls back to DefaultOddsTTL.
func NewOddsCache(c *Client, ttl time.Duration) *OddsCache {
	if ttl <= 0 {
		ttl = DefaultOddsTTL
	}
	return &OddsCache{rdb: c.Underlying(), ttl: ttl}
}

func oddsKey(propositionID int64) string {
	return "wagerbook:odds:" + strconv.FormatInt(propositionID, 10)
}

// Set stores the odds snapshot under its proposition id.
func (oc *OddsCache) Set(ctx context.Context, odds domain.Odds) error {
	data, err := json.Marshal(odds)
	if err != nil {
		return fmt.Errorf("redis: marshal odds %d: %w", odds.PropositionID, err)
	}
	if err := oc.rdb.Set(ctx, oddsKey(odds.PropositionID), data, oc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set odds %d: %w", odds.PropositionID, err)
	}
	return nil
}

// Get retrieves the cached odds. It returns domain.ErrNotFound on a miss.
func (oc *OddsCache) Get(ctx context.Context, propositionID int64) (domain.Odds, error) {
	data, err := oc.rdb.Get(ctx, oddsKey(propositionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Odds{}, fmt.Errorf("redis: odds %d: %w", propositionID, domain.ErrNotFound)
		}
		return domain.Odds{}, fmt.Errorf("redis: get odds %d: %w", propositionID, err)
	}

	var odds domain.Odds
	if err := json.Unmarshal(data, &odds); err != nil {
		return domain.Odds{}, fmt.Errorf("redis: unmarshal odds %d: %w", propositionID, err)
	}
	return odds, nil
}

// Invalidate drops the cached odds after a pool change.
func (oc *OddsCache) Invalidate(ctx context.Context, propositionID int64) error {
	if err := oc.rdb.Del(ctx, oddsKey(propositionID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate odds %d: %w", propositionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OddsCache = (*OddsCache)(nil)
