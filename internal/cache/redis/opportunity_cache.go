package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

// noneMarker is stored when a scan cycle completed but found no actionable
// opportunity, so readers can tell "no opportunity" apart from "never
// scanned".
const noneMarker = "none"

// OpportunityCache stores the latest evaluated opportunity per user as JSON
// at key "opportunity:{userID}".
type OpportunityCache struct {
	rdb *redis.Client
}

// NewOpportunityCache creates an OpportunityCache backed by the given Client.
func NewOpportunityCache(c *Client) *OpportunityCache {
	return &OpportunityCache{rdb: c.Underlying()}
}

func opportunityKey(userID string) string {
	return "opportunity:" + userID
}

// Set records the latest opportunity for a user. A nil opportunity records
// that the most recent cycle found nothing.
func (oc *OpportunityCache) Set(ctx context.Context, userID string, opp *domain.Opportunity, ttl time.Duration) error {
	key := opportunityKey(userID)

	var payload string
	if opp == nil {
		payload = noneMarker
	} else {
		raw, err := json.Marshal(opp)
		if err != nil {
			return fmt.Errorf("redis: marshal opportunity: %w", err)
		}
		payload = string(raw)
	}

	if err := oc.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set opportunity %s: %w", key, err)
	}
	return nil
}

// Get returns the latest opportunity for a user. It returns (nil, nil) when
// the last cycle found no opportunity, and domain.ErrNotFound when no cycle
// has run recently enough to leave a record.
func (oc *OpportunityCache) Get(ctx context.Context, userID string) (*domain.Opportunity, error) {
	key := opportunityKey(userID)
	payload, err := oc.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get opportunity %s: %w", key, err)
	}
	if payload == noneMarker {
		return nil, nil
	}

	var opp domain.Opportunity
	if err := json.Unmarshal([]byte(payload), &opp); err != nil {
		return nil, fmt.Errorf("redis: unmarshal opportunity %s: %w", key, err)
	}
	return &opp, nil
}

var _ domain.OpportunityCache = (*OpportunityCache)(nil)
