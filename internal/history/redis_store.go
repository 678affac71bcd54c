// Package history keeps per-subscriber rolling state in Redis: the URL
// keys and topics used by recent briefs, and the briefs themselves.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"market-briefer/internal/model"
)

// briefTTL keeps stored briefs around long enough for manual review
// without growing forever.
const briefTTL = 90 * 24 * time.Hour

type RedisStore struct {
	rdb      *redis.Client
	lookback time.Duration
}

// NewRedisStore wires the store. lookbackWeeks is the rolling window
// applied to URL-key and topic history; values below 1 mean 4.
func NewRedisStore(rdb *redis.Client, lookbackWeeks int) *RedisStore {
	if lookbackWeeks < 1 {
		lookbackWeeks = 4
	}
	return &RedisStore{rdb: rdb, lookback: time.Duration(lookbackWeeks) * 7 * 24 * time.Hour}
}

func urlZKey(subscriberID string) string {
	return fmt.Sprintf("brief:urls:%s", subscriberID)
}

func topicZKey(subscriberID string) string {
	return fmt.Sprintf("brief:topics:%s", subscriberID)
}

func briefKey(subscriberID, runID string) string {
	return fmt.Sprintf("brief:report:%s:%s", subscriberID, runID)
}

// RecentURLKeys returns the normalized URL keys used for the subscriber
// inside the lookback window. Entries outside the window are trimmed on
// the way out.
func (s *RedisStore) RecentURLKeys(ctx context.Context, subscriberID string) (map[string]struct{}, error) {
	return s.recent(ctx, urlZKey(subscriberID))
}

// RecentTopics returns the topics already covered for the subscriber
// inside the lookback window.
func (s *RedisStore) RecentTopics(ctx context.Context, subscriberID string) ([]string, error) {
	set, err := s.recent(ctx, topicZKey(subscriberID))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) recent(ctx context.Context, key string) (map[string]struct{}, error) {
	cutoff := time.Now().Add(-s.lookback).Unix()
	if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		return nil, err
	}
	members, err := s.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

// MarkURLKeysUsed records URL keys against the current time so the next
// runs inside the window skip them.
func (s *RedisStore) MarkURLKeysUsed(ctx context.Context, subscriberID string, keys []string) error {
	return s.mark(ctx, urlZKey(subscriberID), keys)
}

// MarkTopicsUsed records the topics covered by the just-finished brief.
func (s *RedisStore) MarkTopicsUsed(ctx context.Context, subscriberID string, topics []string) error {
	return s.mark(ctx, topicZKey(subscriberID), topics)
}

func (s *RedisStore) mark(ctx context.Context, key string, members []string) error {
	if len(members) == 0 {
		return nil
	}
	now := float64(time.Now().Unix())
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		zs = append(zs, redis.Z{Score: now, Member: m})
	}
	if len(zs) == 0 {
		return nil
	}
	if err := s.rdb.ZAdd(ctx, key, zs...).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.lookback+7*24*time.Hour).Err()
}

// SaveBrief persists the finished brief as JSON.
func (s *RedisStore) SaveBrief(ctx context.Context, brief *model.Brief) error {
	b, err := json.Marshal(brief)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, briefKey(brief.SubscriberID, brief.RunID), b, briefTTL).Err()
}

// LatestBrief returns the most recently stored brief for the subscriber,
// or nil when none exists.
func (s *RedisStore) LatestBrief(ctx context.Context, subscriberID string) (*model.Brief, error) {
	keys, err := s.rdb.Keys(ctx, briefKey(subscriberID, "*")).Result()
	if err != nil {
		return nil, err
	}
	var latest *model.Brief
	for _, k := range keys {
		b, err := s.rdb.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var br model.Brief
		if err := json.Unmarshal(b, &br); err != nil {
			continue
		}
		if latest == nil || br.GeneratedAt.After(latest.GeneratedAt) {
			latest = &br
		}
	}
	return latest, nil
}
