// Package analytics keeps per-project mutation counters in Redis.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/djlord-it/billing-cron/internal/domain"
)

// DefaultRetention bounds how long daily counters survive.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	logger    zerolog.Logger
}

func NewRedisSink(client *redis.Client, retention time.Duration, logger zerolog.Logger) *RedisSink {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisSink{
		client:    client,
		retention: retention,
		logger:    logger.With().Str("component", "analytics").Logger(),
	}
}

// Record writes event and logs any failure. A Redis outage never fails the
// billing mutation it describes.
func (s *RedisSink) Record(ctx context.Context, event domain.MutationEvent) {
	if err := s.Write(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("invocation_id", event.InvocationID).
			Str("project", event.ProjectID).
			Msg("analytics write failed")
	}
}

// Write increments the daily outcome counter and stores the last outcome for
// the project.
func (s *RedisSink) Write(ctx context.Context, event domain.MutationEvent) error {
	counter := counterKey(event.ProjectID, event.Action, event.Outcome, event.At)
	last := lastKey(event.ProjectID)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, s.retention)
	pipe.HSet(ctx, last,
		"invocation_id", event.InvocationID,
		"action", string(event.Action),
		"outcome", event.Outcome,
		"at", event.At.UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, last, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// PingContext reports whether Redis is reachable.
func (s *RedisSink) PingContext(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func counterKey(projectID string, action domain.Action, outcome string, t time.Time) string {
	return fmt.Sprintf("billing:p:%s:a:%s:o:%s:%s", projectID, action, outcome, dayBucket(t))
}

func lastKey(projectID string) string {
	return fmt.Sprintf("billing:p:%s:last", projectID)
}

func dayBucket(t time.Time) string {
	return t.UTC().Format("20060102")
}
