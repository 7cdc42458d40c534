package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/hiringradar/internal/model"
)

// DefaultRedisChannel is where run events are published when none is configured.
const DefaultRedisChannel = "hiringradar:runs"

// Ensure RedisNotifier implements model.RunNotifier.
var _ model.RunNotifier = (*RedisNotifier)(nil)

// RunEvent is the JSON message published for each run.
type RunEvent struct {
	Run       model.RunSummary        `json:"run"`
	Recompute *model.RecomputeSummary `json:"recompute,omitempty"`
}

// RedisNotifier publishes run events on a Redis channel and keeps the latest
// one under "<channel>:last" for late readers.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisNotifier returns a notifier publishing to channel.
func NewRedisNotifier(rdb *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel, logger: logger}
}

// NotifyRun publishes the run event and stores it as the latest.
func (n *RedisNotifier) NotifyRun(ctx context.Context, run model.RunSummary, recompute *model.RecomputeSummary) error {
	payload, err := json.Marshal(RunEvent{Run: run, Recompute: recompute})
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	if err := n.rdb.Set(ctx, n.channel+":last", payload, 0).Err(); err != nil {
		return fmt.Errorf("storing run %s: %w", run.RunID, err)
	}
	receivers, err := n.rdb.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publishing run %s to %s: %w", run.RunID, n.channel, err)
	}

	n.logger.Info("run event published",
		"run_id", run.RunID,
		"channel", n.channel,
		"receivers", receivers,
	)
	return nil
}
