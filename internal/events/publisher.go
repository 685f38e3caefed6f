// Package events publishes pipeline lifecycle events to a Redis stream so
// downstream consumers can react to finished runs without polling artifacts.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeRunCompleted is published after a pipeline run persisted its artifacts.
	EventTypeRunCompleted EventType = "RUN_COMPLETED"
)

// DefaultStream is the stream runs are announced on unless configured otherwise.
const DefaultStream = "stream:market_intel_runs"

// RunCompletedPayload carries everything a consumer needs to pick up a run.
type RunCompletedPayload struct {
	EventID              string         `json:"event_id"`
	EventType            string         `json:"event_type"`
	Timestamp            time.Time      `json:"timestamp"`
	RunID                string         `json:"run_id"`
	Target               string         `json:"target"`
	TotalProducts        int            `json:"total_products"`
	AIProvider           string         `json:"ai_provider,omitempty"`
	CategoryDistribution map[string]int `json:"category_distribution,omitempty"`
	RawPath              string         `json:"raw_path"`
	EnrichedPath         string         `json:"enriched_path,omitempty"`
	Source               string         `json:"source"`
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher writes run events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

// NewPublisher creates a publisher bound to one stream.
func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}

	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishRunCompleted announces a finished run on the stream. Missing event
// metadata is filled in before publishing.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload *RunCompletedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeRunCompleted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "market-intel"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"type":      payload.EventType,
			"timestamp": fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
			"event_id":  payload.EventID,
			"run_id":    payload.RunID,
			"target":    payload.Target,
		},
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", payload.RunID,
		"stream", p.stream,
	)

	return nil
}

// Close releases the underlying Redis connection.
func (p *Publisher) Close() error {
	return p.redis.Close()
}
