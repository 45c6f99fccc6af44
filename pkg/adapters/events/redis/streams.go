package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrClosed is returned by a closed event bus.
var ErrClosed = errors.New("event bus closed")

// Client is the subset of the Redis API used by the event bus.
// *redis.Client satisfies it.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
	XRevRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
}

// StreamsEventBus implements EventBus using Redis Streams. Every subscriber
// reads the stream independently, so each one sees every event published
// after it subscribed.
type StreamsEventBus struct {
	client    Client
	logger    *zap.Logger
	maxLen    int64
	block     time.Duration
	retryWait time.Duration

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamsEventBus creates a new Redis Streams event bus. Streams are
// trimmed to roughly maxLen entries; zero disables trimming.
func NewStreamsEventBus(client Client, maxLen int64, logger *zap.Logger) *StreamsEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamsEventBus{
		client:    client,
		logger:    logger,
		maxLen:    maxLen,
		block:     time.Second,
		retryWait: time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Publish publishes an event to the topic stream
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	streamKey := getStreamKey(topic)

	// Serialize event
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("run_id", event.RunID),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe delivers events published on topic after this call until ctx is
// done or the bus is closed
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	streamKey := getStreamKey(topic)

	// Start after the newest entry so nothing published from here on is missed.
	lastID := "0-0"
	latest, err := e.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read stream position: %w", err)
	}
	if len(latest) > 0 {
		lastID = latest[0].ID
	}

	subCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)

	e.logger.Debug("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("from", lastID))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer stop()
		defer cancel()
		e.readStream(subCtx, streamKey, lastID, handler)
	}()

	return nil
}

// readStream reads events from a stream
func (e *StreamsEventBus) readStream(ctx context.Context, streamKey, lastID string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Count:   100,
			Block:   e.block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No new messages
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))

			timer := time.NewTimer(e.retryWait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		// Process messages
		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// processMessage processes a single message from the stream
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		return
	}

	var event domain.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Warn("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Close stops all subscriptions. The Redis client is closed by the caller.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	return nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("aerodoc:events:%s", topic)
}
