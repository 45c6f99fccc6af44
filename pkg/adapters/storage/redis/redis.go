package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "aerodoc:run:"

// Client is the subset of the Redis API used for run storage.
// *redis.Client satisfies it.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// StateStorage implements StateStorage using Redis
type StateStorage struct {
	client Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage. Records expire ttl
// after their last save; zero keeps them forever.
func NewStateStorage(client Client, ttl time.Duration, logger *zap.Logger) *StateStorage {
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun serializes the record to JSON and stores it with the TTL
func (s *StateStorage) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	if record == nil || record.RunID == "" {
		return fmt.Errorf("run record must have an ID")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := s.client.Set(ctx, getRunKey(record.RunID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", record.RunID),
		zap.String("status", string(record.Status)))

	return nil
}

// GetRun retrieves a run record from Redis
func (s *StateStorage) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	data, err := s.client.Get(ctx, getRunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &record, nil
}

// DeleteRun deletes a run record from Redis
func (s *StateStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, getRunKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Debug("run deleted",
		zap.String("run_id", runID))

	return nil
}

// ListRuns lists all stored runs. Records that expire or fail to decode
// while scanning are skipped.
func (s *StateStorage) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	runs := make([]*domain.RunRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := s.GetRun(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			if !errors.Is(err, domain.ErrRunNotFound) {
				s.logger.Warn("skipping unreadable run",
					zap.String("key", key),
					zap.Error(err))
			}
			continue
		}
		runs = append(runs, rec)
	}

	return runs, nil
}

// getRunKey returns the Redis key for a run record
func getRunKey(runID string) string {
	return keyPrefix + runID
}
