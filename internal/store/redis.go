package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// Redis keys used by RedisPublisher.
const (
	SnapshotKey    = "ledger:snapshot"
	UpdatesChannel = "ledger:updates"
)

// RedisPublisher implements SnapshotPublisher by storing the latest view
// under SnapshotKey and publishing an empty message on UpdatesChannel.
// Subscribers re-read the key when they wake up.
type RedisPublisher struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPublisher creates a publisher. The snapshot key expires after ttl
// unless refreshed; zero keeps it forever.
func NewRedisPublisher(rdb *redis.Client, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, ttl: ttl}
}

func (p *RedisPublisher) Publish(ctx context.Context, view model.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}
	if err := p.rdb.Set(ctx, SnapshotKey, data, p.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store snapshot")
	}
	if err := p.rdb.Publish(ctx, UpdatesChannel, "").Err(); err != nil {
		return errors.Wrap(err, "failed to publish update signal")
	}
	return nil
}
