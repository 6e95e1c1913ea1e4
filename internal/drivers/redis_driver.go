package drivers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// RedisDriver persists backing-store CRDT state as one Redis hash per
// storage key (arcs:backing:<key>), whose "state" field holds the JSON
// of the last sent data and version, grounded on the go-redis wiring the
// teacher used for its demo service (ping-on-connect, context-scoped
// calls).
type RedisDriver struct {
	client *redis.Client
	key    wire.StorageKey
	logger *zap.Logger

	receiver store.ReceiverFunc
}

// NewRedisDriver connects to cfg.Addr and verifies the connection with
// a Ping before returning.
func NewRedisDriver(ctx context.Context, cfg config.RedisConfig, key wire.StorageKey, logger *zap.Logger) (*RedisDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("redis_driver")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	logger.Info("connected to redis backing store", zap.String("addr", cfg.Addr))

	return &RedisDriver{client: client, key: key, logger: logger}, nil
}

func (d *RedisDriver) Key() wire.StorageKey { return d.key }

func (d *RedisDriver) RegisterReceiver(receiver store.ReceiverFunc) {
	d.receiver = receiver
}

func (d *RedisDriver) Send(ctx context.Context, data interface{}, version crdt.VersionVector) (bool, error) {
	payload, err := json.Marshal(struct {
		Data    interface{}        `json:"data"`
		Version crdt.VersionVector `json:"version"`
	}{data, version})
	if err != nil {
		return false, fmt.Errorf("redis: marshal: %w", err)
	}

	if err := d.client.HSet(ctx, d.hashKey(), "state", payload).Err(); err != nil {
		d.logger.Warn("send rejected by redis", zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (d *RedisDriver) hashKey() string {
	return "arcs:backing:" + d.key.String()
}

func (d *RedisDriver) Close() error {
	return d.client.Close()
}
