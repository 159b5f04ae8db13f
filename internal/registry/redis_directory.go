package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AnkitKumarMitra/Discordia/internal/config"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
	"github.com/redis/go-redis/v9"
)

// RedisDirectory advertises which users are online, across instances,
// as TTL keys refreshed by a heartbeat. REST-tier collaborators read
// it to answer "is user online"; it is advisory and never consulted
// for message delivery.
type RedisDirectory struct {
	client            *redis.Client
	instanceID        string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{}
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisDirectory creates a directory backed by the given Redis.
func NewRedisDirectory(cfg config.RedisConfig, instanceID string) (*RedisDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisDirectory{
		client:            client,
		instanceID:        instanceID,
		prefix:            cfg.PresencePrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}, nil
}

func (d *RedisDirectory) keyFor(userID string) string {
	return fmt.Sprintf("%s:user:%s", d.prefix, userID)
}

// Advertise marks a user online from this instance.
func (d *RedisDirectory) Advertise(ctx context.Context, userID string) error {
	key := d.keyFor(userID)

	if err := d.client.Set(ctx, key, d.instanceID, d.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to advertise presence: %w", err)
	}

	d.mu.Lock()
	d.managedKeys[key] = struct{}{}
	d.mu.Unlock()
	return nil
}

// withdrawScript deletes a presence key only while it still carries
// this instance's ID. A user who reconnected through another instance
// re-wrote the key; a late disconnect here must leave it alone.
var withdrawScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Withdraw removes a user's online advertisement if this instance
// still owns it.
func (d *RedisDirectory) Withdraw(ctx context.Context, userID string) error {
	key := d.keyFor(userID)

	d.mu.Lock()
	_, managed := d.managedKeys[key]
	delete(d.managedKeys, key)
	d.mu.Unlock()

	if !managed {
		return nil
	}
	if err := withdrawScript.Run(ctx, d.client, []string{key}, d.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to withdraw presence: %w", err)
	}
	return nil
}

// IsOnline reports whether any instance advertises the user.
func (d *RedisDirectory) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.keyFor(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return n > 0, nil
}

// StartHeartbeat begins refreshing this instance's keys.
func (d *RedisDirectory) StartHeartbeat(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.heartbeatLoop(ctx)
	l := pkglog.L()
	l.Info().Dur("interval", d.heartbeatInterval).Dur("ttl", d.keyTTL).Msg("presence directory heartbeat started")
}

func (d *RedisDirectory) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(d.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refreshKeys(ctx)
		}
	}
}

func (d *RedisDirectory) refreshKeys(ctx context.Context) {
	d.mu.RLock()
	keys := make([]string, 0, len(d.managedKeys))
	for k := range d.managedKeys {
		keys = append(keys, k)
	}
	d.mu.RUnlock()

	for _, key := range keys {
		if err := d.client.Set(ctx, key, d.instanceID, d.keyTTL).Err(); err != nil {
			l := pkglog.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh presence key")
		}
	}
}

// StopHeartbeat stops the refresh loop.
func (d *RedisDirectory) StopHeartbeat() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Close stops the heartbeat and releases the Redis client.
func (d *RedisDirectory) Close() error {
	d.StopHeartbeat()
	return d.client.Close()
}
