// Package cache keeps the assembled parcel list in Redis so repeated loads
// skip the spatial query.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/model"
)

// DefaultTTL bounds how long a cached parcel list is served.
const DefaultTTL = 10 * time.Minute

const parcelsKey = "parcels:all"

// ParcelCache is the parcel list cache used by the backend.
type ParcelCache interface {
	GetParcels(ctx context.Context) ([]model.Parcel, bool, error)
	SetParcels(ctx context.Context, parcels []model.Parcel) error
	Invalidate(ctx context.Context) error
}

// Redis implements ParcelCache.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: connect to redis")
	}
	return NewRedisWithClient(client, prefix, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key() string {
	return r.prefix + parcelsKey
}

// GetParcels returns the cached list and whether it was present.
func (r *Redis) GetParcels(ctx context.Context) ([]model.Parcel, bool, error) {
	data, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get parcels")
	}

	var parcels []model.Parcel
	if err := json.Unmarshal(data, &parcels); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode parcels")
	}
	return parcels, true, nil
}

// SetParcels stores the list for the configured TTL.
func (r *Redis) SetParcels(ctx context.Context, parcels []model.Parcel) error {
	data, err := json.Marshal(parcels)
	if err != nil {
		return eris.Wrap(err, "cache: encode parcels")
	}
	return eris.Wrap(r.client.Set(ctx, r.key(), data, r.ttl).Err(), "cache: set parcels")
}

// Invalidate drops the cached list.
func (r *Redis) Invalidate(ctx context.Context) error {
	return eris.Wrap(r.client.Del(ctx, r.key()).Err(), "cache: invalidate parcels")
}

// Ping checks that Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop is a ParcelCache that never holds anything.
type Nop struct{}

func (Nop) GetParcels(context.Context) ([]model.Parcel, bool, error) { return nil, false, nil }
func (Nop) SetParcels(context.Context, []model.Parcel) error         { return nil }
func (Nop) Invalidate(context.Context) error                         { return nil }
