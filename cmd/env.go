package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/api"
	"github.com/sells-group/zoning-cli/internal/backend"
	"github.com/sells-group/zoning-cli/internal/cache"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
	"github.com/sells-group/zoning-cli/internal/session"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/internal/zoning"
	"github.com/sells-group/zoning-cli/pkg/parcelapi"
)

// initStore opens and migrates the configured parcel store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN(), &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCache connects the Redis parcel cache when enabled. The returned
// closer is never nil.
func initCache(ctx context.Context) (cache.ParcelCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.Prefix, time.Duration(cfg.Redis.TTLSecs)*time.Second)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { rc.Close() }, nil //nolint:errcheck
}

func vocabulary() zoning.Vocabulary {
	types := cfg.Zoning.Types
	if len(types) == 0 {
		types = zoning.DefaultTypes
	}
	return zoning.NewVocabulary(types)
}

func sessionConfig() (session.Config, error) {
	palette, err := zoning.LoadPalette(cfg.Zoning.PaletteFile)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Width:          cfg.Session.DefaultWidth,
		TouchThreshold: cfg.Session.TouchThreshold,
		Palette:        palette,
		NoticeLimit:    cfg.Session.NoticeLimit,
		UpdateTimeout:  time.Duration(cfg.Session.UpdateTimeoutSecs) * time.Second,
	}, nil
}

// newAPIClient builds a parcel API client from the client config. A non-empty
// baseURL overrides the configured one.
func newAPIClient(baseURL string) *parcelapi.Client {
	if baseURL == "" {
		baseURL = cfg.Client.BaseURL
	}
	breaker := resilience.BreakerFromConfig(cfg.Client)
	breaker.OnStateChange = func(from, to resilience.BreakerState) {
		zap.L().Warn("parcel api circuit breaker",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return parcelapi.New(baseURL,
		parcelapi.WithTimeout(time.Duration(cfg.Client.TimeoutSecs)*time.Second),
		parcelapi.WithRateLimit(cfg.Client.RateLimit),
		parcelapi.WithRetry(resilience.RetryFromConfig(cfg.Client)),
		parcelapi.WithBreaker(breaker),
	)
}

// openBackend returns the parcel data backend for CLI commands: the remote
// API when remote is set, otherwise the local store.
func openBackend(ctx context.Context, remote string) (api.Backend, func(), error) {
	if remote != "" {
		return newAPIClient(remote), func() {}, nil
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	c, closeCache, err := initCache(ctx)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	closeAll := func() {
		closeCache()
		st.Close() //nolint:errcheck
	}
	return backend.NewLocal(st, c, vocabulary()), closeAll, nil
}

// parseIDList parses a comma-separated list of parcel ids.
func parseIDList(raw string) ([]model.ParcelID, error) {
	var ids []model.ParcelID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n <= 0 {
			return nil, eris.Errorf("invalid parcel id %q", part)
		}
		ids = append(ids, model.ParcelID(n))
	}
	return ids, nil
}
