// Package backend implements the parcel data service in process, over the
// parcel store and the Redis parcel list cache.
package backend

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/cache"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/service"
	"github.com/sells-group/zoning-cli/internal/stats"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

var _ service.ParcelDataService = (*Local)(nil)

// Local merges stored parcels with zoning overrides, validates updates
// against the vocabulary and computes statistics.
type Local struct {
	store store.Store
	cache cache.ParcelCache
	vocab zoning.Vocabulary
	log   *zap.Logger
}

// NewLocal creates the service. A nil cache disables caching.
func NewLocal(st store.Store, c cache.ParcelCache, vocab zoning.Vocabulary) *Local {
	if c == nil {
		c = cache.Nop{}
	}
	return &Local{
		store: st,
		cache: c,
		vocab: vocab,
		log:   zap.L().With(zap.String("component", "backend")),
	}
}

// GetAllParcels returns every parcel with its effective zoning.
func (l *Local) GetAllParcels(ctx context.Context) ([]model.Parcel, error) {
	if parcels, ok, err := l.cache.GetParcels(ctx); err != nil {
		l.log.Warn("parcel cache read failed", zap.Error(err))
	} else if ok {
		return parcels, nil
	}

	parcels, err := l.store.ListParcels(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "backend: list parcels")
	}
	if err := l.cache.SetParcels(ctx, parcels); err != nil {
		l.log.Warn("parcel cache write failed", zap.Error(err))
	}
	return parcels, nil
}

// GetZoningVocabulary returns the configured zoning types in order.
func (l *Local) GetZoningVocabulary(context.Context) ([]string, error) {
	return l.vocab.Types(), nil
}

// UpdateZoning validates zoningType against the vocabulary, persists the
// override and drops the cached parcel list.
func (l *Local) UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error {
	canonical, err := l.vocab.Canonical(zoningType)
	if err != nil {
		return eris.Wrapf(store.ErrInvalidZoning, "backend: zoning type %q", zoningType)
	}
	if err := l.store.UpdateZoning(ctx, ids, canonical); err != nil {
		return eris.Wrap(err, "backend: update zoning")
	}
	if err := l.cache.Invalidate(ctx); err != nil {
		l.log.Warn("parcel cache invalidate failed", zap.Error(err))
	}
	l.log.Info("zoning updated", zap.Int("parcels", len(ids)), zap.String("zoning_type", canonical))
	return nil
}

// GetStats summarizes the given parcels.
func (l *Local) GetStats(ctx context.Context, ids []model.ParcelID) (model.StatsSummary, error) {
	if len(ids) == 0 {
		return model.EmptyStats(), nil
	}
	parcels, err := l.GetAllParcels(ctx)
	if err != nil {
		return model.StatsSummary{}, err
	}
	return stats.Compute(parcels, ids), nil
}

// SimulateZoningUpdate summarizes all parcels as if ids had zoningType. A
// zoning type outside the vocabulary is rejected like UpdateZoning does.
func (l *Local) SimulateZoningUpdate(ctx context.Context, ids []model.ParcelID, zoningType string) (model.StatsSummary, error) {
	if len(ids) == 0 || zoningType == "" {
		return model.EmptyStats(), nil
	}
	canonical, err := l.vocab.Canonical(zoningType)
	if err != nil {
		return model.StatsSummary{}, eris.Wrapf(store.ErrInvalidZoning, "backend: zoning type %q", zoningType)
	}
	parcels, err := l.GetAllParcels(ctx)
	if err != nil {
		return model.StatsSummary{}, err
	}
	return stats.Simulate(parcels, ids, canonical), nil
}

// AuditLog returns the newest zoning audit entries.
func (l *Local) AuditLog(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	entries, err := l.store.ListAudit(ctx, limit)
	return entries, eris.Wrap(err, "backend: audit log")
}

// Ping checks the store.
func (l *Local) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}
