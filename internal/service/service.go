// Package service defines the ParcelDataService boundary the interaction core
// talks to and the error kinds its failures are converted into.
package service

import (
	"context"

	"github.com/sells-group/zoning-cli/internal/model"
)

// ParcelDataService is the remote parcel/zoning service.
type ParcelDataService interface {
	// GetAllParcels returns every parcel with its effective zoning.
	GetAllParcels(ctx context.Context) ([]model.Parcel, error)
	// GetZoningVocabulary returns the ordered valid zoning types.
	GetZoningVocabulary(ctx context.Context) ([]string, error)
	// UpdateZoning assigns zoningType to every id.
	UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error
	// GetStats summarizes the given parcels. Empty input yields a zero summary.
	GetStats(ctx context.Context, ids []model.ParcelID) (model.StatsSummary, error)
	// SimulateZoningUpdate summarizes the parcel set as if ids were re-zoned.
	// Empty input or zoning type yields a zero summary.
	SimulateZoningUpdate(ctx context.Context, ids []model.ParcelID, zoningType string) (model.StatsSummary, error)
}
