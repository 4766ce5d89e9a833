package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

// InitialData is the result of the one-time data load.
type InitialData struct {
	Parcels    []model.Parcel
	Vocabulary zoning.Vocabulary
}

// LoadInitial fetches parcels and the zoning vocabulary concurrently. Any
// failure is returned as a DataLoadError.
func LoadInitial(ctx context.Context, svc ParcelDataService) (InitialData, error) {
	var (
		parcels []model.Parcel
		types   []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := svc.GetAllParcels(gctx)
		if err != nil {
			return &DataLoadError{Op: "get parcels", Err: err}
		}
		parcels = p
		return nil
	})
	g.Go(func() error {
		t, err := svc.GetZoningVocabulary(gctx)
		if err != nil {
			return &DataLoadError{Op: "get zoning vocabulary", Err: err}
		}
		types = t
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("service: initial data load failed", zap.Error(err))
		return InitialData{}, err
	}

	zap.L().Info("service: initial data loaded",
		zap.Int("parcels", len(parcels)),
		zap.Int("zoning_types", len(types)),
	)
	return InitialData{Parcels: parcels, Vocabulary: zoning.NewVocabulary(types)}, nil
}
