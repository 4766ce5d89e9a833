package stats

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/service"
)

// gatedFetcher blocks GetStats for a selection until its gate is released.
type gatedFetcher struct {
	mu    sync.Mutex
	gates map[model.ParcelID]chan struct{}
	fail  bool
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: make(map[model.ParcelID]chan struct{})}
}

func (f *gatedFetcher) gate(id model.ParcelID) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[id]
	if !ok {
		g = make(chan struct{})
		f.gates[id] = g
	}
	return g
}

func (f *gatedFetcher) GetStats(_ context.Context, ids []model.ParcelID) (model.StatsSummary, error) {
	<-f.gate(ids[0])
	if f.fail {
		return model.StatsSummary{}, errors.New("boom")
	}
	return model.StatsSummary{TotalCount: len(ids), CountByZoningType: map[string]int{}, AreaByZoningType: map[string]float64{}}, nil
}

func (f *gatedFetcher) SimulateZoningUpdate(_ context.Context, ids []model.ParcelID, zoningType string) (model.StatsSummary, error) {
	return model.StatsSummary{TotalCount: len(ids), CountByZoningType: map[string]int{zoningType: len(ids)}}, nil
}

func TestTracker_StaleResponseDiscarded(t *testing.T) {
	f := newGatedFetcher()
	var delivered []Result
	var mu sync.Mutex
	tr := NewTracker(f, func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, r)
	})

	g1 := tr.Request(context.Background(), []model.ParcelID{1, 2}, "")
	g2 := tr.Request(context.Background(), []model.ParcelID{3}, "Commercial")
	require.Greater(t, g2, g1)

	// Newer selection resolves first, then the stale one.
	close(f.gate(3))
	close(f.gate(1))
	tr.Wait()

	latest := tr.Latest()
	assert.Equal(t, g2, latest.Generation)
	assert.Equal(t, []model.ParcelID{3}, latest.IDs)
	require.NotNil(t, latest.Current)
	assert.Equal(t, 1, latest.Current.TotalCount)
	require.NotNil(t, latest.Simulated)
	assert.Equal(t, 1, latest.Simulated.CountByZoningType["Commercial"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1)
	assert.Equal(t, g2, delivered[0].Generation)
}

func TestTracker_StaleResolvingFirstIsStillDiscarded(t *testing.T) {
	f := newGatedFetcher()
	tr := NewTracker(f, nil)

	tr.Request(context.Background(), []model.ParcelID{1, 2}, "")
	g2 := tr.Request(context.Background(), []model.ParcelID{3}, "")

	close(f.gate(1))
	close(f.gate(3))
	tr.Wait()

	assert.Equal(t, g2, tr.Latest().Generation)
	assert.Equal(t, []model.ParcelID{3}, tr.Latest().IDs)
}

func TestTracker_EmptySelectionClearsSynchronously(t *testing.T) {
	f := newGatedFetcher()
	tr := NewTracker(f, nil)

	tr.Request(context.Background(), []model.ParcelID{1}, "")
	gen := tr.Request(context.Background(), nil, "")

	latest := tr.Latest()
	assert.Equal(t, gen, latest.Generation)
	assert.Nil(t, latest.Current)
	assert.False(t, latest.Loading)

	close(f.gate(1))
	tr.Wait()
	assert.Nil(t, tr.Latest().Current, "late response for the old selection is dropped")
}

func TestTracker_ErrorIsStatsFetchError(t *testing.T) {
	f := newGatedFetcher()
	f.fail = true
	tr := NewTracker(f, nil)

	tr.Request(context.Background(), []model.ParcelID{5}, "Residential")
	close(f.gate(5))
	tr.Wait()

	latest := tr.Latest()
	require.Error(t, latest.Err)
	assert.True(t, service.IsStatsFetch(latest.Err))
	assert.Nil(t, latest.Current)
	assert.False(t, latest.Loading)
}

func TestTracker_LoadingWhileInFlight(t *testing.T) {
	f := newGatedFetcher()
	tr := NewTracker(f, nil)

	tr.Request(context.Background(), []model.ParcelID{4}, "")
	assert.True(t, tr.Latest().Loading)

	close(f.gate(4))
	tr.Wait()
	assert.False(t, tr.Latest().Loading)
}
