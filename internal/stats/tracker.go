package stats

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/service"
)

// Fetcher is the statistics half of the parcel data service.
type Fetcher interface {
	GetStats(ctx context.Context, ids []model.ParcelID) (model.StatsSummary, error)
	SimulateZoningUpdate(ctx context.Context, ids []model.ParcelID, zoningType string) (model.StatsSummary, error)
}

// Result is the statistics shown for one selection.
type Result struct {
	Generation uint64              `json:"generation"`
	IDs        []model.ParcelID    `json:"ids"`
	Target     string              `json:"target,omitempty"`
	Current    *model.StatsSummary `json:"current,omitempty"`
	Simulated  *model.StatsSummary `json:"simulated,omitempty"`
	Loading    bool                `json:"loading"`
	Err        error               `json:"-"`
}

// Tracker requests statistics for the latest selection. Each request gets a
// generation; responses from superseded generations are discarded rather
// than cancelled.
type Tracker struct {
	fetcher Fetcher
	deliver func(Result)
	log     *zap.Logger

	mu     sync.Mutex
	gen    uint64
	latest Result
	wg     sync.WaitGroup
}

// NewTracker creates a tracker. deliver, if set, is called with every
// accepted result from the fetching goroutine.
func NewTracker(fetcher Fetcher, deliver func(Result)) *Tracker {
	return &Tracker{
		fetcher: fetcher,
		deliver: deliver,
		log:     zap.L().With(zap.String("component", "stats.tracker")),
	}
}

// Request supersedes any in-flight request and starts fetching statistics
// for ids. An empty selection clears the statistics synchronously.
func (t *Tracker) Request(ctx context.Context, ids []model.ParcelID, target string) uint64 {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	cp := make([]model.ParcelID, len(ids))
	copy(cp, ids)

	if len(cp) == 0 {
		t.latest = Result{Generation: gen}
		t.mu.Unlock()
		return gen
	}
	t.latest = Result{Generation: gen, IDs: cp, Target: target, Loading: true}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.resolve(t.fetch(ctx, gen, cp, target))
	}()
	return gen
}

func (t *Tracker) fetch(ctx context.Context, gen uint64, ids []model.ParcelID, target string) Result {
	res := Result{Generation: gen, IDs: ids, Target: target}

	current, err := t.fetcher.GetStats(ctx, ids)
	if err != nil {
		res.Err = &service.StatsFetchError{Op: "get stats", Err: err}
		return res
	}
	res.Current = &current

	if target == "" {
		return res
	}
	simulated, err := t.fetcher.SimulateZoningUpdate(ctx, ids, target)
	if err != nil {
		res.Err = &service.StatsFetchError{Op: "simulate zoning update", Err: err}
		return res
	}
	res.Simulated = &simulated
	return res
}

func (t *Tracker) resolve(res Result) {
	t.mu.Lock()
	if res.Generation != t.gen {
		t.mu.Unlock()
		t.log.Debug("discarding superseded stats",
			zap.Uint64("generation", res.Generation),
			zap.Int("ids", len(res.IDs)),
		)
		return
	}
	t.latest = res
	t.mu.Unlock()

	if res.Err != nil {
		t.log.Warn("stats fetch failed", zap.Error(res.Err))
	}
	if t.deliver != nil {
		t.deliver(res)
	}
}

// Latest returns the statistics for the newest request.
func (t *Tracker) Latest() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// Wait blocks until all in-flight fetches have resolved.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
