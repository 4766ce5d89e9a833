// Package session hosts one interactive map view: it loads parcel data, owns
// the selection, mode, map layer, update workflow and statistics for that
// view, and serializes every mutation onto a single event loop.
package session

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/maplayer"
	"github.com/sells-group/zoning-cli/internal/mode"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/parcel"
	"github.com/sells-group/zoning-cli/internal/selection"
	"github.com/sells-group/zoning-cli/internal/service"
	"github.com/sells-group/zoning-cli/internal/stats"
	"github.com/sells-group/zoning-cli/internal/workflow"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

// ErrClosed is returned by calls on a closed session.
var ErrClosed = eris.New("session: closed")

// ErrNotLoaded is returned by interaction calls before data has loaded.
var ErrNotLoaded = eris.New("session: parcel data not loaded")

// Config tunes a session.
type Config struct {
	Width          int
	TouchThreshold int
	Palette        zoning.Palette
	NoticeLimit    int
	UpdateTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.TouchThreshold <= 0 {
		c.TouchThreshold = mode.DefaultTouchThreshold
	}
	if c.Palette.Colors == nil {
		c.Palette = zoning.DefaultPalette()
	}
	if c.NoticeLimit <= 0 {
		c.NoticeLimit = 5
	}
	if c.UpdateTimeout <= 0 {
		c.UpdateTimeout = 30 * time.Second
	}
	return c
}

// Session is one view lifetime.
type Session struct {
	id  string
	svc service.ParcelDataService
	cfg Config
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	cache   *parcel.Cache
	sel     *selection.Store
	modes   *mode.Controller
	layer   *maplayer.Controller
	wf      *workflow.Workflow
	tracker *stats.Tracker
	bus     *maplayer.Bus

	cmds      chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Owned by the loop goroutine.
	loaded    bool
	failed    bool
	loadErr   error
	layerRev  uint64
	frame     *geom.Bounds
	frames    int
	notices   []workflow.Notice
	statsRes  stats.Result
	statsKey  string
	listeners map[int]func(Snapshot)
	nextLis   int
}

// New creates a session and starts its event loop. Call Load to fetch data
// and Close to release it.
func New(svc service.ParcelDataService, cfg Config) *Session {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:        uuid.NewString(),
		svc:       svc,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		cache:     parcel.NewCache(),
		bus:       maplayer.NewBus(),
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
	s.log = zap.L().With(zap.String("component", "session"), zap.String("session_id", s.id))

	s.sel = selection.NewStore(s.cache)
	s.modes = mode.NewController(s.sel, cfg.Width, cfg.TouchThreshold)
	s.layer = maplayer.NewController(s.modes, s.modes, maplayer.Options{
		Palette:  cfg.Palette,
		Viewport: viewport{s},
		OnResize: s.onResize,
		OnChange: s.onLayerEvent,
	})
	s.wf = workflow.New(svc, s.sel, s.cache, s.modes)
	s.tracker = stats.NewTracker(svc, func(r stats.Result) {
		s.post(func() {
			// A newer request may have been issued while this was queued.
			if r.Generation != s.tracker.Latest().Generation {
				return
			}
			s.statsRes = r
			s.publish()
		})
	})

	go s.run()
	s.layer.Mount(s.bus)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// post queues fn on the loop from a background goroutine.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

// goAsync runs fn on a tracked goroutine.
func (s *Session) goAsync(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Close unmounts the view, stops the loop and waits for background work.
// In-flight zoning updates are not cancelled.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.layer.Unmount()
		s.cancel()
		close(s.done)
		<-s.stopped
		s.wg.Wait()
		s.tracker.Wait()
		s.log.Debug("session closed")
	})
	return nil
}

// Load fetches parcels and the vocabulary and starts a new data-load session.
// A failure leaves the session in the failed state; it is not retried.
func (s *Session) Load() {
	s.goAsync(func() {
		data, err := service.LoadInitial(s.ctx, s.svc)
		s.post(func() {
			if err != nil {
				s.failed = true
				s.loadErr = err
				s.publish()
				return
			}
			s.applyData(data)
		})
	})
}

func (s *Session) applyData(data service.InitialData) {
	session := s.cache.Load(data.Parcels, data.Vocabulary)
	pruned := s.sel.Prune()
	s.loaded = true
	s.failed = false
	s.loadErr = nil
	s.log.Info("parcel data loaded",
		zap.Uint64("data_session", session),
		zap.Int("parcels", s.cache.Len()),
		zap.Int("pruned", pruned),
	)
	s.rebuild()
	s.refreshStats()
	s.publish()
}

func (s *Session) rebuild() {
	s.layer.Rebuild(maplayer.Input{
		Session:  s.cache.Session(),
		Entries:  s.cache.Entries(),
		Selected: s.sel.Set(),
	})
	s.layerRev++
}

func (s *Session) refreshStats() {
	ids := s.sel.IDs()
	target := s.sel.Target()
	key := statsKey(s.cache.Version(), ids, target)
	if key == s.statsKey {
		return
	}
	s.statsKey = key
	s.tracker.Request(s.ctx, ids, target)
	s.statsRes = s.tracker.Latest()
}

func (s *Session) selectionChanged() {
	s.rebuild()
	s.refreshStats()
}

func (s *Session) onLayerEvent(res maplayer.Result) {
	if res.SelectionChanged {
		s.selectionChanged()
	}
	s.publish()
}

func (s *Session) onResize(width int) {
	before := s.modes.Mode()
	if after := s.modes.Resize(width); after != before {
		s.log.Debug("mode changed on resize", zap.Stringer("from", before), zap.Stringer("to", after))
	}
	s.publish()
}

func (s *Session) addNotice(n workflow.Notice) {
	s.notices = append(s.notices, n)
	if over := len(s.notices) - s.cfg.NoticeLimit; over > 0 {
		s.notices = slices.Clone(s.notices[over:])
	}
}

// viewport records framing commands from the map layer.
type viewport struct{ s *Session }

func (v viewport) FitBounds(b *geom.Bounds) {
	v.s.frame = b
	v.s.frames++
}

// statsKey identifies a stats request. The cache version is part of it so
// reloaded or rezoned data refreshes an unchanged selection.
func statsKey(version uint64, ids []model.ParcelID, target string) string {
	b := make([]byte, 0, len(ids)*4+len(target)+22)
	b = strconv.AppendUint(b, version, 10)
	b = append(b, '|')
	for _, id := range ids {
		b = append(b, id.String()...)
		b = append(b, ',')
	}
	b = append(b, '|')
	return string(append(b, target...))
}
