package maplayer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/zoning-cli/internal/mode"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/parcel"
	"github.com/sells-group/zoning-cli/internal/selection"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

type fakeViewport struct {
	mu     sync.Mutex
	fits   int
	bounds *geom.Bounds
}

func (v *fakeViewport) FitBounds(b *geom.Bounds) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fits++
	v.bounds = b
}

func (v *fakeViewport) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fits
}

// countingActivator records every activation reaching the selection layer.
type countingActivator struct {
	inner Activator
	calls int
}

func (a *countingActivator) Activate(id model.ParcelID, modifier bool) bool {
	a.calls++
	return a.inner.Activate(id, modifier)
}

func square(x, y float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}`,
		x, y, x+1, y, x+1, y+1, x, y+1, x, y)
}

type harness struct {
	cache *parcel.Cache
	sel   *selection.Store
	modes *mode.Controller
	act   *countingActivator
	vp    *fakeViewport
	ctl   *Controller
}

func newHarness(t *testing.T, width int) *harness {
	t.Helper()
	h := &harness{cache: parcel.NewCache(), vp: &fakeViewport{}}
	h.cache.Load([]model.Parcel{
		{ID: 1, Geometry: square(0, 0), ZoningType: model.ZoningPtr("Residential")},
		{ID: 2, Geometry: square(2, 2), ZoningType: model.ZoningPtr("Commercial")},
		{ID: 3, Geometry: square(4, 0)},
	}, zoning.NewVocabulary([]string{"Residential", "Commercial"}))
	h.sel = selection.NewStore(h.cache)
	h.modes = mode.NewController(h.sel, width, 768)
	h.act = &countingActivator{inner: h.modes}
	h.ctl = NewController(h.act, h.modes, Options{Viewport: h.vp})
	h.rebuild()
	return h
}

func (h *harness) rebuild() *Layer {
	return h.ctl.Rebuild(Input{
		Session:  h.cache.Session(),
		Entries:  h.cache.Entries(),
		Selected: h.sel.Set(),
	})
}

func TestStyleFor(t *testing.T) {
	p := zoning.DefaultPalette()

	base := StyleFor(p, "Residential", false, false)
	assert.Equal(t, Style{FillColor: "#00BCD4", FillOpacity: 0.5, Color: "#666", Weight: 1, Opacity: 1}, base)

	sel := StyleFor(p, "Residential", true, false)
	assert.Greater(t, sel.FillOpacity, base.FillOpacity)
	assert.Greater(t, sel.Weight, base.Weight)

	hov := StyleFor(p, "Residential", false, true)
	assert.Equal(t, "#FFC107", hov.Color)
	assert.NotEqual(t, sel.Color, hov.Color)
	assert.Greater(t, hov.Weight, base.Weight)

	hovSel := StyleFor(p, "Residential", true, true)
	assert.Equal(t, "#444", hovSel.Color)
	assert.Equal(t, 3.0, hovSel.Weight)

	assert.Equal(t, zoning.FallbackColor, StyleFor(p, "", false, false).FillColor)
	assert.Equal(t, zoning.FallbackColor, StyleFor(p, "Mystery", false, false).FillColor)
}

func TestRebuild_StylesReflectSelection(t *testing.T) {
	h := newHarness(t, 1280)
	h.sel.Select(2, selection.Replace)

	l := h.rebuild()
	require.Equal(t, 3, l.Len())

	f2, ok := l.Feature(2)
	require.True(t, ok)
	assert.True(t, f2.Selected)
	assert.Equal(t, 3.0, f2.Style.Weight)

	f3, _ := l.Feature(3)
	assert.False(t, f3.Selected)
	assert.Equal(t, zoning.FallbackColor, f3.Style.FillColor)
}

func TestRebuild_SkipsParcelsWithoutGeometry(t *testing.T) {
	h := newHarness(t, 1280)
	h.cache.Load([]model.Parcel{
		{ID: 1, Geometry: square(0, 0)},
		{ID: 2, Geometry: "garbage"},
	}, zoning.NewVocabulary(nil))

	l := h.rebuild()
	assert.Equal(t, 1, l.Len())
	_, ok := l.Feature(2)
	assert.False(t, ok)
}

func TestRebuild_FramesOncePerSession(t *testing.T) {
	h := newHarness(t, 1280)
	require.Equal(t, 1, h.vp.count())
	assert.InDelta(t, 0, h.vp.bounds.Min(0), 1e-9)
	assert.InDelta(t, 5, h.vp.bounds.Max(0), 1e-9)

	for i := 0; i < 5; i++ {
		h.ctl.PointerDown(PointerEvent{Parcel: 1})
		h.ctl.Click(PointerEvent{Parcel: 1})
		h.rebuild()
		h.ctl.Enter(2, Point{X: 1, Y: 1})
		h.rebuild()
		h.ctl.Leave(2)
		h.rebuild()
	}
	assert.Equal(t, 1, h.vp.count())

	// A new data-load session frames again, exactly once.
	h.cache.Load(h.cache.Parcels(), h.cache.Vocabulary())
	h.rebuild()
	h.rebuild()
	assert.Equal(t, 2, h.vp.count())
}

func TestRebuild_EmptyParcelSetDoesNotFrame(t *testing.T) {
	vp := &fakeViewport{}
	ctl := NewController(&countingActivator{}, mode.NewController(nil, 1280, 768), Options{Viewport: vp})

	ctl.Rebuild(Input{Session: 1})
	assert.Equal(t, 0, vp.count())

	c := parcel.NewCache()
	c.Load([]model.Parcel{{ID: 1, Geometry: square(0, 0)}}, zoning.NewVocabulary(nil))
	ctl.Rebuild(Input{Session: 1, Entries: c.Entries()})
	assert.Equal(t, 1, vp.count(), "first non-empty build of the session frames")
}

func TestGesture_DownClickPairIsOneMutation(t *testing.T) {
	h := newHarness(t, 1280)

	down := h.ctl.PointerDown(PointerEvent{Parcel: 1})
	click := h.ctl.Click(PointerEvent{Parcel: 1})

	assert.True(t, down.StopPropagation)
	assert.True(t, down.SelectionChanged)
	assert.True(t, click.Handled)
	assert.True(t, click.StopPropagation)
	assert.False(t, click.SelectionChanged)
	assert.Equal(t, 1, h.act.calls)
	assert.Equal(t, []model.ParcelID{1}, h.sel.IDs())
}

func TestGesture_SecondTapTogglesOff(t *testing.T) {
	h := newHarness(t, 1280)

	for i := 0; i < 2; i++ {
		h.ctl.PointerDown(PointerEvent{Parcel: 1})
		h.ctl.Click(PointerEvent{Parcel: 1})
		h.rebuild()
	}
	assert.Equal(t, 2, h.act.calls)
	assert.True(t, h.sel.Empty())
}

func TestGesture_ClickWithoutPointerDownActivates(t *testing.T) {
	h := newHarness(t, 1280)

	res := h.ctl.Click(PointerEvent{Parcel: 2})
	assert.True(t, res.SelectionChanged)
	assert.Equal(t, 1, h.act.calls)
}

func TestGesture_ExplicitGestureIDs(t *testing.T) {
	h := newHarness(t, 1280)

	h.ctl.PointerDown(PointerEvent{GestureID: 7, Parcel: 1})
	h.ctl.Click(PointerEvent{GestureID: 7, Parcel: 1})
	assert.Equal(t, 1, h.act.calls)

	h.ctl.PointerDown(PointerEvent{GestureID: 8, Parcel: 1})
	h.ctl.Click(PointerEvent{GestureID: 9, Parcel: 1})
	assert.Equal(t, 3, h.act.calls, "mismatched gesture ids are separate gestures")
}

func TestGesture_StaleClaimExpires(t *testing.T) {
	h := newHarness(t, 1280)
	t0 := time.Now()

	h.ctl.PointerDown(PointerEvent{Parcel: 1, Time: t0})
	h.ctl.Click(PointerEvent{Parcel: 1, Time: t0.Add(5 * time.Second)})
	assert.Equal(t, 2, h.act.calls)
}

func TestGesture_DragOffFeatureReleasesClaim(t *testing.T) {
	h := newHarness(t, 1280)

	h.ctl.PointerDown(PointerEvent{Parcel: 1})
	h.ctl.Leave(1)
	res := h.ctl.Click(PointerEvent{Parcel: 1})
	assert.True(t, res.SelectionChanged, "a click after an abandoned drag is a new tap")
	assert.Equal(t, 2, h.act.calls)
}

func TestGesture_UnknownFeatureIgnored(t *testing.T) {
	h := newHarness(t, 1280)

	res := h.ctl.PointerDown(PointerEvent{Parcel: 99})
	assert.False(t, res.Handled)
	assert.False(t, res.StopPropagation)
	assert.Equal(t, 0, h.act.calls)
}

func TestGesture_ShiftModifier(t *testing.T) {
	h := newHarness(t, 1280)

	h.ctl.PointerDown(PointerEvent{Parcel: 1})
	h.ctl.Click(PointerEvent{Parcel: 1})
	h.ctl.PointerDown(PointerEvent{Parcel: 2, Shift: true})
	h.ctl.Click(PointerEvent{Parcel: 2, Shift: true})
	assert.Equal(t, []model.ParcelID{1, 2}, h.sel.IDs())

	h.ctl.KeyDown(MultiSelectKey)
	h.ctl.PointerDown(PointerEvent{Parcel: 3})
	assert.Equal(t, []model.ParcelID{1, 2, 3}, h.sel.IDs())

	h.ctl.Blur()
	assert.False(t, h.ctl.ModifierHeld())
	h.ctl.PointerDown(PointerEvent{Parcel: 3})
	assert.Equal(t, []model.ParcelID{3}, h.sel.IDs())
}

func TestGesture_TouchViewTapPromotes(t *testing.T) {
	h := newHarness(t, 400)

	h.ctl.PointerDown(PointerEvent{Parcel: 1, Shift: true})
	h.ctl.Click(PointerEvent{Parcel: 1})
	assert.Equal(t, mode.Select, h.modes.Mode())
	assert.Equal(t, []model.ParcelID{1}, h.sel.IDs())

	h.ctl.PointerDown(PointerEvent{Parcel: 2})
	h.ctl.Click(PointerEvent{Parcel: 2})
	assert.Equal(t, []model.ParcelID{1, 2}, h.sel.IDs())
	assert.Equal(t, 2, h.act.calls)
}

func TestHover_EnterMoveLeave(t *testing.T) {
	h := newHarness(t, 1280)
	h.sel.Select(1, selection.Replace)
	h.rebuild()

	res := h.ctl.Enter(1, Point{X: 10, Y: 20})
	assert.True(t, res.HoverChanged)
	hv := h.ctl.Hover()
	require.True(t, hv.Active())
	assert.Equal(t, model.ParcelID(1), hv.Parcel.ID)
	assert.Equal(t, Point{X: 10, Y: 20}, *hv.Position)

	f, _ := h.ctl.Layer().Feature(1)
	assert.True(t, f.Hovered)
	assert.Equal(t, "#444", f.Style.Color)

	h.ctl.Move(Point{X: 11, Y: 21})
	hv = h.ctl.Hover()
	assert.Equal(t, model.ParcelID(1), hv.Parcel.ID)
	assert.Equal(t, Point{X: 11, Y: 21}, *hv.Position)

	h.ctl.Leave(1)
	assert.False(t, h.ctl.Hover().Active())
	f, _ = h.ctl.Layer().Feature(1)
	assert.False(t, f.Hovered)
	assert.Equal(t, StyleFor(zoning.DefaultPalette(), "Residential", true, false), f.Style,
		"un-hover reverts to the selected style, not the base style")
}

func TestHover_EnterAnotherRevertsPrevious(t *testing.T) {
	h := newHarness(t, 1280)

	h.ctl.Enter(1, Point{})
	h.ctl.Enter(2, Point{})

	assert.Equal(t, model.ParcelID(2), h.ctl.Hover().Parcel.ID)
	f1, _ := h.ctl.Layer().Feature(1)
	assert.False(t, f1.Hovered)
	assert.Equal(t, StyleFor(zoning.DefaultPalette(), "Residential", false, false), f1.Style)
	f2, _ := h.ctl.Layer().Feature(2)
	assert.True(t, f2.Hovered)
}

func TestHover_SurvivesRebuild(t *testing.T) {
	h := newHarness(t, 1280)
	h.ctl.Enter(2, Point{})

	l := h.rebuild()
	f, _ := l.Feature(2)
	assert.True(t, f.Hovered)
	assert.Equal(t, "#FFC107", f.Style.Color)
}

func TestHover_MoveWithoutHoverIsIgnored(t *testing.T) {
	h := newHarness(t, 1280)
	assert.False(t, h.ctl.Move(Point{X: 1}).Handled)
	assert.False(t, h.ctl.Hover().Active())
}

func TestHover_ClearedWhenParcelDisappears(t *testing.T) {
	h := newHarness(t, 1280)
	h.ctl.Enter(2, Point{})

	h.cache.Remove(2)
	h.rebuild()
	assert.False(t, h.ctl.Hover().Active())
}

func TestCursor(t *testing.T) {
	desktop := newHarness(t, 1280)
	assert.Equal(t, CursorDefault, desktop.ctl.Cursor())
	desktop.ctl.KeyDown(MultiSelectKey)
	assert.Equal(t, CursorCrosshair, desktop.ctl.Cursor())
	desktop.ctl.KeyUp(MultiSelectKey)
	assert.Equal(t, CursorDefault, desktop.ctl.Cursor())
	desktop.ctl.KeyDown("Control")
	assert.Equal(t, CursorDefault, desktop.ctl.Cursor())

	touch := newHarness(t, 400)
	assert.Equal(t, CursorDefault, touch.ctl.Cursor())
	touch.modes.Toggle()
	assert.Equal(t, CursorCrosshair, touch.ctl.Cursor())
}

func TestMountUnmount_ReleasesListeners(t *testing.T) {
	h := newHarness(t, 1280)
	bus := NewBus()
	var widths []int
	var changes int
	h.ctl.opts.OnResize = func(w int) { widths = append(widths, w) }
	h.ctl.opts.OnChange = func(Result) { changes++ }

	h.ctl.Mount(bus)
	h.ctl.Mount(bus)
	assert.True(t, h.ctl.Mounted())
	assert.Equal(t, 5, bus.Subscribers())

	bus.Emit(Event{Kind: EventKeyDown, Key: MultiSelectKey})
	assert.True(t, h.ctl.ModifierHeld())
	bus.Emit(Event{Kind: EventBlur})
	assert.False(t, h.ctl.ModifierHeld())
	bus.Emit(Event{Kind: EventResize, Width: 500})
	assert.Equal(t, []int{500}, widths)
	assert.Equal(t, 2, changes)

	h.ctl.Unmount()
	assert.False(t, h.ctl.Mounted())
	assert.Equal(t, 0, bus.Subscribers())

	bus.Emit(Event{Kind: EventKeyDown, Key: MultiSelectKey})
	bus.Emit(Event{Kind: EventResize, Width: 900})
	assert.False(t, h.ctl.ModifierHeld())
	assert.Equal(t, []int{500}, widths)
}

func TestRebuild_ConcurrentSettlesOnLatest(t *testing.T) {
	h := newHarness(t, 1280)
	entries := h.cache.Entries()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sel := map[model.ParcelID]bool{model.ParcelID(i%3 + 1): true}
			h.ctl.Rebuild(Input{Session: h.cache.Session(), Entries: entries, Selected: sel})
		}(i)
	}
	wg.Wait()

	final := h.ctl.Rebuild(Input{Session: h.cache.Session(), Entries: entries, Selected: map[model.ParcelID]bool{2: true}})
	assert.Same(t, final, h.ctl.Layer())
	f, _ := final.Feature(2)
	assert.True(t, f.Selected)
	assert.Equal(t, 1, h.vp.count())
}

func TestLayer_MarshalGeoJSON(t *testing.T) {
	h := newHarness(t, 1280)
	h.sel.Select(1, selection.Replace)
	l := h.rebuild()

	data, err := l.MarshalGeoJSON()
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"FeatureCollection"`)
	assert.Contains(t, s, `"selected":true`)
	assert.Contains(t, s, `"fillColor":"#00BCD4"`)
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsub := bus.Subscribe(EventBlur, func(Event) { calls++ })
	bus.Emit(Event{Kind: EventBlur})
	unsub()
	unsub()
	bus.Emit(Event{Kind: EventBlur})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Subscribers())
}
