// Package maplayer renders the parcel cache into a styled layer and turns
// pointer gestures into selection actions.
package maplayer

import (
	"sync"
	"sync/atomic"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/parcel"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

// MultiSelectKey is the modifier that switches desktop clicks to toggle.
const MultiSelectKey = "Shift"

// Cursor values for the map container.
const (
	CursorDefault   = ""
	CursorCrosshair = "crosshair"
)

// Activator resolves one logical tap into a selection call.
type Activator interface {
	Activate(id model.ParcelID, modifier bool) bool
}

// ModeView reports the interaction mode.
type ModeView interface {
	IsTouch() bool
	InSelectMode() bool
}

// Viewport receives framing commands.
type Viewport interface {
	FitBounds(b *geom.Bounds)
}

// Input is one (parcels, selection) tuple for Rebuild. Hover is owned by the
// controller.
type Input struct {
	Session  uint64
	Entries  []parcel.Entry
	Selected map[model.ParcelID]bool
}

// Hover is the transient hover state.
type Hover struct {
	Parcel   *model.Parcel `json:"parcel,omitempty"`
	Position *Point        `json:"position,omitempty"`
}

// Active reports whether a parcel is hovered.
func (h Hover) Active() bool { return h.Parcel != nil }

// Options configures a Controller.
type Options struct {
	Palette  zoning.Palette
	Viewport Viewport
	// OnResize receives viewport width changes while mounted.
	OnResize func(width int)
	// OnChange is called after a subscribed event changed hover, cursor or
	// selection state, so the host can rebuild.
	OnChange func(Result)
}

// Controller is the MapRenderController.
type Controller struct {
	activator Activator
	modes     ModeView
	opts      Options
	log       *zap.Logger

	tickets atomic.Uint64

	mu       sync.Mutex
	applied  uint64
	layer    *Layer
	framed   uint64
	hover    Hover
	modifier bool
	gesture  gestureResolver
	unsubs   []func()
	mounted  bool
}

// NewController creates a controller.
func NewController(activator Activator, modes ModeView, opts Options) *Controller {
	if opts.Palette.Colors == nil {
		opts.Palette = zoning.DefaultPalette()
	}
	return &Controller{
		activator: activator,
		modes:     modes,
		opts:      opts,
		log:       zap.L().With(zap.String("component", "maplayer")),
	}
}

// Rebuild discards the current layer and renders a new one from in. Calls are
// serialized; a build that started before a later completed build is
// discarded so the layer always settles on the latest request. The first
// non-empty build of a data-load session frames the viewport.
func (c *Controller) Rebuild(in Input) *Layer {
	ticket := c.tickets.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ticket < c.applied {
		return c.layer
	}

	hovered := model.ParcelID(0)
	hasHover := c.hover.Parcel != nil
	if hasHover {
		hovered = c.hover.Parcel.ID
	}

	features := make([]Feature, 0, len(in.Entries))
	geoms := make([]geom.T, 0, len(in.Entries))
	for _, e := range in.Entries {
		if e.Geometry == nil {
			continue
		}
		sel := in.Selected[e.Parcel.ID]
		hov := hasHover && e.Parcel.ID == hovered
		features = append(features, Feature{
			Parcel:   e.Parcel,
			Geometry: e.Geometry,
			Selected: sel,
			Hovered:  hov,
			Style:    StyleFor(c.opts.Palette, e.Parcel.Zoning(), sel, hov),
		})
		geoms = append(geoms, e.Geometry)
	}

	bounds := parcel.Extent(geoms)
	c.layer = newLayer(in.Session, ticket, features, bounds)
	c.applied = ticket

	// A hovered parcel that vanished from the layer cannot be left.
	if hasHover {
		if _, ok := c.layer.Feature(hovered); !ok {
			c.hover = Hover{}
		}
	}

	c.frameLocked(in.Session, bounds, len(features))
	return c.layer
}

func (c *Controller) frameLocked(session uint64, bounds *geom.Bounds, n int) {
	if n == 0 || bounds == nil || session == c.framed {
		return
	}
	if c.opts.Viewport != nil {
		c.opts.Viewport.FitBounds(bounds)
	}
	c.framed = session
	c.log.Debug("framed initial extent",
		zap.Uint64("session", session),
		zap.Float64("min_x", bounds.Min(0)), zap.Float64("min_y", bounds.Min(1)),
		zap.Float64("max_x", bounds.Max(0)), zap.Float64("max_y", bounds.Max(1)),
	)
}

// Layer returns the current layer, nil before the first Rebuild.
func (c *Controller) Layer() *Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layer
}

// Hover returns the hover state.
func (c *Controller) Hover() Hover {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hover
}

// ModifierHeld reports whether the multi-select modifier is held.
func (c *Controller) ModifierHeld() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modifier
}

// Cursor returns crosshair in a multi-select context, else the default.
func (c *Controller) Cursor() string {
	c.mu.Lock()
	mod := c.modifier
	c.mu.Unlock()

	if mod || (c.modes.IsTouch() && c.modes.InSelectMode()) {
		return CursorCrosshair
	}
	return CursorDefault
}

// PointerDown claims the gesture and activates the parcel.
func (c *Controller) PointerDown(ev PointerEvent) Result {
	c.mu.Lock()
	if _, ok := c.layer.Feature(ev.Parcel); !ok {
		c.mu.Unlock()
		return Result{}
	}
	activate := c.gesture.pointerDown(ev)
	modifier := c.modifierLocked(ev.Shift)
	c.mu.Unlock()

	return c.activate(ev.Parcel, modifier, activate)
}

// Click completes the gesture. It activates only when no pointer-down
// already claimed it.
func (c *Controller) Click(ev PointerEvent) Result {
	c.mu.Lock()
	if _, ok := c.layer.Feature(ev.Parcel); !ok {
		c.mu.Unlock()
		return Result{}
	}
	activate := c.gesture.click(ev)
	modifier := c.modifierLocked(ev.Shift)
	c.mu.Unlock()

	return c.activate(ev.Parcel, modifier, activate)
}

func (c *Controller) modifierLocked(shift bool) bool {
	return !c.modes.IsTouch() && (shift || c.modifier)
}

func (c *Controller) activate(id model.ParcelID, modifier, activate bool) Result {
	res := Result{Handled: true, StopPropagation: true}
	if !activate {
		return res
	}
	res.SelectionChanged = c.activator.Activate(id, modifier)
	return res
}

// Enter starts hovering a parcel: sets the hover state and restyles the
// feature with the hover highlight.
func (c *Controller) Enter(id model.ParcelID, at Point) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.layer.Feature(id)
	if !ok {
		return Result{}
	}
	if c.hover.Parcel != nil && c.hover.Parcel.ID != id {
		if prev, ok := c.layer.Feature(c.hover.Parcel.ID); ok {
			c.layer = c.layer.withStyle(prev.Parcel.ID, false, StyleFor(c.opts.Palette, prev.Parcel.Zoning(), prev.Selected, false))
		}
	}
	p := f.Parcel
	pos := at
	c.hover = Hover{Parcel: &p, Position: &pos}
	c.layer = c.layer.withStyle(id, true, StyleFor(c.opts.Palette, p.Zoning(), f.Selected, true))
	return Result{Handled: true, HoverChanged: true}
}

// Move updates the pointer position while hovering.
func (c *Controller) Move(at Point) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hover.Parcel == nil {
		return Result{}
	}
	pos := at
	c.hover.Position = &pos
	return Result{Handled: true, HoverChanged: true}
}

// Leave stops hovering a parcel and reverts its style to the
// selection-derived baseline.
func (c *Controller) Leave(id model.ParcelID) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.layer.Feature(id)
	if !ok {
		return Result{}
	}
	if c.hover.Parcel != nil && c.hover.Parcel.ID == id {
		c.hover = Hover{}
	}
	// The pointer left the feature it went down on: that gesture is a drag
	// and its click, if any, will not land here.
	c.gesture.dropClaim(id)
	c.layer = c.layer.withStyle(id, false, StyleFor(c.opts.Palette, f.Parcel.Zoning(), f.Selected, false))
	return Result{Handled: true, HoverChanged: true}
}

// KeyDown tracks the multi-select modifier.
func (c *Controller) KeyDown(key string) Result {
	return c.setModifier(key, true)
}

// KeyUp tracks the multi-select modifier.
func (c *Controller) KeyUp(key string) Result {
	return c.setModifier(key, false)
}

func (c *Controller) setModifier(key string, held bool) Result {
	if key != MultiSelectKey {
		return Result{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.modifier != held
	c.modifier = held
	return Result{Handled: true, HoverChanged: changed}
}

// Blur resets the modifier; focus loss swallows the key-up.
func (c *Controller) Blur() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.modifier
	c.modifier = false
	c.gesture.reset()
	return Result{Handled: true, HoverChanged: changed}
}

// Mount subscribes to view-level events. Calling Mount twice is a no-op.
func (c *Controller) Mount(src EventSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted {
		return
	}
	c.mounted = true

	c.unsubs = append(c.unsubs,
		src.Subscribe(EventPointerMove, func(ev Event) { c.notify(c.Move(ev.At)) }),
		src.Subscribe(EventKeyDown, func(ev Event) { c.notify(c.KeyDown(ev.Key)) }),
		src.Subscribe(EventKeyUp, func(ev Event) { c.notify(c.KeyUp(ev.Key)) }),
		src.Subscribe(EventBlur, func(Event) { c.notify(c.Blur()) }),
		src.Subscribe(EventResize, func(ev Event) {
			if c.opts.OnResize != nil {
				c.opts.OnResize(ev.Width)
			}
		}),
	)
}

// Unmount releases every subscription taken by Mount.
func (c *Controller) Unmount() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mounted = false
	c.hover = Hover{}
	c.modifier = false
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Mounted reports whether view-level subscriptions are live.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

func (c *Controller) notify(res Result) {
	if !res.Handled || c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(res)
}
