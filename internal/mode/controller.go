// Package mode implements the View/Select mode state machine used on
// touch-sized viewports.
package mode

import (
	"sync"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/selection"
)

// DefaultTouchThreshold is the viewport width, in pixels, below which the
// layout is treated as touch-sized.
const DefaultTouchThreshold = 768

// Mode is the interaction mode.
type Mode int

const (
	// View is inspect-only; a tap promotes to Select.
	View Mode = iota
	// Select builds a multi-parcel selection.
	Select
	// Active is reported on desktop viewports where there is no View state.
	Active
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Select:
		return "select"
	case Active:
		return "active"
	default:
		return "view"
	}
}

// Selector is the subset of the selection store the controller drives.
type Selector interface {
	Select(id model.ParcelID, mode selection.Mode) bool
	Clear()
	Empty() bool
}

// Controller is the ModeController.
type Controller struct {
	mu        sync.Mutex
	sel       Selector
	threshold int
	width     int
	mode      Mode
}

// NewController creates a controller for a viewport of the given width.
// A non-positive threshold selects DefaultTouchThreshold.
func NewController(sel Selector, width, threshold int) *Controller {
	if threshold <= 0 {
		threshold = DefaultTouchThreshold
	}
	c := &Controller{sel: sel, threshold: threshold, width: width}
	c.mode = c.initialMode()
	return c
}

func (c *Controller) initialMode() Mode {
	if c.touchLocked() {
		return View
	}
	return Active
}

func (c *Controller) touchLocked() bool {
	return c.width < c.threshold
}

// IsTouch reports whether the viewport is touch-sized.
func (c *Controller) IsTouch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touchLocked()
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// InSelectMode reports whether a touch viewport is in Select mode.
func (c *Controller) InSelectMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == Select
}

// Toggle flips View and Select on touch viewports. Leaving Select clears the
// selection. It is a no-op on desktop viewports.
func (c *Controller) Toggle() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case View:
		c.mode = Select
	case Select:
		c.mode = View
		c.sel.Clear()
	}
	return c.mode
}

// Reset returns a touch viewport in Select mode to View without touching the
// selection. Used after a successful update has already cleared it.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Select {
		c.mode = View
	}
}

// Activate resolves one logical tap on parcel id into exactly one selection
// call. On touch viewports a tap in View both selects the parcel and promotes
// to Select; in Select it toggles. On desktop the modifier chooses toggle
// over replace. It reports whether the selection changed.
func (c *Controller) Activate(id model.ParcelID, modifier bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case View:
		if !c.sel.Select(id, selection.Replace) {
			return false
		}
		c.mode = Select
		return true
	case Select:
		return c.sel.Select(id, selection.Toggle)
	default:
		if modifier {
			return c.sel.Select(id, selection.Toggle)
		}
		return c.sel.Select(id, selection.Replace)
	}
}

// Resize updates the viewport width. Crossing out of touch layout makes the
// controller inert; crossing into it lands in View, or in Select when a
// selection already exists. The selection is kept either way.
func (c *Controller) Resize(width int) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasTouch := c.touchLocked()
	c.width = width
	isTouch := c.touchLocked()

	switch {
	case wasTouch && !isTouch:
		c.mode = Active
	case !wasTouch && isTouch:
		c.mode = View
		if !c.sel.Empty() {
			c.mode = Select
		}
	}
	return c.mode
}
