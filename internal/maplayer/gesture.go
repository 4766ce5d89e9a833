package maplayer

import (
	"time"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Point is a pointer position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerEvent is a low-level pointer event targeting a rendered parcel.
// GestureID is optional; when the input surface provides one, pointer-down
// and click of the same tap share it.
type PointerEvent struct {
	GestureID uint64
	Parcel    model.ParcelID
	Shift     bool
	At        Point
	Time      time.Time
}

// Result tells the host what an input event did.
type Result struct {
	// Handled is false when the event targeted no rendered feature.
	Handled bool
	// StopPropagation asks the host not to treat the event as a map
	// pan/drag start.
	StopPropagation bool
	// SelectionChanged is set when the event mutated the selection.
	SelectionChanged bool
	// HoverChanged is set when hover state or a hover style changed.
	HoverChanged bool
}

// claimWindow bounds how long a pointer-down claim waits for its click.
const claimWindow = 1500 * time.Millisecond

// gestureResolver collapses pointer-down and click of one physical tap into a
// single activation. The first event of a cycle claims it; the trailing click
// of a claimed cycle is swallowed.
type gestureResolver struct {
	claimed bool
	id      uint64
	parcel  model.ParcelID
	at      time.Time
}

// pointerDown opens a new cycle. It always activates.
func (r *gestureResolver) pointerDown(ev PointerEvent) bool {
	r.claimed = true
	r.id = ev.GestureID
	r.parcel = ev.Parcel
	r.at = ev.Time
	return true
}

// click closes the cycle. It activates only when no pointer-down claimed the
// same gesture.
func (r *gestureResolver) click(ev PointerEvent) bool {
	if !r.claimed {
		return true
	}
	r.claimed = false

	if ev.GestureID != 0 && r.id != 0 {
		return ev.GestureID != r.id
	}
	if !r.at.IsZero() && !ev.Time.IsZero() && ev.Time.Sub(r.at) > claimWindow {
		return true
	}
	return ev.Parcel != r.parcel
}

// dropClaim drops an open claim on parcel.
func (r *gestureResolver) dropClaim(parcel model.ParcelID) {
	if r.claimed && r.parcel == parcel {
		r.reset()
	}
}

// reset drops any open claim.
func (r *gestureResolver) reset() {
	*r = gestureResolver{}
}
