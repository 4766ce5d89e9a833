// Package workflow implements the confirm-then-apply zoning update.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/service"
)

// State is the update workflow state.
type State int

const (
	Idle State = iota
	Confirming
	Applying
)

func (s State) String() string {
	switch s {
	case Confirming:
		return "confirming"
	case Applying:
		return "applying"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "confirming":
		*s = Confirming
	case "applying":
		*s = Applying
	default:
		return eris.Errorf("workflow: unknown state %q", text)
	}
	return nil
}

var (
	// ErrNotReady is returned when there is nothing to update.
	ErrNotReady = eris.New("workflow: selection is empty or already has the target zoning")
	// ErrBusy is returned while an update is being applied.
	ErrBusy = eris.New("workflow: update in progress")
	// ErrNotConfirming is returned by Confirm outside the Confirming state.
	ErrNotConfirming = eris.New("workflow: no update awaiting confirmation")
)

// UpdateFailedMessage is the notice shown when the remote update fails.
const UpdateFailedMessage = "Failed to update zoning"

// Selection is the part of the selection store the workflow reads and clears.
type Selection interface {
	IDs() []model.ParcelID
	Target() string
	Changed() bool
	Empty() bool
	Clear()
}

// Patcher applies a confirmed zoning change to the local parcel cache.
type Patcher interface {
	ApplyZoning(ids []model.ParcelID, zoningType string) int
}

// Modes returns touch Select mode to View after a successful update.
type Modes interface {
	Reset()
}

// Updater performs the remote zoning update.
type Updater interface {
	UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error
}

// NoticeKind classifies a notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient, dismissable message for the operator.
type Notice struct {
	ID      string     `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

// NewNotice creates a notice with a fresh id.
func NewNotice(kind NoticeKind, msg string, err error) Notice {
	return Notice{ID: uuid.NewString(), Kind: kind, Message: msg, Err: err}
}

// SuccessMessage is the notice text for a completed update.
func SuccessMessage(count int, zoningType string) string {
	return fmt.Sprintf("Successfully updated %d parcels to %s", count, zoningType)
}

// Request is a snapshot of the selection taken when an update is applied.
type Request struct {
	IDs        []model.ParcelID
	ZoningType string
}

// Workflow is the Idle → Confirming → Applying → Idle state machine.
type Workflow struct {
	updater Updater
	sel     Selection
	cache   Patcher
	modes   Modes
	log     *zap.Logger

	mu    sync.Mutex
	state State
}

// New creates a workflow in the Idle state.
func New(updater Updater, sel Selection, cache Patcher, modes Modes) *Workflow {
	return &Workflow{
		updater: updater,
		sel:     sel,
		cache:   cache,
		modes:   modes,
		log:     zap.L().With(zap.String("component", "workflow")),
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Ready reports whether RequestUpdate would move to Confirming.
func (w *Workflow) Ready() bool {
	return !w.sel.Empty() && w.sel.Changed()
}

// RequestUpdate moves Idle to Confirming. It is rejected with ErrBusy while
// applying and ErrNotReady when the selection is empty or unchanged. A
// request while already confirming is a no-op.
func (w *Workflow) RequestUpdate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Applying:
		return ErrBusy
	case Confirming:
		return nil
	}
	if !w.Ready() {
		return ErrNotReady
	}
	w.state = Confirming
	return nil
}

// Cancel moves Confirming back to Idle without mutating anything.
func (w *Workflow) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Confirming {
		return false
	}
	w.state = Idle
	return true
}

// Begin moves Confirming to Applying and snapshots the selection to send.
// Callers that run the remote update elsewhere pair it with Finish.
func (w *Workflow) Begin() (Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Applying:
		return Request{}, ErrBusy
	case Idle:
		return Request{}, ErrNotConfirming
	}
	req := Request{IDs: w.sel.IDs(), ZoningType: w.sel.Target()}
	if len(req.IDs) == 0 || req.ZoningType == "" {
		w.state = Idle
		return Request{}, ErrNotReady
	}
	w.state = Applying
	return req, nil
}

// Finish completes an update started by Begin. On success the cache is
// patched, the selection cleared and touch Select mode returned to View. On
// failure nothing is mutated. Either way the workflow returns to Idle.
func (w *Workflow) Finish(req Request, updateErr error) Notice {
	defer func() {
		w.mu.Lock()
		w.state = Idle
		w.mu.Unlock()
	}()

	if updateErr != nil {
		err := &service.UpdateError{Count: len(req.IDs), ZoningType: req.ZoningType, Err: updateErr}
		w.log.Error("zoning update failed",
			zap.Int("parcels", len(req.IDs)),
			zap.String("zoning_type", req.ZoningType),
			zap.Error(updateErr),
		)
		return NewNotice(NoticeError, UpdateFailedMessage, err)
	}

	patched := w.cache.ApplyZoning(req.IDs, req.ZoningType)
	w.sel.Clear()
	w.modes.Reset()

	w.log.Info("zoning updated",
		zap.Int("parcels", len(req.IDs)),
		zap.Int("patched", patched),
		zap.String("zoning_type", req.ZoningType),
	)
	return NewNotice(NoticeSuccess, SuccessMessage(len(req.IDs), req.ZoningType), nil)
}

// Confirm runs Begin, the remote update and Finish synchronously.
func (w *Workflow) Confirm(ctx context.Context) (Notice, error) {
	req, err := w.Begin()
	if err != nil {
		return Notice{}, err
	}
	return w.Finish(req, w.updater.UpdateZoning(ctx, req.IDs, req.ZoningType)), nil
}

// Apply sends req to the remote service.
func (w *Workflow) Apply(ctx context.Context, req Request) error {
	return w.updater.UpdateZoning(ctx, req.IDs, req.ZoningType)
}
