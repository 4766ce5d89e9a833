package session

import (
	"context"

	"github.com/sells-group/zoning-cli/internal/maplayer"
	"github.com/sells-group/zoning-cli/internal/mode"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/workflow"
)

// PointerDown forwards a pointer-down on a rendered parcel.
func (s *Session) PointerDown(ev maplayer.PointerEvent) (maplayer.Result, error) {
	return s.pointer(ev, s.layer.PointerDown)
}

// Click forwards a click on a rendered parcel.
func (s *Session) Click(ev maplayer.PointerEvent) (maplayer.Result, error) {
	return s.pointer(ev, s.layer.Click)
}

func (s *Session) pointer(ev maplayer.PointerEvent, fn func(maplayer.PointerEvent) maplayer.Result) (maplayer.Result, error) {
	var res maplayer.Result
	err := s.do(func() {
		if !s.loaded {
			return
		}
		res = fn(ev)
		if res.SelectionChanged {
			s.selectionChanged()
		}
		if res.Handled {
			s.publish()
		}
	})
	return res, err
}

// Enter starts hovering a parcel.
func (s *Session) Enter(id model.ParcelID, at maplayer.Point) (maplayer.Result, error) {
	var res maplayer.Result
	err := s.do(func() {
		res = s.layer.Enter(id, at)
		if res.HoverChanged {
			s.layerRev++
			s.publish()
		}
	})
	return res, err
}

// Leave stops hovering a parcel.
func (s *Session) Leave(id model.ParcelID) (maplayer.Result, error) {
	var res maplayer.Result
	err := s.do(func() {
		res = s.layer.Leave(id)
		if res.HoverChanged {
			s.layerRev++
			s.publish()
		}
	})
	return res, err
}

// Emit delivers a view-level event (pointer move, key, blur, resize) to the
// listeners mounted for this view.
func (s *Session) Emit(ev maplayer.Event) error {
	return s.do(func() { s.bus.Emit(ev) })
}

// ToggleMode switches touch viewports between View and Select.
func (s *Session) ToggleMode() (mode.Mode, error) {
	var m mode.Mode
	err := s.do(func() {
		hadSelection := !s.sel.Empty()
		m = s.modes.Toggle()
		if hadSelection && s.sel.Empty() {
			s.selectionChanged()
		}
		s.publish()
	})
	return m, err
}

// SetTarget sets the target zoning choice.
func (s *Session) SetTarget(value string) error {
	var err error
	if doErr := s.do(func() {
		if !s.loaded {
			err = ErrNotLoaded
			return
		}
		canonical := value
		if value != "" {
			if canonical, err = s.cache.Vocabulary().Canonical(value); err != nil {
				return
			}
		}
		if err = s.sel.SetTarget(canonical); err != nil {
			return
		}
		s.refreshStats()
		s.publish()
	}); doErr != nil {
		return doErr
	}
	return err
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() error {
	return s.do(func() {
		if s.sel.Empty() {
			return
		}
		s.sel.Clear()
		s.selectionChanged()
		s.publish()
	})
}

// RequestUpdate opens the confirmation step.
func (s *Session) RequestUpdate() error {
	var err error
	if doErr := s.do(func() {
		if err = s.wf.RequestUpdate(); err == nil {
			s.publish()
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// Cancel closes the confirmation step without changes.
func (s *Session) Cancel() error {
	return s.do(func() {
		if s.wf.Cancel() {
			s.publish()
		}
	})
}

// Confirm starts applying the pending update. The remote call runs in the
// background; its outcome arrives as a notice in a later snapshot.
func (s *Session) Confirm() error {
	var err error
	if doErr := s.do(func() {
		var req workflow.Request
		if req, err = s.wf.Begin(); err != nil {
			return
		}
		s.publish()
		s.goAsync(func() { s.apply(req) })
	}); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) apply(req workflow.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.UpdateTimeout)
	defer cancel()
	updateErr := s.wf.Apply(ctx, req)

	s.post(func() {
		notice := s.wf.Finish(req, updateErr)
		s.addNotice(notice)
		if updateErr == nil {
			s.selectionChanged()
		}
		s.publish()
	})
}

// Dismiss removes a notice.
func (s *Session) Dismiss(noticeID string) error {
	return s.do(func() {
		for i, n := range s.notices {
			if n.ID == noticeID {
				s.notices = append(s.notices[:i:i], s.notices[i+1:]...)
				s.publish()
				return
			}
		}
	})
}

// Reload starts a new data-load session, which frames the viewport again.
func (s *Session) Reload() error {
	return s.do(func() {
		s.log.Info("reloading parcel data")
		s.Load()
	})
}

// Subscribe registers fn to receive every published snapshot. fn runs on the
// session loop and must not call back into the session.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func(), err error) {
	var id int
	if err := s.do(func() {
		id = s.nextLis
		s.nextLis++
		s.listeners[id] = fn
		fn(s.snapshot())
	}); err != nil {
		return func() {}, err
	}
	return func() {
		_ = s.do(func() { delete(s.listeners, id) })
	}, nil
}

// Snapshot returns the current presentation state.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.do(func() { snap = s.snapshot() })
	return snap, err
}

func (s *Session) publish() {
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshot()
	for _, fn := range s.listeners {
		fn(snap)
	}
}
