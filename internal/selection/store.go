// Package selection owns the set of selected parcels and the target zoning
// choice for a bulk update.
package selection

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/parcel"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

// Mode selects how Select mutates the selection.
type Mode int

const (
	// Replace sets the selection to a single parcel, or clears it when that
	// parcel is already the only one selected.
	Replace Mode = iota
	// Toggle adds the parcel if absent and removes it if present.
	Toggle
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == Toggle {
		return "toggle"
	}
	return "replace"
}

// ErrInvalidTarget is returned by SetTarget for values outside the vocabulary.
var ErrInvalidTarget = eris.New("selection: target is not a vocabulary member")

// VocabularySource supplies the zoning vocabulary.
type VocabularySource interface {
	Vocabulary() zoning.Vocabulary
}

// Source is everything the store reads from the parcel cache.
type Source interface {
	parcel.Reader
	VocabularySource
}

// Store is the SelectionStore. It has no side effects beyond its own state.
type Store struct {
	mu     sync.RWMutex
	src    Source
	ids    map[model.ParcelID]struct{}
	target string
}

// NewStore creates an empty selection over src.
func NewStore(src Source) *Store {
	return &Store{src: src, ids: make(map[model.ParcelID]struct{})}
}

// Select applies a selection gesture for id. Ids that are not in the cache are
// ignored. It reports whether the selection changed.
func (s *Store) Select(id model.ParcelID, mode Mode) bool {
	if !s.src.Contains(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wasEmpty := len(s.ids) == 0
	_, present := s.ids[id]

	switch mode {
	case Toggle:
		if present {
			delete(s.ids, id)
		} else {
			s.ids[id] = struct{}{}
		}
	default:
		if present && len(s.ids) == 1 {
			delete(s.ids, id)
		} else {
			s.ids = map[model.ParcelID]struct{}{id: {}}
		}
	}

	s.afterChangeLocked(wasEmpty, id)
	return true
}

// SetTarget sets the target zoning choice. It must be a vocabulary member or empty.
func (s *Store) SetTarget(value string) error {
	if value != "" && !s.src.Vocabulary().Contains(value) {
		return eris.Wrapf(ErrInvalidTarget, "selection: %q", value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = value
	return nil
}

// Clear empties the selection and the target choice.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[model.ParcelID]struct{})
	s.target = ""
}

// Prune drops selected ids that no longer reference a cached parcel and
// returns how many were dropped.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.ids {
		if !s.src.Contains(id) {
			delete(s.ids, id)
			n++
		}
	}
	if n > 0 && len(s.ids) == 0 {
		s.target = ""
	}
	return n
}

// afterChangeLocked maintains the target invariants after a mutation.
func (s *Store) afterChangeLocked(wasEmpty bool, id model.ParcelID) {
	switch {
	case len(s.ids) == 0:
		s.target = ""
	case wasEmpty:
		s.target = s.initialTargetLocked(id)
	}
}

func (s *Store) initialTargetLocked(id model.ParcelID) string {
	if p, ok := s.src.Get(id); ok && p.HasZoning() {
		return p.Zoning()
	}
	return s.src.Vocabulary().First()
}

// Changed reports whether the target differs from the current zoning of at
// least one selected parcel. It is derived on every call.
func (s *Store) Changed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.ids) == 0 || s.target == "" {
		return false
	}
	for id := range s.ids {
		p, ok := s.src.Get(id)
		if !ok || p.Zoning() != s.target {
			return true
		}
	}
	return false
}

// Target returns the current target zoning choice.
func (s *Store) Target() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// Count returns the number of selected parcels.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Empty reports whether nothing is selected.
func (s *Store) Empty() bool { return s.Count() == 0 }

// Contains reports whether id is selected.
func (s *Store) Contains(id model.ParcelID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected ids in ascending order.
func (s *Store) IDs() []model.ParcelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ParcelID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set returns a copy of the selection as a set for membership tests.
func (s *Store) Set() map[model.ParcelID]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ParcelID]bool, len(s.ids))
	for id := range s.ids {
		out[id] = true
	}
	return out
}
