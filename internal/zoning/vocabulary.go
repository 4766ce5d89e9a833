// Package zoning holds the zoning vocabulary, the zoning colour palette and
// display helpers shared by the map layer and the statistics export.
package zoning

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// DefaultTypes is the vocabulary served when none is configured.
var DefaultTypes = []string{"Residential", "Commercial", "Industrial", "Agricultural", "Planned"}

// ErrUnknownType is returned when a value is not part of the vocabulary.
var ErrUnknownType = eris.New("zoning: unknown zoning type")

// Vocabulary is an ordered, immutable set of valid zoning types.
type Vocabulary struct {
	types []string
	index map[string]int
}

// NewVocabulary builds a vocabulary from types, dropping blanks and duplicates
// while keeping first-seen order.
func NewVocabulary(types []string) Vocabulary {
	v := Vocabulary{
		index: make(map[string]int, len(types)),
	}
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := v.index[t]; dup {
			continue
		}
		v.index[t] = len(v.types)
		v.types = append(v.types, t)
	}
	return v
}

// Types returns a copy of the vocabulary in order.
func (v Vocabulary) Types() []string {
	out := make([]string, len(v.types))
	copy(out, v.types)
	return out
}

// Len returns the number of zoning types.
func (v Vocabulary) Len() int { return len(v.types) }

// First returns the first zoning type, or "" for an empty vocabulary.
func (v Vocabulary) First() string {
	if len(v.types) == 0 {
		return ""
	}
	return v.types[0]
}

// Contains reports whether t is an exact member.
func (v Vocabulary) Contains(t string) bool {
	_, ok := v.index[t]
	return ok
}

// Canonical resolves t case-insensitively to its vocabulary spelling.
func (v Vocabulary) Canonical(t string) (string, error) {
	t = strings.TrimSpace(t)
	if v.Contains(t) {
		return t, nil
	}
	// Casers are stateful; one per call keeps Vocabulary safe to share.
	fold := cases.Fold()
	folded := fold.String(t)
	for _, candidate := range v.types {
		if fold.String(candidate) == folded {
			return candidate, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownType, "zoning: %q", t)
}
