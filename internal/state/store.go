// Package state holds the single shared Situation read by every activity.
package state

import (
	"sync/atomic"

	"github.com/sweeney/spot-outlet/internal/logic"
)

// Store is a single-slot container for the current Situation. Readers always
// see a complete snapshot; writers replace it as a whole.
type Store struct {
	cur atomic.Pointer[logic.Situation]
}

// New returns a Store holding initial.
func New(initial logic.Situation) *Store {
	s := &Store{}
	s.cur.Store(&initial)
	return s
}

// Load returns the current Situation.
func (s *Store) Load() logic.Situation {
	return *s.cur.Load()
}

// Publish replaces the current Situation unconditionally.
func (s *Store) Publish(sit logic.Situation) {
	s.cur.Store(&sit)
}

// Update applies fn to the freshest Situation and publishes the result.
// If another writer publishes in between, fn is re-applied to the newer
// value, so each writer only changes the field it owns.
// It reports whether the stored value changed.
func (s *Store) Update(fn func(logic.Situation) logic.Situation) (logic.Situation, bool) {
	for {
		old := s.cur.Load()
		next := fn(*old)
		if next.Equal(*old) {
			return *old, false
		}
		if s.cur.CompareAndSwap(old, &next) {
			return next, true
		}
	}
}
