// Package pathstore holds the not-yet-explored sibling states produced by
// forking (spec.md §4.5), in the depth-first order the driver pops them
// back out in.
//
// Grounded on original_source/symex_take_2/src/executor/vm.rs's use of a
// path_selection::DFSPathSelection/Path pair (save_path on fork, get_path
// to resume); that module's own source was not present in the retrieved
// reference pack, so the shape here is reconstructed from vm.rs's call
// sites: a path carries a State plus the extra constraint it was forked
// under, and exploration is strictly last-in-first-out.
package pathstore

import (
	"github.com/ivajon/symex/smt"
	"github.com/ivajon/symex/state"
)

// entry is one pending fork: the sibling state as it stood at the moment
// of the fork, plus the additional constraint asserted against it that the
// continuing path did not take.
type entry struct {
	state      *state.State
	constraint smt.Expression
}

// Store is a LIFO stack of pending paths, giving depth-first exploration
// order: the most recently forked sibling is resumed next, matching
// vm.rs's get_path/save_path pairing around a Vec used as a stack.
type Store struct {
	paths []entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Push saves a forked sibling state for later exploration, along with the
// constraint that was asserted on it at fork time (already asserted into
// s's own Constraints() by the caller — Store does not re-assert it, it
// only retains it for diagnostics). This is directly usable as an
// executor.PushFork.
func (st *Store) Push(s *state.State, constraint smt.Expression) {
	st.paths = append(st.paths, entry{state: s, constraint: constraint})
}

// Pop removes and returns the most recently pushed path, per the
// depth-first exploration order of spec.md §4.5. ok is false once the
// store is empty, meaning every path has been explored to termination.
func (st *Store) Pop() (s *state.State, constraint smt.Expression, ok bool) {
	if len(st.paths) == 0 {
		return nil, nil, false
	}
	last := len(st.paths) - 1
	e := st.paths[last]
	st.paths = st.paths[:last]
	return e.state, e.constraint, true
}

// Len reports how many unexplored paths remain.
func (st *Store) Len() int {
	return len(st.paths)
}

// Empty reports whether every saved path has been popped.
func (st *Store) Empty() bool {
	return len(st.paths) == 0
}
