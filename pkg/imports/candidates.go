package imports

import (
	"iter"
	"slices"

	"github.com/mamaar/rsrefactor/pkg/semantic"
)

// CandidateSet holds definitions keyed by identity. Two hits naming the same
// declaration through different paths collapse to one member.
type CandidateSet struct {
	defs []semantic.Definition
	seen map[semantic.DefID]struct{}
}

func newCandidateSet() *CandidateSet {
	return &CandidateSet{seen: make(map[semantic.DefID]struct{})}
}

// add inserts d unless a definition with the same identity is present.
func (s *CandidateSet) add(d semantic.Definition) bool {
	if _, dup := s.seen[d.ID]; dup {
		return false
	}
	s.seen[d.ID] = struct{}{}
	s.defs = append(s.defs, d)
	return true
}

// retain drops every member for which keep reports false.
func (s *CandidateSet) retain(keep func(semantic.Definition) bool) {
	s.defs = slices.DeleteFunc(s.defs, func(d semantic.Definition) bool {
		if keep(d) {
			return false
		}
		delete(s.seen, d.ID)
		return true
	})
}

func (s *CandidateSet) Len() int { return len(s.defs) }

// Contains reports whether a definition with id is a member.
func (s *CandidateSet) Contains(id semantic.DefID) bool {
	_, ok := s.seen[id]
	return ok
}

// All yields the members. The order carries no meaning.
func (s *CandidateSet) All() iter.Seq[semantic.Definition] {
	return slices.Values(s.defs)
}

// Definitions returns a copy of the members.
func (s *CandidateSet) Definitions() []semantic.Definition {
	return slices.Clone(s.defs)
}
