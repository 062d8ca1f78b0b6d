// Package importmap indexes the importable items a crate exports so that
// dependents can search them by name or path.
package importmap

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SearchMode selects how a query's text is compared with candidates.
type SearchMode int

const (
	// Equals matches candidates whose text is exactly the query.
	Equals SearchMode = iota
	// Contains matches candidates containing the query as a substring.
	Contains
	// Fuzzy matches candidates containing the query's characters in order.
	Fuzzy
)

func (m SearchMode) String() string {
	switch m {
	case Equals:
		return "equals"
	case Contains:
		return "contains"
	case Fuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Query describes a search. The zero Limit means no limit.
type Query struct {
	Text              string
	Mode              SearchMode
	NameOnly          bool
	CaseSensitive     bool
	Limit             int
	ExcludeAssocItems bool
}

// Entry is one importable item and the path it is reached by, starting with
// the crate name.
type Entry[T any] struct {
	Item  T
	Path  []string
	Assoc bool
}

// Name returns the last path segment.
func (e Entry[T]) Name() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[len(e.Path)-1]
}

// PathString joins the path with "::".
func (e Entry[T]) PathString() string {
	return strings.Join(e.Path, "::")
}

// Map is an immutable import map. Entries are kept ordered by path so search
// results are deterministic.
type Map[T any] struct {
	entries []Entry[T]
}

// cancelCheckInterval is how many entries are scanned between context checks.
const cancelCheckInterval = 1000

func New[T any](entries []Entry[T]) *Map[T] {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry[T]) int {
		if c := len(a.Path) - len(b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.PathString(), b.PathString())
	})
	return &Map[T]{entries: sorted}
}

func (m *Map[T]) Len() int { return len(m.entries) }

// Entries yields every entry in order.
func (m *Map[T]) Entries() iter.Seq[Entry[T]] {
	return slices.Values(m.entries)
}

// Search yields entries matching q, at most q.Limit of them. The sequence
// ends early once ctx is cancelled; callers distinguish that case by
// checking ctx.Err().
func (m *Map[T]) Search(ctx context.Context, q Query) iter.Seq[Entry[T]] {
	return func(yield func(Entry[T]) bool) {
		found := 0
		for i, e := range m.entries {
			if i%cancelCheckInterval == 0 && ctx.Err() != nil {
				return
			}
			if q.ExcludeAssocItems && e.Assoc {
				continue
			}
			text := e.PathString()
			if q.NameOnly {
				text = e.Name()
			}
			if !Matches(q.Mode, q.CaseSensitive, q.Text, text) {
				continue
			}
			if !yield(e) {
				return
			}
			found++
			if q.Limit > 0 && found >= q.Limit {
				return
			}
		}
	}
}

// Matches compares a candidate's text with a query's text.
func Matches(mode SearchMode, caseSensitive bool, query, candidate string) bool {
	switch mode {
	case Equals:
		if caseSensitive {
			return candidate == query
		}
		return strings.EqualFold(candidate, query)
	case Contains:
		if caseSensitive {
			return strings.Contains(candidate, query)
		}
		return strings.Contains(strings.ToLower(candidate), strings.ToLower(query))
	case Fuzzy:
		if caseSensitive {
			return fuzzy.Match(query, candidate)
		}
		return fuzzy.MatchFold(query, candidate)
	}
	return false
}
