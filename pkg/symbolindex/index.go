// Package symbolindex is a per-crate index of named declarations, searched by
// the import assists and workspace symbol queries.
package symbolindex

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/importmap"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

// FileSymbol records where a declaration lives. Ptr points at the declaring
// item, NameRange at its name; both are only valid for the tree version the
// symbol was collected from.
type FileSymbol struct {
	Name      string
	Kind      syntax.Kind
	File      syntax.FileID
	Ptr       syntax.NodePtr
	NameRange syntax.TextRange
	Container string
}

// Query selects symbols by name. Without Exact, names match when they contain
// the query's characters in order. The zero Limit means no limit.
type Query struct {
	Text          string
	Exact         bool
	CaseSensitive bool
	OnlyTypes     bool
	Limit         int
}

const cancelCheckInterval = 1000

// Index is an immutable set of symbols ordered by name.
type Index struct {
	symbols []FileSymbol
}

func New(symbols []FileSymbol) *Index {
	sorted := slices.Clone(symbols)
	slices.SortStableFunc(sorted, func(a, b FileSymbol) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.File, b.File); c != 0 {
			return c
		}
		return cmp.Compare(a.Ptr.Range.Start, b.Ptr.Range.Start)
	})
	return &Index{symbols: sorted}
}

func (ix *Index) Len() int { return len(ix.symbols) }

// Search returns the symbols matching q in name order. It stops with
// ctx.Err() once ctx is cancelled.
func (ix *Index) Search(ctx context.Context, q Query) ([]FileSymbol, error) {
	mode := importmap.Fuzzy
	if q.Exact {
		mode = importmap.Equals
	}
	var out []FileSymbol
	for i, s := range ix.symbols {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if q.OnlyTypes && !isType(s.Kind) {
			continue
		}
		if !importmap.Matches(mode, q.CaseSensitive, q.Text, s.Name) {
			continue
		}
		out = append(out, s)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func isType(k syntax.Kind) bool {
	switch k {
	case syntax.KindStruct, syntax.KindEnum, syntax.KindUnion, syntax.KindTrait, syntax.KindTypeAlias:
		return true
	}
	return false
}

// Collect returns every named declaration in tree, including items nested in
// function bodies and the associated items of impls and traits.
func Collect(tree *syntax.Tree) []FileSymbol {
	var out []FileSymbol
	for n := range tree.Root().Preorder() {
		if !n.Kind().IsItem() {
			continue
		}
		name := syntax.NameOf(n)
		if name == nil {
			continue
		}
		out = append(out, FileSymbol{
			Name:      name.Text(),
			Kind:      n.Kind(),
			File:      tree.File(),
			Ptr:       n.Ptr(),
			NameRange: name.Range(),
			Container: containerName(n),
		})
	}
	return out
}

// containerName names the closest enclosing item: the self type of an impl
// or the name of a module, trait, enum or function.
func containerName(n *syntax.Node) string {
	for p := range n.Ancestors() {
		switch {
		case p.Kind() == syntax.KindImpl:
			if t := p.ChildByRole("type"); t != nil {
				return t.Text()
			}
			return ""
		case p.Kind().IsItem():
			if name := syntax.NameOf(p); name != nil {
				return name.Text()
			}
		}
	}
	return ""
}
