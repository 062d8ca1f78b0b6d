// Package syntax provides the immutable, language-neutral syntax trees the
// refactoring engine operates on. Trees are produced by a language front end
// (see package rust) and are never modified after construction, so a single
// tree may be shared by any number of concurrent requests.
package syntax

import (
	"fmt"
	"iter"
	"sync"
)

// FileID identifies a source file within a workspace snapshot.
type FileID uint32

// TextRange is a half-open byte range [Start, End) into a file's text.
type TextRange struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by r.
func (r TextRange) Len() int { return r.End - r.Start }

// Contains reports whether offset lies within r. The end is inclusive so that
// a cursor placed directly after an identifier still selects it.
func (r TextRange) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// ContainsRange reports whether other lies entirely within r.
func (r TextRange) ContainsRange(other TextRange) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// Intersects reports whether r and other share at least one byte.
func (r TextRange) Intersects(other TextRange) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r TextRange) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// NodePtr is a detached reference to a node: its kind and range. Pointers are
// stored by indexes and resolved again against a fresh tree, which fails when
// the file has changed underneath them.
type NodePtr struct {
	Kind  Kind
	Range TextRange
}

// Node is a single element of a syntax tree.
type Node struct {
	kind     Kind
	rng      TextRange
	role     string
	parent   *Node
	children []*Node
	tree     *Tree
}

// NewNode builds a detached node. Children are adopted in order; role names
// the grammatical slot the node fills in its parent ("name", "body", ...).
func NewNode(kind Kind, rng TextRange, role string, children ...*Node) *Node {
	n := &Node{kind: kind, rng: rng, role: role, children: children}
	for _, c := range children {
		c.parent = n
	}
	return n
}

func (n *Node) Kind() Kind        { return n.kind }
func (n *Node) Range() TextRange  { return n.rng }
func (n *Node) Role() string      { return n.role }
func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }
func (n *Node) Tree() *Tree       { return n.tree }
func (n *Node) Ptr() NodePtr      { return NodePtr{Kind: n.kind, Range: n.rng} }

// Is reports whether n has one of the given kinds.
func (n *Node) Is(kinds ...Kind) bool {
	for _, k := range kinds {
		if n.kind == k {
			return true
		}
	}
	return false
}

// Text returns the source text spanned by n.
func (n *Node) Text() string {
	if n.tree == nil {
		return ""
	}
	return n.tree.text[n.rng.Start:n.rng.End]
}

// ChildOfKind returns the first direct child of the given kind.
func (n *Node) ChildOfKind(kind Kind) *Node {
	for _, c := range n.children {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns the direct children of the given kind in order.
func (n *Node) ChildrenOfKind(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ChildByRole returns the first direct child filling role.
func (n *Node) ChildByRole(role string) *Node {
	for _, c := range n.children {
		if c.role == role {
			return c
		}
	}
	return nil
}

// Ancestors yields n's parent, grandparent and so on up to the root.
func (n *Node) Ancestors() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for p := n.parent; p != nil; p = p.parent {
			if !yield(p) {
				return
			}
		}
	}
}

// Ancestor returns the closest ancestor of the given kind.
func (n *Node) Ancestor(kind Kind) *Node {
	for p := range n.Ancestors() {
		if p.kind == kind {
			return p
		}
	}
	return nil
}

// Preorder yields n and all its descendants, parents before children.
func (n *Node) Preorder() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(yield)
	}
}

func (n *Node) walk(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.children {
		if !c.walk(yield) {
			return false
		}
	}
	return true
}

// Index returns n's position among its parent's children, or -1 for a root.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// Tree is an immutable parsed file.
type Tree struct {
	file  FileID
	path  string
	text  string
	root  *Node

	linesOnce sync.Once
	lines     *LineIndex
}

// NewTree wraps root as the tree for file. Every node below root is bound to
// the returned tree; root must not be shared with another tree.
func NewTree(file FileID, path, text string, root *Node) *Tree {
	t := &Tree{file: file, path: path, text: text, root: root}
	for n := range root.Preorder() {
		n.tree = t
	}
	return t
}

func (t *Tree) File() FileID   { return t.file }
func (t *Tree) Path() string   { return t.path }
func (t *Tree) Source() string { return t.text }
func (t *Tree) Root() *Node    { return t.root }

// Lines returns the line index of the tree's text, building it on first use.
func (t *Tree) Lines() *LineIndex {
	t.linesOnce.Do(func() { t.lines = NewLineIndex(t.text) })
	return t.lines
}

// FindNodeAt returns the smallest node of the given kind whose range contains
// offset, or nil.
func (t *Tree) FindNodeAt(offset int, kind Kind) *Node {
	var best *Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if !n.rng.Contains(offset) {
			return
		}
		if n.kind == kind && (best == nil || n.rng.Len() < best.rng.Len()) {
			best = n
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
	return best
}

// Resolve finds the node ptr was taken from. It fails when no node of the
// same kind spans exactly the same range, which happens once the file has
// been edited.
func (t *Tree) Resolve(ptr NodePtr) (*Node, bool) {
	n := t.root
	for {
		if n.rng == ptr.Range && n.kind == ptr.Kind {
			return n, true
		}
		var next *Node
		for _, c := range n.children {
			if c.rng.ContainsRange(ptr.Range) {
				if c.rng == ptr.Range && c.kind == ptr.Kind {
					return c, true
				}
				if next == nil {
					next = c
				}
			}
		}
		if next == nil {
			return nil, false
		}
		n = next
	}
}
