package workspace

import (
	"slices"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

type visKind int

const (
	visPublic visKind = iota
	visCrate
	// visRestricted limits access to module and its descendants. Private
	// items are restricted to the module declaring them.
	visRestricted
)

type visibility struct {
	kind   visKind
	module semantic.DefID
	crate  semantic.CrateID
}

// visibilityOf reads the visibility modifier of item n declared in m.
func (s *Snapshot) visibilityOf(n *syntax.Node, m *def) visibility {
	private := visibility{kind: visRestricted, module: m.id, crate: m.crate}
	v := n.ChildOfKind(syntax.KindVisibility)
	if v == nil {
		return private
	}
	text := strings.Join(strings.Fields(v.Text()), "")
	switch {
	case text == "pub":
		return visibility{kind: visPublic, crate: m.crate}
	case text == "pub(crate)" || text == "crate":
		return visibility{kind: visCrate, crate: m.crate}
	case text == "pub(self)":
		return private
	case text == "pub(super)":
		if m.mod.parent != 0 {
			return visibility{kind: visRestricted, module: m.mod.parent, crate: m.crate}
		}
		return private
	case strings.HasPrefix(text, "pub(in") && strings.HasSuffix(text, ")"):
		path := strings.Split(strings.TrimSuffix(strings.TrimPrefix(text, "pub(in"), ")"), "::")
		if target, ok := s.ancestorByPath(m, path); ok {
			return visibility{kind: visRestricted, module: target, crate: m.crate}
		}
		s.opts.logger.Debug("unresolved visibility path", "path", text)
	}
	return private
}

// ancestorByPath resolves the path of a pub(in ...) modifier. Such paths may
// only name m itself or one of its ancestors.
func (s *Snapshot) ancestorByPath(m *def, path []string) (semantic.DefID, bool) {
	var want []string
	cur := m
	switch {
	case len(path) > 0 && path[0] == "crate":
		want = path[1:]
	case len(path) > 0 && (path[0] == "self" || path[0] == "super"):
		for _, seg := range path {
			switch seg {
			case "self":
			case "super":
				if cur.mod.parent == 0 {
					return 0, false
				}
				cur = s.defs[cur.mod.parent]
			default:
				return 0, false
			}
		}
		return cur.id, true
	default:
		return 0, false
	}
	for a := m; a != nil; a = s.def(a.mod.parent) {
		if slices.Equal(a.mod.path, want) {
			return a.id, true
		}
	}
	return 0, false
}

// visibleFrom reports whether code in module from may use something with
// visibility v.
func (s *Snapshot) visibleFrom(v visibility, from semantic.DefID) bool {
	fm := s.def(from)
	if fm == nil {
		return v.kind == visPublic
	}
	switch v.kind {
	case visPublic:
		return true
	case visCrate:
		return fm.crate == v.crate
	case visRestricted:
		return s.isWithin(from, v.module)
	}
	return false
}

// isWithin reports whether module m is anc or nested in it.
func (s *Snapshot) isWithin(m, anc semantic.DefID) bool {
	for cur := s.def(m); cur != nil; cur = s.def(cur.mod.parent) {
		if cur.id == anc {
			return true
		}
		if cur.mod == nil {
			return false
		}
	}
	return false
}

func (s *Snapshot) IsVisibleFrom(d semantic.Definition, from semantic.Module) bool {
	if d.Kind == semantic.Local {
		return true
	}
	dd := s.def(d.ID)
	if dd == nil {
		return false
	}
	return s.visibleFrom(dd.vis, from.Def)
}
