package workspace

import (
	"slices"

	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

// useImport is one leaf of a use tree: `use a::{b as c}` yields the import
// of a::b named c.
type useImport struct {
	module *def
	block  *syntax.Node
	file   syntax.FileID
	node   *syntax.Node
	path   []string
	alias  string
	glob   bool
	vis    visibility

	done    bool
	targets []semantic.DefID
}

// name is the name the import binds, or "" for globs and `as _`.
func (u *useImport) name() string {
	if u.glob || u.alias == "_" {
		return ""
	}
	if u.alias != "" {
		return u.alias
	}
	return u.path[len(u.path)-1]
}

func (s *Snapshot) collectUse(m *def, fid syntax.FileID, n *syntax.Node, list *syntax.Node, inBlock bool) {
	vis := s.visibilityOf(n, m)
	top := n.ChildOfKind(syntax.KindUseTree)
	if top == nil {
		return
	}
	flattenUse(top, nil, func(path []string, alias string, glob bool, leaf *syntax.Node) {
		if len(path) == 0 {
			return
		}
		u := &useImport{module: m, file: fid, node: leaf, path: path, alias: alias, glob: glob, vis: vis}
		if inBlock {
			u.block = list
		}
		s.uses = append(s.uses, u)
		s.useByNode[leaf] = u
	})
}

// flattenUse walks a use tree and reports every import it declares with its
// full path.
func flattenUse(t *syntax.Node, prefix []string, emit func(path []string, alias string, glob bool, leaf *syntax.Node)) {
	path := append(slices.Clone(prefix), syntax.Segments(t.ChildByRole("path"))...)
	if t.ChildByRole("star") != nil {
		emit(path, "", true, t)
		return
	}
	if kids := t.ChildrenOfKind(syntax.KindUseTree); len(kids) > 0 {
		for _, k := range kids {
			flattenUse(k, path, emit)
		}
		return
	}
	if t.ChildByRole("path") == nil {
		return
	}
	alias := ""
	if a := t.ChildByRole("alias"); a != nil {
		alias = a.Text()
	}
	if n := len(path); n > 1 && path[n-1] == "self" {
		path = path[:n-1]
	}
	emit(path, alias, false, t)
}

// resolveImports binds every module-level import. Imports may depend on
// each other in any order, so resolution repeats until a round adds no new
// binding.
func (s *Snapshot) resolveImports() {
	var pending []*useImport
	for _, u := range s.uses {
		if u.block == nil {
			pending = append(pending, u)
		}
	}
	rounds := 0
	for changed := true; changed; rounds++ {
		changed = false
		for _, u := range pending {
			sc := u.module.mod.scope
			if u.glob {
				changed = s.applyGlob(u, sc) || changed
			} else if !u.done {
				changed = s.applyNamed(u, sc) || changed
			}
		}
	}

	unresolved := 0
	for _, u := range pending {
		if !u.glob && !u.done {
			unresolved++
		}
	}
	s.opts.logger.Debug("imports resolved", "imports", len(pending), "unresolved", unresolved, "rounds", rounds)
}

// resolveBlockImports binds imports declared inside function bodies. They
// see module scopes, which are complete by now.
func (s *Snapshot) resolveBlockImports() {
	for range 2 {
		for _, u := range s.uses {
			if u.block == nil {
				continue
			}
			sc := s.blocks[u.block]
			if u.glob {
				s.applyGlob(u, sc)
			} else if !u.done {
				s.applyNamed(u, sc)
			}
		}
	}
}

func (s *Snapshot) importCtx(u *useImport) lookupCtx {
	lc := lookupCtx{module: u.module, file: u.file}
	if u.block != nil {
		lc.node = u.block
	}
	return lc
}

func (s *Snapshot) applyNamed(u *useImport, sc *scope) bool {
	lc := s.importCtx(u)
	name := u.name()
	found := false
	for _, ns := range allNamespaces {
		for _, d := range s.resolve(lc, u.path, ns) {
			if d.Kind == semantic.Local {
				continue
			}
			found = true
			if !slices.Contains(u.targets, d.ID) {
				u.targets = append(u.targets, d.ID)
			}
			if name != "" {
				sc.add(ns, name, entry{def: d.ID, vis: u.vis})
			}
		}
	}
	u.done = found
	return found
}

// applyGlob copies every binding of the glob's target that the importing
// module can see. It reports whether anything new was bound.
func (s *Snapshot) applyGlob(u *useImport, sc *scope) bool {
	targets := s.resolve(s.importCtx(u), u.path, nsTypes)
	if len(targets) != 1 {
		return false
	}
	t := s.def(targets[0].ID)
	if t == nil {
		return false
	}
	type binding struct {
		ns   namespace
		name string
		def  semantic.DefID
	}
	var add []binding
	switch {
	case t.mod != nil:
		for ns := range nsCount {
			for name, entries := range t.mod.scope.names[ns] {
				for _, e := range entries {
					if s.visibleFrom(e.vis, u.module.id) {
						add = append(add, binding{ns, name, e.def})
					}
				}
			}
		}
	case t.kind == semantic.Enum:
		for _, v := range t.members {
			vd := s.defs[v]
			add = append(add, binding{nsTypes, vd.name, v}, binding{nsValues, vd.name, v})
		}
	}
	changed := false
	for _, b := range add {
		changed = sc.add(b.ns, b.name, entry{def: b.def, vis: u.vis, glob: true}) || changed
	}
	if len(add) > 0 {
		u.done = true
	}
	return changed
}

// resolveImpls resolves the self type and trait of every impl block.
func (s *Snapshot) resolveImpls() {
	s.implsBySelf = make(map[semantic.DefID][]*impl)
	for _, im := range s.impls {
		lc := lookupCtx{module: s.defs[im.module], file: im.file, node: im.node}
		im.self = s.resolveTypeRef(lc, im.node.ChildByRole("type"))
		im.trait = s.resolveTypeRef(lc, im.node.ChildByRole("trait"))
		if im.self == 0 {
			continue
		}
		s.implsBySelf[im.self] = append(s.implsBySelf[im.self], im)
		for _, id := range im.items {
			s.defs[id].owner = im.self
		}
	}
}

func (s *Snapshot) resolveTypeRef(lc lookupCtx, ty *syntax.Node) semantic.DefID {
	if ty == nil {
		return 0
	}
	segs := syntax.Segments(ty.ChildOfKind(syntax.KindPath))
	defs := s.resolve(lc, segs, nsTypes)
	if len(defs) != 1 || defs[0].Kind == semantic.Local {
		return 0
	}
	return defs[0].ID
}
