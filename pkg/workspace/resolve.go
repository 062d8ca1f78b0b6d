package workspace

import (
	"context"
	"iter"
	"maps"
	"slices"

	"github.com/mamaar/rsrefactor/pkg/importmap"
	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

// lookupCtx is the position a name is looked up from. node may be nil for
// lookups that only see module scopes.
type lookupCtx struct {
	module *def
	file   syntax.FileID
	node   *syntax.Node
	locals bool
}

// resolve resolves path in namespace ns. Every segment but the last names a
// module, type or enum.
func (s *Snapshot) resolve(lc lookupCtx, path []string, ns namespace) []semantic.Definition {
	if len(path) == 0 || lc.module == nil {
		return nil
	}
	var cur []semantic.DefID
	rest := path[1:]
	switch path[0] {
	case "crate":
		cur = []semantic.DefID{s.crates[lc.module.crate].rootMod}
	case "self":
		if len(path) == 1 && ns == nsValues && lc.locals {
			return []semantic.Definition{{Kind: semantic.Local, Name: "self"}}
		}
		cur = []semantic.DefID{lc.module.id}
	case "super":
		if lc.module.mod.parent == 0 {
			return nil
		}
		cur = []semantic.DefID{lc.module.mod.parent}
	case "Self":
		self := s.selfType(lc)
		if self == 0 {
			return nil
		}
		cur = []semantic.DefID{self}
	default:
		if len(path) == 1 {
			return s.resolveName(lc, path[0], ns)
		}
		for _, d := range s.resolveName(lc, path[0], nsTypes) {
			if d.Kind != semantic.Local {
				cur = append(cur, d.ID)
			}
		}
	}

	for i, seg := range rest {
		want := nsTypes
		if i == len(rest)-1 {
			want = ns
		}
		var next []semantic.DefID
		for _, c := range cur {
			if seg == "super" {
				if d := s.def(c); d != nil && d.mod != nil && d.mod.parent != 0 {
					next = append(next, d.mod.parent)
				}
				continue
			}
			next = append(next, s.members(c, seg, want)...)
		}
		cur = uniqueIDs(next)
		if len(cur) == 0 {
			return nil
		}
	}
	if len(rest) == 0 && ns != nsTypes {
		return nil
	}
	out := make([]semantic.Definition, 0, len(cur))
	for _, id := range cur {
		if d := s.def(id); d != nil {
			out = append(out, d.definition())
		}
	}
	return out
}

// resolveName looks a single identifier up: local bindings, then block
// scopes from the innermost outward, the module, and finally the extern
// prelude. macro_rules macros are also visible from parent modules.
func (s *Snapshot) resolveName(lc lookupCtx, name string, ns namespace) []semantic.Definition {
	if lc.node != nil && lc.locals && ns == nsValues && s.resolveLocal(lc.node, name) {
		return []semantic.Definition{{Kind: semantic.Local, Name: name}}
	}
	if lc.node != nil {
		start := lc.node
		if start.Kind() != syntax.KindBlockExpr {
			start = start.Parent()
		}
		for b := start; b != nil; b = b.Parent() {
			if b.Kind() != syntax.KindBlockExpr {
				continue
			}
			if sc := s.blocks[b]; sc != nil {
				if es := sc.lookup(ns, name); len(es) > 0 {
					return s.entryDefs(es)
				}
			}
		}
	}
	for m := lc.module; m != nil && m.mod != nil; m = s.def(m.mod.parent) {
		if es := m.mod.scope.lookup(ns, name); len(es) > 0 {
			return s.entryDefs(es)
		}
		if ns != nsMacros {
			break
		}
	}
	if ns == nsTypes {
		if k, ok := s.crates[lc.module.crate].extern[name]; ok {
			if root := s.def(s.crates[k].rootMod); root != nil {
				return []semantic.Definition{root.definition()}
			}
		}
	}
	return nil
}

func (s *Snapshot) entryDefs(es []entry) []semantic.Definition {
	ids := make([]semantic.DefID, len(es))
	for i, e := range es {
		ids[i] = e.def
	}
	var out []semantic.Definition
	for _, id := range uniqueIDs(ids) {
		out = append(out, s.defs[id].definition())
	}
	return out
}

// resolveLocal reports whether name is bound by a pattern in scope at node:
// a let statement before it, a function parameter, a closure parameter, or
// a pattern of an enclosing match arm, if let or for loop.
func (s *Snapshot) resolveLocal(node *syntax.Node, name string) bool {
	child := node
	for a := range node.Ancestors() {
		switch a.Kind() {
		case syntax.KindBlockExpr:
			kids := a.Children()
			for i := child.Index() - 1; i >= 0; i-- {
				if kids[i].Kind() == syntax.KindLetStmt && binds(kids[i].ChildOfKind(syntax.KindPat), name) {
					return true
				}
			}
		case syntax.KindFn:
			if pl := a.ChildOfKind(syntax.KindParamList); pl != nil {
				for _, p := range pl.ChildrenOfKind(syntax.KindParam) {
					if binds(p.ChildOfKind(syntax.KindPat), name) {
						return true
					}
				}
			}
			return false
		case syntax.KindModule, syntax.KindImpl, syntax.KindTrait, syntax.KindSourceFile,
			syntax.KindConst, syntax.KindStatic:
			return false
		case syntax.KindLetStmt:
			// a let initializer cannot see its own bindings
		default:
			kids := a.Children()
			for i := child.Index() - 1; i >= 0; i-- {
				k := kids[i]
				switch k.Kind() {
				case syntax.KindPat:
					if binds(k, name) {
						return true
					}
				case syntax.KindParam:
					if binds(k.ChildOfKind(syntax.KindPat), name) {
						return true
					}
				case syntax.KindClosureParams:
					for _, p := range k.Children() {
						if p.Kind() == syntax.KindParam {
							p = p.ChildOfKind(syntax.KindPat)
						}
						if binds(p, name) {
							return true
						}
					}
				default:
					if binds(k.ChildOfKind(syntax.KindPat), name) {
						return true
					}
				}
			}
		}
		child = a
	}
	return false
}

func binds(pat *syntax.Node, name string) bool {
	if pat == nil || pat.Kind() != syntax.KindPat {
		return false
	}
	for _, n := range syntax.PatNames(pat) {
		if n.Text() == name {
			return true
		}
	}
	return false
}

// members looks name up inside the module, type or trait c. Inherent impl
// items shadow trait impl items; trait items without an override are found
// through the impls of c.
func (s *Snapshot) members(c semantic.DefID, name string, ns namespace) []semantic.DefID {
	d := s.def(c)
	if d == nil {
		return nil
	}
	var out []semantic.DefID
	match := func(id semantic.DefID) {
		m := s.defs[id]
		if m.name == name && slices.Contains(namespacesOf(m), ns) {
			out = append(out, id)
		}
	}
	switch {
	case d.mod != nil:
		for _, e := range d.mod.scope.lookup(ns, name) {
			out = append(out, e.def)
		}
		return out
	case d.kind == semantic.Trait:
		for _, id := range d.members {
			match(id)
		}
		return out
	case d.kind == semantic.Enum:
		for _, id := range d.members {
			match(id)
		}
		if len(out) > 0 {
			return out
		}
	}

	impls := s.implsBySelf[c]
	for _, im := range impls {
		if im.trait == 0 {
			for _, id := range im.items {
				match(id)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, im := range impls {
		if im.trait == 0 {
			continue
		}
		before := len(out)
		for _, id := range im.items {
			match(id)
		}
		if len(out) > before {
			continue
		}
		if t := s.def(im.trait); t != nil {
			for _, id := range t.members {
				match(id)
			}
		}
	}
	return out
}

// selfType returns what Self refers to at the lookup position: the self
// type of the enclosing impl or the enclosing trait.
func (s *Snapshot) selfType(lc lookupCtx) semantic.DefID {
	if lc.node == nil {
		return 0
	}
	for a := range lc.node.Ancestors() {
		switch a.Kind() {
		case syntax.KindImpl:
			if im := s.implByNode[a]; im != nil {
				return im.self
			}
			return 0
		case syntax.KindTrait:
			return s.byNode[nodeKey{file: lc.file, ptr: a.Ptr()}]
		}
	}
	return 0
}

// namespaceFor picks the namespaces a path is resolved in from its syntactic
// position.
func namespaceFor(path *syntax.Node) []namespace {
	if path.Role() == "macro" {
		return []namespace{nsMacros}
	}
	switch p := path.Parent(); {
	case p == nil:
		return []namespace{nsTypes, nsValues}
	case p.Kind() == syntax.KindPathExpr:
		return []namespace{nsValues}
	case p.Kind() == syntax.KindType:
		return []namespace{nsTypes}
	case p.Kind() == syntax.KindUseTree:
		return allNamespaces
	}
	return []namespace{nsTypes, nsValues}
}

// useTreePath returns the full path a Path node inside a use tree stands
// for, including the prefixes of the enclosing trees.
func useTreePath(path *syntax.Node) []string {
	var prefix [][]string
	for a := range path.Ancestors() {
		if a.Kind() != syntax.KindUseTree {
			break
		}
		if p := a.ChildByRole("path"); p != nil && p != path {
			prefix = append(prefix, syntax.Segments(p))
		}
	}
	var out []string
	for i := len(prefix) - 1; i >= 0; i-- {
		out = append(out, prefix[i]...)
	}
	return append(out, syntax.Segments(path)...)
}

// fileAt returns the file owning node, or nil when node does not belong to
// this snapshot's tree of file.
func (s *Snapshot) fileAt(id syntax.FileID, node *syntax.Node) *file {
	f := s.files[id]
	if f == nil || node == nil || node.Tree() != f.tree {
		return nil
	}
	return f
}

// moduleAt returns the module whose items are in scope at node.
func (s *Snapshot) moduleAt(f *file, node *syntax.Node) *def {
	for a := range node.Ancestors() {
		if a.Kind() == syntax.KindModule {
			return s.def(s.byNode[nodeKey{file: f.id, ptr: a.Ptr()}])
		}
	}
	return s.def(f.module)
}

func (s *Snapshot) ResolvePath(fid syntax.FileID, path *syntax.Node) (semantic.Definition, bool) {
	f := s.fileAt(fid, path)
	if f == nil || path.Kind() != syntax.KindPath {
		return semantic.Definition{}, false
	}
	m := s.moduleAt(f, path)
	if m == nil {
		return semantic.Definition{}, false
	}
	segs := syntax.Segments(path)
	lc := lookupCtx{module: m, file: fid, node: path, locals: true}
	if leaf := path.Parent(); leaf != nil && leaf.Kind() == syntax.KindUseTree {
		if u := s.useByNode[leaf]; u != nil && !u.glob && path == leaf.ChildByRole("path") {
			return s.single(u.targets)
		}
		segs = useTreePath(path)
		lc.locals = false
		if path.Ancestor(syntax.KindBlockExpr) == nil {
			lc.node = nil
		}
	}
	if len(segs) == 0 {
		return semantic.Definition{}, false
	}

	var found []semantic.Definition
	for _, ns := range namespaceFor(path) {
		found = append(found, s.resolve(lc, segs, ns)...)
	}
	found = uniqueDefs(found)
	if len(found) != 1 {
		if len(found) > 1 {
			s.opts.logger.Debug("ambiguous path", "path", path.Text(), "candidates", len(found))
		}
		return semantic.Definition{}, false
	}
	return found[0], true
}

func (s *Snapshot) single(ids []semantic.DefID) (semantic.Definition, bool) {
	if len(ids) != 1 {
		return semantic.Definition{}, false
	}
	return s.defs[ids[0]].definition(), true
}

func (s *Snapshot) ScopeModule(fid syntax.FileID, node *syntax.Node) (semantic.Module, bool) {
	f := s.fileAt(fid, node)
	if f == nil {
		return semantic.Module{}, false
	}
	m := s.moduleAt(f, node)
	if m == nil {
		return semantic.Module{}, false
	}
	return semantic.Module{Crate: m.crate, Def: m.id}, true
}

func (s *Snapshot) ClassifyName(fid syntax.FileID, name *syntax.Node) (semantic.Definition, bool) {
	f := s.fileAt(fid, name)
	if f == nil || name.Kind() != syntax.KindName || name.Parent() == nil {
		return semantic.Definition{}, false
	}
	parent := name.Parent()
	switch {
	case parent.Kind() == syntax.KindPat:
		return semantic.Definition{Kind: semantic.Local, Name: name.Text()}, true
	case parent.Kind() == syntax.KindUseTree:
		if u := s.useByNode[parent]; u != nil {
			return s.single(u.targets)
		}
	case parent.Kind() == syntax.KindExternCrate:
		m := s.moduleAt(f, parent)
		if m == nil {
			break
		}
		alias := name.Text()
		if a := parent.ChildByRole("alias"); a != nil {
			alias = a.Text()
		}
		var ids []semantic.DefID
		for _, e := range m.mod.scope.lookup(nsTypes, alias) {
			ids = append(ids, e.def)
		}
		return s.single(uniqueIDs(ids))
	case parent.Kind().IsItem():
		if id, ok := s.byNode[nodeKey{file: fid, ptr: parent.Ptr()}]; ok {
			return s.defs[id].definition(), true
		}
	}
	return semantic.Definition{}, false
}

func (s *Snapshot) Source(d semantic.Definition) (semantic.InFile, bool) {
	dd := s.def(d.ID)
	if dd == nil || dd.node == nil {
		return semantic.InFile{}, false
	}
	return semantic.InFile{File: dd.file, Node: dd.node}, true
}

func (s *Snapshot) AssocContainer(d semantic.Definition) (semantic.Container, bool) {
	dd := s.def(d.ID)
	if dd == nil || dd.container == nil {
		return semantic.Container{}, false
	}
	return *dd.container, true
}

// QueryExternalImportables searches the import maps of krate's direct
// dependencies in dependency name order. q.Limit bounds the total.
func (s *Snapshot) QueryExternalImportables(ctx context.Context, krate semantic.CrateID, q importmap.Query) iter.Seq[semantic.Definition] {
	return func(yield func(semantic.Definition) bool) {
		if int(krate) >= len(s.crates) {
			return
		}
		c := s.crates[krate]
		var deps []semantic.CrateID
		for _, name := range slices.Sorted(maps.Keys(c.deps)) {
			if id := c.deps[name]; !slices.Contains(deps, id) {
				deps = append(deps, id)
			}
		}
		found := 0
		for _, dep := range deps {
			if int(dep) >= len(s.importMaps) || s.importMaps[dep] == nil {
				continue
			}
			for e := range s.importMaps[dep].Search(ctx, q) {
				if !yield(s.defs[e.Item].definition()) {
					return
				}
				found++
				if q.Limit > 0 && found >= q.Limit {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func uniqueDefs(defs []semantic.Definition) []semantic.Definition {
	var out []semantic.Definition
	for _, d := range defs {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

func uniqueIDs(ids []semantic.DefID) []semantic.DefID {
	var out []semantic.DefID
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
