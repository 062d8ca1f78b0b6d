package workspace

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

type namespace int

const (
	nsTypes namespace = iota
	nsValues
	nsMacros
	nsCount
)

var allNamespaces = []namespace{nsTypes, nsValues, nsMacros}

// def is one definition of the snapshot.
type def struct {
	id     semantic.DefID
	kind   semantic.DefKind
	name   string
	crate  semantic.CrateID
	file   syntax.FileID
	node   *syntax.Node
	module semantic.DefID
	vis    visibility

	// container is set for associated items and owner points at the trait,
	// impl self type or enum the item belongs to.
	container *semantic.Container
	owner     semantic.DefID
	inBlock   bool
	// members lists the variants of an enum or the items of a trait.
	members []semantic.DefID

	mod *moduleData
}

func (d *def) definition() semantic.Definition {
	return semantic.Definition{ID: d.id, Kind: d.kind, Name: d.name}
}

type moduleData struct {
	parent semantic.DefID
	path   []string
	dir    string
	scope  *scope
}

type entry struct {
	def  semantic.DefID
	vis  visibility
	glob bool
}

// scope maps names to definitions, one table per namespace.
type scope struct {
	names [nsCount]map[string][]entry
}

func newScope() *scope {
	sc := &scope{}
	for i := range sc.names {
		sc.names[i] = make(map[string][]entry)
	}
	return sc
}

// add records e under name and reports whether the scope changed. Explicit
// entries shadow glob entries.
func (sc *scope) add(ns namespace, name string, e entry) bool {
	list := sc.names[ns][name]
	for _, old := range list {
		if old.def == e.def && old.glob == e.glob {
			return false
		}
	}
	sc.names[ns][name] = append(list, e)
	return true
}

// lookup returns the definitions bound to name. Explicit bindings win over
// glob imports.
func (sc *scope) lookup(ns namespace, name string) []entry {
	list := sc.names[ns][name]
	var explicit, globbed []entry
	for _, e := range list {
		if e.glob {
			globbed = append(globbed, e)
		} else {
			explicit = append(explicit, e)
		}
	}
	if len(explicit) > 0 {
		return explicit
	}
	return globbed
}

// impl is an impl block. Its self type and trait are resolved once every
// import is known.
type impl struct {
	file   syntax.FileID
	node   *syntax.Node
	module semantic.DefID
	items  []semantic.DefID
	self   semantic.DefID
	trait  semantic.DefID
}

func (s *Snapshot) newDef(d *def) *def {
	d.id = semantic.DefID(len(s.defs))
	s.defs = append(s.defs, d)
	if d.node != nil {
		s.byNode[nodeKey{file: d.file, ptr: d.node.Ptr()}] = d.id
	}
	return d
}

func (s *Snapshot) def(id semantic.DefID) *def {
	if id == 0 || int(id) >= len(s.defs) {
		return nil
	}
	return s.defs[id]
}

// declareRoot creates the root module of c. Roots of every crate exist
// before any items are collected so extern crate items can refer to them.
func (s *Snapshot) declareRoot(c *crate) {
	rootID, ok := s.byPath[c.root]
	if !ok {
		s.opts.logger.Warn("crate root missing", "crate", c.name, "root", c.root)
		return
	}
	root := s.files[rootID]
	m := s.newDef(&def{
		kind:  semantic.ModuleKind,
		name:  c.name,
		crate: c.id,
		file:  rootID,
		node:  root.tree.Root(),
		vis:   visibility{kind: visPublic, crate: c.id},
		mod:   &moduleData{dir: filepath.Dir(c.root), scope: newScope()},
	})
	c.rootMod = m.id
	c.rootFile = rootID
	root.module = m.id
}

func (s *Snapshot) collectCrate(c *crate) {
	if c.rootMod == 0 {
		return
	}
	s.collectItems(s.defs[c.rootMod], c.rootFile, s.files[c.rootFile].tree.Root(), false)
}

// collectItems declares the items held by list, the SourceFile or ItemList
// of module m, or a block when inBlock is set.
func (s *Snapshot) collectItems(m *def, fid syntax.FileID, list *syntax.Node, inBlock bool) {
	sc := m.mod.scope
	if inBlock {
		sc = s.blocks[list]
	}
	for _, n := range list.Children() {
		switch n.Kind() {
		case syntax.KindUse:
			s.collectUse(m, fid, n, list, inBlock)
		case syntax.KindExternCrate:
			s.collectExternCrate(m, fid, n, sc)
		case syntax.KindImpl:
			s.collectImpl(m, fid, n)
		case syntax.KindModule:
			s.collectModule(m, fid, n, sc, inBlock)
		default:
			if !n.Kind().IsItem() {
				continue
			}
			d := s.collectItem(m, fid, n, inBlock)
			if d == nil {
				continue
			}
			for _, ns := range namespacesOf(d) {
				sc.add(ns, d.name, entry{def: d.id, vis: d.vis})
			}
			if d.kind == semantic.Macro && d.vis.kind == visPublic && !inBlock {
				root := s.defs[s.crates[m.crate].rootMod]
				root.mod.scope.add(nsMacros, d.name, entry{def: d.id, vis: d.vis})
			}
		}
	}
}

// collectItem declares one named item together with the items nested in it.
func (s *Snapshot) collectItem(m *def, fid syntax.FileID, n *syntax.Node, inBlock bool) *def {
	kind, ok := semantic.KindOf(n.Kind())
	name := syntax.NameOf(n)
	if !ok || name == nil {
		return nil
	}
	d := s.newDef(&def{
		kind:    kind,
		name:    name.Text(),
		crate:   m.crate,
		file:    fid,
		node:    n,
		module:  m.id,
		vis:     s.visibilityOf(n, m),
		inBlock: inBlock,
	})
	if kind == semantic.Macro {
		d.vis = visibility{kind: visCrate, crate: m.crate}
		if hasAttr(n, "macro_export") {
			d.vis = visibility{kind: visPublic, crate: m.crate}
		}
	}
	switch kind {
	case semantic.Function:
		s.collectBlocks(m, fid, syntax.Body(n))
	case semantic.Enum:
		for v := range n.Preorder() {
			if v.Kind() != syntax.KindVariant || v.Ancestor(syntax.KindEnum) != n {
				continue
			}
			if vn := syntax.NameOf(v); vn != nil {
				vd := s.newDef(&def{
					kind: semantic.Variant, name: vn.Text(), crate: m.crate, file: fid, node: v,
					module: m.id, vis: d.vis, owner: d.id, inBlock: inBlock,
				})
				d.members = append(d.members, vd.id)
			}
		}
	case semantic.Trait:
		container := &semantic.Container{Kind: semantic.TraitContainer, Name: d.name}
		if items := syntax.ItemList(n); items != nil {
			for _, it := range items.Children() {
				ad := s.collectAssoc(m, fid, it, d.vis, container, inBlock)
				if ad != nil {
					ad.owner = d.id
					d.members = append(d.members, ad.id)
				}
			}
		}
	}
	return d
}

// collectAssoc declares an item of an impl or trait body.
func (s *Snapshot) collectAssoc(m *def, fid syntax.FileID, n *syntax.Node, vis visibility, container *semantic.Container, inBlock bool) *def {
	kind, ok := semantic.KindOf(n.Kind())
	name := syntax.NameOf(n)
	if !ok || name == nil {
		return nil
	}
	switch kind {
	case semantic.Function, semantic.Const, semantic.TypeAlias:
	default:
		return nil
	}
	if v := n.ChildOfKind(syntax.KindVisibility); v != nil {
		vis = s.visibilityOf(n, m)
	}
	d := s.newDef(&def{
		kind: kind, name: name.Text(), crate: m.crate, file: fid, node: n,
		module: m.id, vis: vis, container: container, inBlock: inBlock,
	})
	if kind == semantic.Function {
		s.collectBlocks(m, fid, syntax.Body(n))
	}
	return d
}

func (s *Snapshot) collectImpl(m *def, fid syntax.FileID, n *syntax.Node) {
	im := &impl{file: fid, node: n, module: m.id}
	s.impls = append(s.impls, im)
	s.implByNode[n] = im

	selfName := ""
	if t := n.ChildByRole("type"); t != nil {
		selfName = t.Text()
	}
	container := &semantic.Container{Kind: semantic.ImplContainer, Name: selfName}
	vis := visibility{kind: visRestricted, module: m.id, crate: m.crate}
	if n.ChildByRole("trait") != nil {
		vis = visibility{kind: visPublic, crate: m.crate}
	}
	inBlock := n.Ancestor(syntax.KindBlockExpr) != nil
	if items := syntax.ItemList(n); items != nil {
		for _, it := range items.Children() {
			if d := s.collectAssoc(m, fid, it, vis, container, inBlock); d != nil {
				im.items = append(im.items, d.id)
			}
		}
	}
}

func (s *Snapshot) collectModule(parent *def, fid syntax.FileID, n *syntax.Node, sc *scope, inBlock bool) {
	name := syntax.NameOf(n)
	if name == nil {
		return
	}
	pm := parent.mod
	d := s.newDef(&def{
		kind:    semantic.ModuleKind,
		name:    name.Text(),
		crate:   parent.crate,
		file:    fid,
		node:    n,
		module:  parent.id,
		vis:     s.visibilityOf(n, parent),
		inBlock: inBlock,
		mod: &moduleData{
			parent: parent.id,
			path:   append(slices.Clone(pm.path), name.Text()),
			dir:    filepath.Join(pm.dir, name.Text()),
			scope:  newScope(),
		},
	})
	sc.add(nsTypes, d.name, entry{def: d.id, vis: d.vis})

	if items := n.ChildOfKind(syntax.KindItemList); items != nil {
		s.collectItems(d, fid, items, false)
		return
	}
	for _, candidate := range []string{
		filepath.Join(pm.dir, d.name+".rs"),
		filepath.Join(pm.dir, d.name, "mod.rs"),
	} {
		id, ok := s.byPath[candidate]
		if !ok {
			continue
		}
		f := s.files[id]
		if f.module != 0 {
			s.opts.logger.Warn("file declared as more than one module", "path", f.path)
			return
		}
		f.module = d.id
		s.collectItems(d, id, f.tree.Root(), false)
		return
	}
	s.opts.logger.Debug("module file not found", "module", strings.Join(d.mod.path, "::"), "dir", pm.dir)
}

func (s *Snapshot) collectExternCrate(m *def, fid syntax.FileID, n *syntax.Node, sc *scope) {
	target := n.ChildByRole("name")
	if target == nil {
		return
	}
	var krate semantic.CrateID
	if target.Text() == "self" {
		krate = m.crate
	} else {
		id, ok := s.crates[m.crate].deps[target.Text()]
		if !ok {
			return
		}
		krate = id
	}
	name := target.Text()
	if alias := n.ChildByRole("alias"); alias != nil {
		name = alias.Text()
	}
	root := s.crates[krate].rootMod
	if root == 0 {
		return
	}
	sc.add(nsTypes, name, entry{def: root, vis: s.visibilityOf(n, m)})
	if m.id == s.crates[m.crate].rootMod {
		s.crates[m.crate].extern[name] = krate
	}
}

// collectBlocks declares the items and imports of every block in body.
// Items nested in those blocks collect their own bodies.
func (s *Snapshot) collectBlocks(m *def, fid syntax.FileID, body *syntax.Node) {
	if body == nil {
		return
	}
	var visit func(n *syntax.Node)
	visit = func(n *syntax.Node) {
		if n.Kind() == syntax.KindBlockExpr {
			if _, seen := s.blocks[n]; seen {
				return
			}
			s.blocks[n] = newScope()
			s.collectItems(m, fid, n, true)
		}
		for _, c := range n.Children() {
			if c.Kind().IsItem() || c.Kind() == syntax.KindImpl {
				continue
			}
			visit(c)
		}
	}
	visit(body)
}

// namespacesOf returns the namespaces a declared item occupies. Unit and
// tuple structs also name a value.
func namespacesOf(d *def) []namespace {
	switch d.kind {
	case semantic.Function, semantic.Const, semantic.Static:
		return []namespace{nsValues}
	case semantic.Struct:
		if rest := d.node.Text()[syntax.NameOf(d.node).Range().End-d.node.Range().Start:]; !strings.Contains(rest, "{") {
			return []namespace{nsTypes, nsValues}
		}
		return []namespace{nsTypes}
	case semantic.Variant:
		return []namespace{nsTypes, nsValues}
	case semantic.Macro:
		return []namespace{nsMacros}
	case semantic.Local:
		return []namespace{nsValues}
	default:
		return []namespace{nsTypes}
	}
}

// hasAttr reports whether one of the attributes directly preceding item n
// is #[name] or #[name(...)].
func hasAttr(n *syntax.Node, name string) bool {
	list := n.Parent()
	if list == nil {
		return false
	}
	for i := n.Index() - 1; i >= 0; i-- {
		a := list.Children()[i]
		if a.Kind() == syntax.KindComment {
			continue
		}
		if a.Kind() != syntax.KindAttr {
			break
		}
		text := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(a.Text(), "#["), "]"))
		if text == name || strings.HasPrefix(text, name+"(") {
			return true
		}
	}
	return false
}
