package workspace

import (
	"context"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mamaar/rsrefactor/pkg/importmap"
	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/symbolindex"
)

// buildIndexes builds the import map and local symbol index of every crate.
// Crates are independent, so they are indexed in parallel.
func (s *Snapshot) buildIndexes(ctx context.Context) error {
	s.importMaps = make([]*importmap.Map[semantic.DefID], len(s.crates))
	s.importPaths = make([]map[semantic.DefID][]string, len(s.crates))
	s.symbols = make([]*symbolindex.Index, len(s.crates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.parseLimit)
	for _, c := range s.crates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.importMaps[c.id], s.importPaths[c.id] = s.buildImportMap(c)
			s.symbols[c.id] = s.buildSymbols(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, c := range s.crates {
		s.opts.logger.Debug("crate indexed", "crate", c.name, "importable", s.importMaps[c.id].Len(), "symbols", s.symbols[c.id].Len())
	}
	return nil
}

// buildImportMap walks the public module tree of c breadth first, so each
// item is recorded under its shortest public path.
func (s *Snapshot) buildImportMap(c *crate) (*importmap.Map[semantic.DefID], map[semantic.DefID][]string) {
	paths := make(map[semantic.DefID][]string)
	root := s.def(c.rootMod)
	if root == nil {
		return importmap.New[semantic.DefID](nil), paths
	}

	var entries []importmap.Entry[semantic.DefID]
	add := func(id semantic.DefID, path []string, assoc bool) bool {
		if _, seen := paths[id]; seen {
			return false
		}
		paths[id] = path
		entries = append(entries, importmap.Entry[semantic.DefID]{Item: id, Path: path, Assoc: assoc})
		return true
	}

	paths[root.id] = []string{c.name}
	queue := []*def{root}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		base := paths[m.id]
		for ns := range nsCount {
			table := m.mod.scope.names[ns]
			for _, name := range slices.Sorted(maps.Keys(table)) {
				for _, e := range m.mod.scope.lookup(ns, name) {
					d := s.defs[e.def]
					if e.vis.kind != visPublic || d.kind == semantic.Local {
						continue
					}
					path := append(slices.Clone(base), name)
					if !add(d.id, path, false) {
						continue
					}
					switch {
					case d.mod != nil && d.crate == c.id:
						queue = append(queue, d)
					case d.kind == semantic.Enum:
						for _, v := range d.members {
							add(v, append(slices.Clone(path), s.defs[v].name), false)
						}
					case d.kind == semantic.Trait:
						for _, it := range d.members {
							add(it, append(slices.Clone(path), s.defs[it].name), true)
						}
					}
				}
			}
		}
	}
	return importmap.New(entries), paths
}

// buildSymbols indexes every declaration in the files of c's module tree.
func (s *Snapshot) buildSymbols(c *crate) *symbolindex.Index {
	var all []symbolindex.FileSymbol
	for _, id := range slices.Sorted(maps.Keys(s.files)) {
		f := s.files[id]
		if f.crate != c.id || f.module == 0 || f.tree == nil {
			continue
		}
		all = append(all, symbolindex.Collect(f.tree)...)
	}
	return symbolindex.New(all)
}

// ImportPath returns the path code in crate from uses to import d. Items of
// from start with "crate"; items of dependencies start with the name from
// depends on them by and take the shortest public path among its direct
// dependencies. Items declared inside function bodies have no path.
func (s *Snapshot) ImportPath(d semantic.Definition, from semantic.CrateID) ([]string, bool) {
	dd := s.def(d.ID)
	if dd == nil || dd.inBlock || int(from) >= len(s.crates) {
		return nil, false
	}
	if dd.crate == from {
		return s.localPath(dd)
	}
	fc := s.crates[from]
	var best []string
	for _, name := range slices.Sorted(maps.Keys(fc.deps)) {
		dep := fc.deps[name]
		if int(dep) >= len(s.importPaths) {
			continue
		}
		p, ok := s.importPaths[dep][dd.id]
		if !ok {
			continue
		}
		if best == nil || len(p) < len(best) {
			best = append([]string{name}, p[1:]...)
		}
	}
	return best, best != nil
}

func (s *Snapshot) localPath(d *def) ([]string, bool) {
	switch {
	case d.mod != nil:
		return append([]string{"crate"}, d.mod.path...), true
	case d.kind == semantic.Macro:
		if d.vis.kind != visPublic {
			return nil, false
		}
		return []string{"crate", d.name}, true
	case d.owner != 0:
		p, ok := s.localPath(s.defs[d.owner])
		if !ok {
			return nil, false
		}
		return append(p, d.name), true
	case d.container != nil:
		return nil, false
	}
	m := s.def(d.module)
	if m == nil {
		return nil, false
	}
	return append(append([]string{"crate"}, m.mod.path...), d.name), true
}
