package refactor

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/imports"
	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/syntax/edit"
)

const autoImportID = "auto_import"

// AutoImport offers one assist per importable definition named like the
// first segment of the unresolved path under the cursor. The assists add a
// `use` item and are sorted by import path.
func AutoImport(a *AssistContext, engine *imports.Engine, db imports.Database) []Assist {
	path := a.Tree.FindNodeAt(a.Offset, syntax.KindPath)
	if path == nil || path.Ancestor(syntax.KindUse) != nil {
		a.notApplicable(autoImportID, "no path outside a use item under cursor")
		return nil
	}
	segs := syntax.Segments(path)
	if len(segs) == 0 || isPathKeyword(segs[0]) {
		a.notApplicable(autoImportID, "path has no importable first segment", "path", path.Text())
		return nil
	}
	if _, ok := db.ResolvePath(a.File, path); ok {
		a.notApplicable(autoImportID, "path already resolves", "path", path.Text())
		return nil
	}
	scope, ok := db.ScopeModule(a.File, path)
	if !ok {
		a.notApplicable(autoImportID, "cursor has no module")
		return nil
	}

	found, err := engine.FindExactImports(a.Ctx, db, scope.Crate, segs[0])
	if err != nil {
		a.Logger.Debug("import search failed", "name", segs[0], "error", err)
		return nil
	}

	type candidate struct {
		path  string
		label string
	}
	var cands []candidate
	for def := range found.All() {
		if _, assoc := db.AssocContainer(def); assoc {
			continue
		}
		if !db.IsVisibleFrom(def, scope) {
			continue
		}
		p, ok := db.ImportPath(def, scope.Crate)
		if !ok {
			continue
		}
		joined := strings.Join(p, "::")
		cands = append(cands, candidate{path: joined, label: fmt.Sprintf("Import `%s`", joined)})
	}
	slices.SortFunc(cands, func(x, y candidate) int { return cmp.Compare(x.path, y.path) })
	cands = slices.CompactFunc(cands, func(x, y candidate) bool { return x.path == y.path })

	offset, text := useInsertion(a.Tree, path)
	var out []Assist
	for _, c := range cands {
		b := edit.NewBuilder(a.Tree.Path(), a.Tree.Source())
		b.Description = c.label
		b.Insert(offset, fmt.Sprintf(text, c.path))
		changes, err := b.Finish()
		if err != nil {
			a.Logger.Debug("invalid import edit", "path", c.path, "error", err)
			continue
		}
		assist, _ := a.applicable(Assist{
			ID:      autoImportID,
			Kind:    KindQuickFix,
			Label:   c.label,
			Target:  path.Range(),
			Changes: changes,
		})
		out = append(out, assist)
	}
	if len(out) == 0 {
		a.notApplicable(autoImportID, "no importable candidates", "name", segs[0])
	}
	return out
}

// useInsertion returns where a new use item goes and a format string for it.
// The item goes into the innermost inline module around at, so that the name
// is in scope there: after the module's last use item, else after its
// leading inner attributes, else at the start of its body.
func useInsertion(tree *syntax.Tree, at *syntax.Node) (int, string) {
	items := tree.Root().Children()
	start, indent, inline := 0, "", false
	for p := range at.Ancestors() {
		if p.Kind() != syntax.KindModule {
			continue
		}
		if list := p.ChildOfKind(syntax.KindItemList); list != nil {
			items = list.Children()
			// Skip the opening brace.
			start = list.Range().Start + 1
			indent = (edit.IndentOf(tree, p) + 1).With(edit.UnitOf(tree, p))
			inline = true
			break
		}
	}

	var lastUse, lastInner *syntax.Node
	for _, c := range items {
		switch {
		case c.Kind() == syntax.KindUse:
			lastUse = c
		case c.Kind() == syntax.KindAttr && strings.HasPrefix(c.Text(), "#!") && lastUse == nil:
			lastInner = c
		}
	}
	switch {
	case lastUse != nil:
		return lastUse.Range().End, "\n" + indent + "use %s;"
	case lastInner != nil:
		return lastInner.Range().End, "\n\n" + indent + "use %s;"
	case inline:
		return start, "\n" + indent + "use %s;\n"
	}
	return 0, "use %s;\n\n"
}

func isPathKeyword(seg string) bool {
	switch seg {
	case "crate", "self", "super", "Self":
		return true
	}
	return false
}
