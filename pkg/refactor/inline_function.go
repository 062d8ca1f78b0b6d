package refactor

import (
	"fmt"

	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/syntax/edit"
	"github.com/mamaar/rsrefactor/pkg/syntax/edit/synth"
)

const inlineFunctionID = "inline_function"

// callSite is a plain function call whose callee has source.
type callSite struct {
	call *syntax.Node
	path *syntax.Node
	fn   *syntax.Node
}

// binding pairs a parameter pattern with the argument it receives.
type binding struct {
	pat *syntax.Node
	arg *syntax.Node
}

// InlineFunction replaces the call under the cursor with a block holding the
// callee's body. Every parameter becomes a let binding of its argument, so
// each argument is still evaluated once and in order.
//
// Method calls, calls to functions without a body, calls whose arity does not
// match and calls to functions not visible from the call site are not
// applicable.
func InlineFunction(a *AssistContext) (Assist, bool) {
	site, reason := findCallSite(a)
	if site == nil {
		return a.notApplicable(inlineFunctionID, reason)
	}

	bindings, reason := bindParams(site)
	if reason != "" {
		return a.notApplicable(inlineFunctionID, reason, "callee", site.path.Text())
	}
	body := syntax.Body(site.fn)
	if body == nil {
		return a.notApplicable(inlineFunctionID, "callee has no body", "callee", site.path.Text())
	}

	stmts := make([]synth.Snippet, 0, len(bindings)+len(syntax.Statements(body)))
	for _, b := range bindings {
		stmts = append(stmts, synth.LetStmt(synth.FromNode(b.pat), synth.FromNode(b.arg)))
	}
	for _, s := range syntax.Statements(body) {
		stmts = append(stmts, synth.FromNode(s))
	}
	var tail *synth.Snippet
	if t := syntax.Tail(body); t != nil {
		s := synth.FromNode(t)
		tail = &s
	}
	text := synth.BlockExpr(stmts, tail).
		IndentWith(edit.UnitOf(a.Tree, site.call)).
		Render(edit.IndentOf(a.Tree, site.call))

	label := fmt.Sprintf("Inline `%s`", site.path.Text())
	b := edit.NewBuilder(a.Tree.Path(), a.Tree.Source())
	b.Description = label
	b.Replace(site.call.Range(), text)
	changes, err := b.Finish()
	if err != nil {
		return a.notApplicable(inlineFunctionID, "invalid edit", "error", err)
	}
	return a.applicable(Assist{
		ID:      inlineFunctionID,
		Kind:    KindRefactorInline,
		Label:   label,
		Target:  site.call.Range(),
		Changes: changes,
	})
}

// findCallSite locates the call under the cursor and its callee. The empty
// reason is never returned with a nil site.
func findCallSite(a *AssistContext) (*callSite, string) {
	pathExpr := a.Tree.FindNodeAt(a.Offset, syntax.KindPathExpr)
	if pathExpr == nil {
		return nil, "no path under cursor"
	}
	call := pathExpr.Parent()
	if call == nil || call.Kind() != syntax.KindCallExpr || pathExpr.Role() != "function" {
		return nil, "path is not the callee of a call"
	}
	path := pathExpr.ChildOfKind(syntax.KindPath)
	if path == nil {
		return nil, "callee has no path"
	}

	def, ok := a.Model.ResolvePath(a.File, path)
	if !ok {
		return nil, "callee does not resolve"
	}
	if def.Kind != semantic.Function {
		return nil, "callee is a " + def.Kind.String()
	}
	scope, ok := a.Model.ScopeModule(a.File, call)
	if !ok {
		return nil, "call site has no module"
	}
	if !a.Model.IsVisibleFrom(def, scope) {
		return nil, "callee is not visible from the call site"
	}
	src, ok := a.Model.Source(def)
	if !ok || src.Node == nil || src.Node.Kind() != syntax.KindFn {
		return nil, "callee has no source"
	}
	return &callSite{call: call, path: path, fn: src.Node}, ""
}

// bindParams pairs parameters with arguments by position.
func bindParams(site *callSite) ([]binding, string) {
	var pats []*syntax.Node
	if list := site.fn.ChildOfKind(syntax.KindParamList); list != nil {
		for _, p := range list.Children() {
			switch p.Kind() {
			case syntax.KindSelfParam:
				return nil, "callee takes self"
			case syntax.KindParam:
				pat := p.ChildOfKind(syntax.KindPat)
				if pat == nil {
					return nil, "parameter without a pattern"
				}
				pats = append(pats, pat)
			}
		}
	}

	list := site.call.ChildOfKind(syntax.KindArgList)
	if list == nil {
		return nil, "call has no argument list"
	}
	args := syntax.Args(list)
	if len(args) != len(pats) {
		return nil, fmt.Sprintf("callee takes %d arguments, call passes %d", len(pats), len(args))
	}

	bindings := make([]binding, len(pats))
	for i := range pats {
		bindings[i] = binding{pat: pats[i], arg: args[i]}
	}
	return bindings, ""
}
