// Package rust converts tree-sitter Rust syntax trees into the engine's
// language-neutral syntax trees.
package rust

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// Extension is the file extension handled by this front end.
const Extension = ".rs"

// Parse parses src and returns its syntax tree. A fresh tree-sitter parser is
// created per call since parsers must not be shared between goroutines.
// Syntax errors do not fail the parse; they surface as KindError nodes.
func Parse(ctx context.Context, file syntax.FileID, path, src string) (*syntax.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(rust.GetLanguage())

	tsTree, err := p.ParseCtx(ctx, nil, []byte(src))
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.ParseError,
			Message: fmt.Sprintf("parse %s", path),
			File:    path,
			Cause:   err,
		}
	}
	defer tsTree.Close()

	c := &converter{}
	root := c.node(tsTree.RootNode(), "")
	return syntax.NewTree(file, path, src, root), nil
}

// itemNameParents are the node types whose "name" field declares a name
// rather than referring to one.
var itemNameParents = map[string]bool{
	"function_item":            true,
	"function_signature_item":  true,
	"mod_item":                 true,
	"struct_item":              true,
	"enum_item":                true,
	"enum_variant":             true,
	"union_item":               true,
	"trait_item":               true,
	"type_item":                true,
	"associated_type":          true,
	"const_item":               true,
	"static_item":              true,
	"macro_definition":         true,
	"extern_crate_declaration": true,
}

var nodeKinds = map[string]syntax.Kind{
	"source_file":              syntax.KindSourceFile,
	"function_item":            syntax.KindFn,
	"function_signature_item":  syntax.KindFn,
	"mod_item":                 syntax.KindModule,
	"declaration_list":         syntax.KindItemList,
	"impl_item":                syntax.KindImpl,
	"trait_item":               syntax.KindTrait,
	"struct_item":              syntax.KindStruct,
	"enum_item":                syntax.KindEnum,
	"enum_variant":             syntax.KindVariant,
	"union_item":               syntax.KindUnion,
	"const_item":               syntax.KindConst,
	"static_item":              syntax.KindStatic,
	"type_item":                syntax.KindTypeAlias,
	"associated_type":          syntax.KindTypeAlias,
	"macro_definition":         syntax.KindMacroRules,
	"extern_crate_declaration": syntax.KindExternCrate,
	"let_declaration":          syntax.KindLetStmt,
	"expression_statement":     syntax.KindExprStmt,
	"arguments":                syntax.KindArgList,
	"macro_invocation":         syntax.KindMacroCall,
	"ERROR":                    syntax.KindError,
}

// leafKinds are converted without descending into their children.
var leafKinds = map[string]syntax.Kind{
	"string_literal":       syntax.KindString,
	"raw_string_literal":   syntax.KindString,
	"line_comment":         syntax.KindComment,
	"block_comment":        syntax.KindComment,
	"attribute_item":       syntax.KindAttr,
	"inner_attribute_item": syntax.KindAttr,
	"visibility_modifier":  syntax.KindVisibility,
	"self_parameter":       syntax.KindSelfParam,
	"type_parameters":      syntax.KindOther,
	"where_clause":         syntax.KindOther,
	"trait_bounds":         syntax.KindOther,
	"function_modifiers":   syntax.KindOther,
	"mutable_specifier":    syntax.KindOther,
	"lifetime":             syntax.KindOther,
	"label":                syntax.KindOther,
	"field_identifier":     syntax.KindOther,
	"primitive_type":       syntax.KindType,
	"macro_rule":           syntax.KindOther,
}

var typeNodes = map[string]bool{
	"type_identifier":        true,
	"scoped_type_identifier": true,
	"generic_type":           true,
	"reference_type":         true,
	"pointer_type":           true,
	"array_type":             true,
	"tuple_type":             true,
	"function_type":          true,
	"unit_type":              true,
	"dynamic_type":           true,
	"abstract_type":          true,
	"bounded_type":           true,
	"never_type":             true,
}

var pathNodes = map[string]bool{
	"identifier":        true,
	"scoped_identifier": true,
	"self":              true,
	"crate":             true,
	"super":             true,
	"generic_function":  true,
	"metavariable":      true,
}

type converter struct{}

func rangeOf(n *sitter.Node) syntax.TextRange {
	return syntax.TextRange{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func leaf(kind syntax.Kind, n *sitter.Node, role string) *syntax.Node {
	return syntax.NewNode(kind, rangeOf(n), role)
}

func (c *converter) node(n *sitter.Node, role string) *syntax.Node {
	typ := n.Type()
	if k, ok := leafKinds[typ]; ok {
		return leaf(k, n, role)
	}
	switch typ {
	case "block":
		return c.block(n, role)
	case "parameters":
		return c.params(n, role)
	case "closure_parameters":
		return c.closureParams(n, role)
	case "call_expression":
		return c.call(n, role)
	case "token_tree":
		return c.tokenTree(n, role)
	case "use_declaration":
		return c.use(n, role)
	case "empty_statement":
		return nil
	}
	if pathNodes[typ] {
		return c.pathExpr(n, role)
	}
	if typeNodes[typ] {
		return c.typ(n, role)
	}
	if k, ok := nodeKinds[typ]; ok {
		return syntax.NewNode(k, rangeOf(n), role, c.children(n)...)
	}
	kind := syntax.KindOther
	if strings.HasSuffix(typ, "_expression") || strings.HasSuffix(typ, "_literal") || strings.HasSuffix(typ, "_block") {
		kind = syntax.KindExpr
	}
	return syntax.NewNode(kind, rangeOf(n), role, c.children(n)...)
}

// children converts the named children of n, dispatching on the grammar field
// each child fills.
func (c *converter) children(n *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	parent := n.Type()
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch == nil || !ch.IsNamed() || ch.IsMissing() {
			continue
		}
		field := n.FieldNameForChild(i)
		var conv *syntax.Node
		switch {
		case (field == "name" || field == "alias") && itemNameParents[parent]:
			conv = leaf(syntax.KindName, ch, field)
		case field == "pattern":
			conv = c.pat(ch, nil, field)
		case field == "type" || field == "return_type" || field == "trait":
			conv = c.typ(ch, field)
		case field == "macro" || (field == "name" && parent == "struct_expression"):
			conv = c.path(ch, field)
		case field == "field" && parent == "field_expression":
			continue
		default:
			conv = c.node(ch, field)
		}
		if conv != nil {
			out = append(out, conv)
		}
	}
	return out
}

// block splits a block into statements and an optional tail expression.
// Attributes are folded into the statement they annotate and a macro call
// followed by a bare ";" becomes one expression statement.
func (c *converter) block(n *sitter.Node, role string) *syntax.Node {
	var named []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if ch := n.NamedChild(i); ch != nil && !ch.IsMissing() {
			named = append(named, ch)
		}
	}
	last := -1
	for i, ch := range named {
		switch {
		case strings.HasSuffix(ch.Type(), "_comment"), ch.Type() == "attribute_item", ch.Type() == "empty_statement":
			continue
		}
		last = i
	}

	var out []*syntax.Node
	attrStart := -1
	for i := 0; i < len(named); i++ {
		ch := named[i]
		typ := ch.Type()
		switch {
		case typ == "empty_statement":
			continue
		case typ == "attribute_item":
			if attrStart < 0 {
				attrStart = int(ch.StartByte())
			}
			continue
		case typ == "macro_invocation" && i+1 < len(named) && named[i+1].Type() == "empty_statement":
			mac := c.node(ch, "")
			end := named[i+1]
			stmt := syntax.NewNode(syntax.KindExprStmt,
				syntax.TextRange{Start: int(ch.StartByte()), End: int(end.EndByte())}, "", mac)
			out = append(out, withStart(stmt, attrStart))
			attrStart = -1
			i++
			continue
		}

		conv := c.node(ch, "")
		if conv == nil {
			continue
		}
		switch {
		case conv.Kind() == syntax.KindComment:
		case i == last && !conv.Kind().IsStmt():
			conv = syntax.NewNode(conv.Kind(), conv.Range(), "tail", conv.Children()...)
		case !conv.Kind().IsStmt():
			conv = syntax.NewNode(syntax.KindExprStmt, conv.Range(), "", conv)
		}
		if conv.Kind() != syntax.KindComment {
			conv = withStart(conv, attrStart)
			attrStart = -1
		}
		out = append(out, conv)
	}
	return syntax.NewNode(syntax.KindBlockExpr, rangeOf(n), role, out...)
}

// withStart widens n to begin at start, used to keep outer attributes with
// the statement they belong to.
func withStart(n *syntax.Node, start int) *syntax.Node {
	if start < 0 || start >= n.Range().Start {
		return n
	}
	r := n.Range()
	r.Start = start
	return syntax.NewNode(n.Kind(), r, n.Role(), n.Children()...)
}

// params converts a parameter list. Entries without a binding pattern, such
// as bare types in trait signatures, become KindParam nodes without a Pat.
func (c *converter) params(n *sitter.Node, role string) *syntax.Node {
	var out []*syntax.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch == nil || ch.IsMissing() {
			continue
		}
		switch ch.Type() {
		case "parameter":
			if p := ch.ChildByFieldName("pattern"); p != nil && p.Type() == "self" {
				out = append(out, leaf(syntax.KindSelfParam, ch, ""))
				continue
			}
			out = append(out, c.param(ch))
		case "self_parameter":
			out = append(out, leaf(syntax.KindSelfParam, ch, ""))
		case "attribute_item", "line_comment", "block_comment":
			out = append(out, c.node(ch, ""))
		default:
			out = append(out, leaf(syntax.KindParam, ch, ""))
		}
	}
	return syntax.NewNode(syntax.KindParamList, rangeOf(n), role, out...)
}

func (c *converter) param(n *sitter.Node) *syntax.Node {
	var kids []*syntax.Node
	var mut *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		field := n.FieldNameForChild(i)
		// The wildcard pattern `_` is an anonymous token.
		if ch == nil || (!ch.IsNamed() && field != "pattern") {
			continue
		}
		switch {
		case ch.Type() == "mutable_specifier":
			mut = ch
		case field == "pattern":
			kids = append(kids, c.pat(ch, mut, "pattern"))
		case field == "type":
			kids = append(kids, c.typ(ch, "type"))
		}
	}
	return syntax.NewNode(syntax.KindParam, rangeOf(n), "", kids...)
}

func (c *converter) closureParams(n *sitter.Node, role string) *syntax.Node {
	var out []*syntax.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch == nil || (!ch.IsNamed() && ch.Type() != "_") {
			continue
		}
		if ch.Type() == "parameter" {
			out = append(out, c.param(ch))
			continue
		}
		out = append(out, c.pat(ch, nil, "pattern"))
	}
	return syntax.NewNode(syntax.KindClosureParams, rangeOf(n), role, out...)
}

// pat wraps a pattern in a KindPat node whose children are the names it
// binds and the paths it matches against. A leading `mut` widens the range.
func (c *converter) pat(n *sitter.Node, mut *sitter.Node, role string) *syntax.Node {
	r := rangeOf(n)
	if mut != nil {
		r.Start = int(mut.StartByte())
	}
	var kids []*syntax.Node
	c.patChildren(n, &kids)
	return syntax.NewNode(syntax.KindPat, r, role, kids...)
}

func (c *converter) patChildren(n *sitter.Node, out *[]*syntax.Node) {
	switch n.Type() {
	case "identifier", "shorthand_field_identifier":
		*out = append(*out, leaf(syntax.KindName, n, ""))
		return
	case "scoped_identifier", "scoped_type_identifier", "type_identifier":
		*out = append(*out, c.path(n, "path"))
		return
	case "string_literal", "raw_string_literal":
		*out = append(*out, leaf(syntax.KindString, n, ""))
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch == nil || !ch.IsNamed() {
			continue
		}
		switch field := n.FieldNameForChild(i); {
		case field == "name" && n.Type() == "field_pattern" && ch.Type() == "field_identifier":
			continue
		case field == "type":
			*out = append(*out, c.path(ch, "path"))
		case field == "condition":
			if conv := c.node(ch, field); conv != nil {
				*out = append(*out, conv)
			}
		default:
			c.patChildren(ch, out)
		}
	}
}

// typ converts a type. Nominal types carry the Path they name.
func (c *converter) typ(n *sitter.Node, role string) *syntax.Node {
	var target *sitter.Node
	switch n.Type() {
	case "type_identifier", "scoped_type_identifier", "scoped_identifier", "identifier":
		target = n
	case "generic_type":
		target = n.ChildByFieldName("type")
	}
	if target != nil {
		if segs, ok := c.segments(target); ok {
			return syntax.NewNode(syntax.KindType, rangeOf(n), role,
				syntax.NewNode(syntax.KindPath, rangeOf(target), "path", segs...))
		}
	}
	return leaf(syntax.KindType, n, role)
}

// segments flattens a (possibly scoped) path into NameRef nodes. It fails for
// qualified paths like <T as Trait>::f that cannot be resolved segment-wise.
func (c *converter) segments(n *sitter.Node) ([]*syntax.Node, bool) {
	switch n.Type() {
	case "identifier", "type_identifier", "self", "crate", "super", "metavariable":
		return []*syntax.Node{leaf(syntax.KindNameRef, n, "")}, true
	case "scoped_identifier", "scoped_type_identifier":
		var segs []*syntax.Node
		if p := n.ChildByFieldName("path"); p != nil {
			s, ok := c.segments(p)
			if !ok {
				return nil, false
			}
			segs = s
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil, false
		}
		s, ok := c.segments(name)
		if !ok {
			return nil, false
		}
		return append(segs, s...), true
	case "generic_type", "generic_type_with_turbofish":
		if t := n.ChildByFieldName("type"); t != nil {
			return c.segments(t)
		}
	case "generic_function":
		if f := n.ChildByFieldName("function"); f != nil {
			return c.segments(f)
		}
	}
	return nil, false
}

// path converts n into a bare Path node.
func (c *converter) path(n *sitter.Node, role string) *syntax.Node {
	segs, ok := c.segments(n)
	if !ok {
		return leaf(syntax.KindOther, n, role)
	}
	return syntax.NewNode(syntax.KindPath, rangeOf(n), role, segs...)
}

// pathExpr converts a path in expression position.
func (c *converter) pathExpr(n *sitter.Node, role string) *syntax.Node {
	segs, ok := c.segments(n)
	if !ok {
		return syntax.NewNode(syntax.KindExpr, rangeOf(n), role, c.children(n)...)
	}
	return syntax.NewNode(syntax.KindPathExpr, rangeOf(n), role,
		syntax.NewNode(syntax.KindPath, rangeOf(n), "", segs...))
}

// call converts a call expression. Calls through a field access are method
// calls and get their own kind so that callers never mistake them for plain
// function calls.
func (c *converter) call(n *sitter.Node, role string) *syntax.Node {
	kind := syntax.KindCallExpr
	if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "field_expression" {
		kind = syntax.KindMethodCallExpr
	}
	return syntax.NewNode(kind, rangeOf(n), role, c.children(n)...)
}

// tokenTree keeps only the string literals and nested trees of a macro's
// input, which is all the engine needs to protect literal text.
func (c *converter) tokenTree(n *sitter.Node, role string) *syntax.Node {
	var out []*syntax.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch == nil {
			continue
		}
		switch ch.Type() {
		case "string_literal", "raw_string_literal":
			out = append(out, leaf(syntax.KindString, ch, ""))
		case "token_tree":
			out = append(out, c.tokenTree(ch, ""))
		}
	}
	return syntax.NewNode(syntax.KindTokenTree, rangeOf(n), role, out...)
}

// use converts a use declaration into a Use node holding one UseTree.
func (c *converter) use(n *sitter.Node, role string) *syntax.Node {
	var kids []*syntax.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch == nil {
			continue
		}
		if ch.Type() == "visibility_modifier" {
			kids = append(kids, leaf(syntax.KindVisibility, ch, ""))
			continue
		}
		if t := c.useTree(ch); t != nil {
			kids = append(kids, t)
		}
	}
	return syntax.NewNode(syntax.KindUse, rangeOf(n), role, kids...)
}

// useTree mirrors the nesting of a use argument:
//
//	a::b          UseTree{Path}
//	a::b as c     UseTree{Path, Name(alias)}
//	a::*          UseTree{Path, Other(star)}
//	a::{b, c}     UseTree{Path, UseTree, UseTree}
func (c *converter) useTree(n *sitter.Node) *syntax.Node {
	r := rangeOf(n)
	switch n.Type() {
	case "use_as_clause":
		var kids []*syntax.Node
		if p := n.ChildByFieldName("path"); p != nil {
			kids = append(kids, c.path(p, "path"))
		}
		if a := n.ChildByFieldName("alias"); a != nil {
			kids = append(kids, leaf(syntax.KindName, a, "alias"))
		}
		return syntax.NewNode(syntax.KindUseTree, r, "", kids...)
	case "use_wildcard":
		var kids []*syntax.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if ch := n.NamedChild(i); ch != nil {
				kids = append(kids, c.path(ch, "path"))
				break
			}
		}
		star := syntax.NewNode(syntax.KindOther, syntax.TextRange{Start: r.End - 1, End: r.End}, "star")
		return syntax.NewNode(syntax.KindUseTree, r, "", append(kids, star)...)
	case "scoped_use_list":
		var kids []*syntax.Node
		if p := n.ChildByFieldName("path"); p != nil {
			kids = append(kids, c.path(p, "path"))
		}
		if l := n.ChildByFieldName("list"); l != nil {
			kids = append(kids, c.useList(l)...)
		}
		return syntax.NewNode(syntax.KindUseTree, r, "", kids...)
	case "use_list":
		return syntax.NewNode(syntax.KindUseTree, r, "", c.useList(n)...)
	case "line_comment", "block_comment":
		return nil
	}
	return syntax.NewNode(syntax.KindUseTree, r, "", c.path(n, "path"))
}

func (c *converter) useList(n *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch == nil {
			continue
		}
		if t := c.useTree(ch); t != nil {
			out = append(out, t)
		}
	}
	return out
}
