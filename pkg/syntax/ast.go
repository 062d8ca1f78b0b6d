package syntax

// Typed accessors over the generic node shape produced by the front ends.

// Segments returns the identifier text of each segment of a Path node.
func Segments(path *Node) []string {
	if path == nil {
		return nil
	}
	refs := path.ChildrenOfKind(KindNameRef)
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Text()
	}
	return out
}

// NameOf returns the declared name of an item node.
func NameOf(item *Node) *Node {
	if item == nil {
		return nil
	}
	return item.ChildOfKind(KindName)
}

// Body returns the body block of a function, or nil for a declaration.
func Body(fn *Node) *Node {
	if b := fn.ChildByRole("body"); b != nil && b.Kind() == KindBlockExpr {
		return b
	}
	return nil
}

// Statements returns the statements of a block in source order, excluding
// comments and the tail expression.
func Statements(block *Node) []*Node {
	var out []*Node
	for _, c := range block.Children() {
		if c.Kind().IsStmt() && c.Role() != "tail" {
			out = append(out, c)
		}
	}
	return out
}

// Tail returns the trailing value expression of a block, if any.
func Tail(block *Node) *Node {
	return block.ChildByRole("tail")
}

// Args returns the argument expressions of an ArgList in call order.
func Args(list *Node) []*Node {
	var out []*Node
	for _, c := range list.Children() {
		if !c.Is(KindComment, KindAttr) {
			out = append(out, c)
		}
	}
	return out
}

// PatNames returns the Name nodes a pattern binds.
func PatNames(pat *Node) []*Node {
	if pat == nil {
		return nil
	}
	var out []*Node
	for n := range pat.Preorder() {
		if n.Kind() == KindName {
			out = append(out, n)
		}
	}
	return out
}

// ItemList returns the node holding the items of a module: the file root for
// a file module or the ItemList of an inline module.
func ItemList(mod *Node) *Node {
	if mod.Kind() == KindSourceFile {
		return mod
	}
	return mod.ChildOfKind(KindItemList)
}
