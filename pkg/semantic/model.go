// Package semantic defines the read-only view of a workspace that
// refactorings and searches are written against. Implementations answer
// every query from one immutable snapshot.
package semantic

import (
	"context"
	"iter"

	"github.com/mamaar/rsrefactor/pkg/importmap"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

// CrateID identifies a crate within a snapshot.
type CrateID uint32

// DefID is the identity of a definition. Two definitions are the same
// exactly when their IDs are equal. Local bindings have no stable identity
// and carry ID zero.
type DefID uint64

type DefKind int

const (
	Function DefKind = iota
	Const
	Static
	TypeAlias
	Struct
	Enum
	Union
	Variant
	Trait
	ModuleKind
	Macro
	Local
)

func (k DefKind) String() string {
	switch k {
	case Function:
		return "function"
	case Const:
		return "const"
	case Static:
		return "static"
	case TypeAlias:
		return "type_alias"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case Union:
		return "union"
	case Variant:
		return "variant"
	case Trait:
		return "trait"
	case ModuleKind:
		return "module"
	case Macro:
		return "macro"
	case Local:
		return "local"
	default:
		return "unknown"
	}
}

// KindOf maps a declaring syntax kind to the kind of definition it makes.
func KindOf(k syntax.Kind) (DefKind, bool) {
	switch k {
	case syntax.KindFn:
		return Function, true
	case syntax.KindConst:
		return Const, true
	case syntax.KindStatic:
		return Static, true
	case syntax.KindTypeAlias:
		return TypeAlias, true
	case syntax.KindStruct:
		return Struct, true
	case syntax.KindEnum:
		return Enum, true
	case syntax.KindUnion:
		return Union, true
	case syntax.KindVariant:
		return Variant, true
	case syntax.KindTrait:
		return Trait, true
	case syntax.KindModule, syntax.KindSourceFile:
		return ModuleKind, true
	case syntax.KindMacroRules:
		return Macro, true
	}
	return 0, false
}

// Definition is a handle to something a name can refer to.
type Definition struct {
	ID   DefID
	Kind DefKind
	Name string
}

// IsModuleDef reports whether d is an item that can be imported, as opposed
// to a local binding.
func (d Definition) IsModuleDef() bool {
	return d.Kind != Local
}

// Module is a module of a crate, identified by its definition.
type Module struct {
	Crate CrateID
	Def   DefID
}

// InFile is a syntax node together with the file it belongs to.
type InFile struct {
	File syntax.FileID
	Node *syntax.Node
}

type ContainerKind int

const (
	ImplContainer ContainerKind = iota
	TraitContainer
)

// Container is the impl or trait an associated item is declared in. Name is
// the impl's self type or the trait's name.
type Container struct {
	Kind ContainerKind
	Name string
}

// Model answers semantic queries against one snapshot. Every method fails
// closed: an unknown, ambiguous or stale input yields false rather than a
// guess.
type Model interface {
	// ResolvePath resolves a Path node of file.
	ResolvePath(file syntax.FileID, path *syntax.Node) (Definition, bool)
	// ScopeModule returns the module whose items are in scope at node.
	ScopeModule(file syntax.FileID, node *syntax.Node) (Module, bool)
	// IsVisibleFrom reports whether code in from may name def.
	IsVisibleFrom(def Definition, from Module) bool
	// Source returns the declaring node of def, if it has local source.
	Source(def Definition) (InFile, bool)
	// ParseFile returns the syntax tree of file in this snapshot.
	ParseFile(file syntax.FileID) (*syntax.Tree, bool)
	// ClassifyName returns what a Name node declares.
	ClassifyName(file syntax.FileID, name *syntax.Node) (Definition, bool)
	// AssocContainer returns the impl or trait an associated item belongs to.
	AssocContainer(def Definition) (Container, bool)
	// QueryExternalImportables searches the import maps of krate's direct
	// dependencies. The sequence stops early when ctx is cancelled.
	QueryExternalImportables(ctx context.Context, krate CrateID, q importmap.Query) iter.Seq[Definition]
	// ImportPath returns the path code in crate from would use to import
	// def, starting with "crate" for items of from itself.
	ImportPath(def Definition, from CrateID) ([]string, bool)
}
