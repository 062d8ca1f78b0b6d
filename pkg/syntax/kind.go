package syntax

// Kind classifies a syntax node. The set is closed: language front ends map
// their concrete grammar onto these kinds and fall back to KindExpr,
// KindType or KindOther for constructs the engine never inspects.
type Kind uint8

const (
	KindError Kind = iota
	KindSourceFile

	// Items
	KindFn
	KindModule
	KindItemList
	KindImpl
	KindTrait
	KindStruct
	KindEnum
	KindVariant
	KindUnion
	KindConst
	KindStatic
	KindTypeAlias
	KindMacroRules
	KindUse
	KindUseTree
	KindExternCrate
	KindVisibility
	KindAttr

	// Names and paths
	KindName
	KindNameRef
	KindPath

	// Signatures
	KindParamList
	KindParam
	KindSelfParam
	KindPat

	// Statements and expressions
	KindBlockExpr
	KindLetStmt
	KindExprStmt
	KindPathExpr
	KindCallExpr
	KindMethodCallExpr
	KindArgList
	KindMacroCall
	KindTokenTree
	KindClosureParams
	KindExpr

	// Leaves
	KindString
	KindComment
	KindType
	KindOther
)

var kindNames = [...]string{
	KindError:          "ERROR",
	KindSourceFile:     "SOURCE_FILE",
	KindFn:             "FN",
	KindModule:         "MODULE",
	KindItemList:       "ITEM_LIST",
	KindImpl:           "IMPL",
	KindTrait:          "TRAIT",
	KindStruct:         "STRUCT",
	KindEnum:           "ENUM",
	KindVariant:        "VARIANT",
	KindUnion:          "UNION",
	KindConst:          "CONST",
	KindStatic:         "STATIC",
	KindTypeAlias:      "TYPE_ALIAS",
	KindMacroRules:     "MACRO_RULES",
	KindUse:            "USE",
	KindUseTree:        "USE_TREE",
	KindExternCrate:    "EXTERN_CRATE",
	KindVisibility:     "VISIBILITY",
	KindAttr:           "ATTR",
	KindName:           "NAME",
	KindNameRef:        "NAME_REF",
	KindPath:           "PATH",
	KindParamList:      "PARAM_LIST",
	KindParam:          "PARAM",
	KindSelfParam:      "SELF_PARAM",
	KindPat:            "PAT",
	KindBlockExpr:      "BLOCK_EXPR",
	KindLetStmt:        "LET_STMT",
	KindExprStmt:       "EXPR_STMT",
	KindPathExpr:       "PATH_EXPR",
	KindCallExpr:       "CALL_EXPR",
	KindMethodCallExpr: "METHOD_CALL_EXPR",
	KindArgList:        "ARG_LIST",
	KindMacroCall:      "MACRO_CALL",
	KindTokenTree:      "TOKEN_TREE",
	KindClosureParams:  "CLOSURE_PARAMS",
	KindExpr:           "EXPR",
	KindString:         "STRING",
	KindComment:        "COMMENT",
	KindType:           "TYPE",
	KindOther:          "OTHER",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// IsItem reports whether nodes of this kind declare a named item.
func (k Kind) IsItem() bool {
	switch k {
	case KindFn, KindModule, KindTrait, KindStruct, KindEnum, KindVariant, KindUnion,
		KindConst, KindStatic, KindTypeAlias, KindMacroRules:
		return true
	}
	return false
}

// IsStmt reports whether nodes of this kind can appear as block statements.
func (k Kind) IsStmt() bool {
	return k == KindLetStmt || k == KindExprStmt || k.IsItem() || k == KindImpl || k == KindUse || k == KindExternCrate
}
