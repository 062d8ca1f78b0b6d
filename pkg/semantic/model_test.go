package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mamaar/rsrefactor/pkg/syntax"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   syntax.Kind
		want DefKind
		ok   bool
	}{
		{syntax.KindFn, Function, true},
		{syntax.KindConst, Const, true},
		{syntax.KindStatic, Static, true},
		{syntax.KindTypeAlias, TypeAlias, true},
		{syntax.KindStruct, Struct, true},
		{syntax.KindEnum, Enum, true},
		{syntax.KindUnion, Union, true},
		{syntax.KindVariant, Variant, true},
		{syntax.KindTrait, Trait, true},
		{syntax.KindModule, ModuleKind, true},
		{syntax.KindSourceFile, ModuleKind, true},
		{syntax.KindMacroRules, Macro, true},
		{syntax.KindImpl, 0, false},
		{syntax.KindLetStmt, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got, ok := KindOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsModuleDef(t *testing.T) {
	assert.True(t, Definition{ID: 3, Kind: Function, Name: "f"}.IsModuleDef())
	assert.True(t, Definition{ID: 4, Kind: Macro, Name: "m"}.IsModuleDef())
	assert.False(t, Definition{Kind: Local, Name: "x"}.IsModuleDef())
}
