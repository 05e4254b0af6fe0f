package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleandoc(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"single line", "Hello.", "Hello."},
		{
			"typical docstring",
			"Summary line.\n\n    Indented body.\n    Second line.\n    ",
			"Summary line.\n\nIndented body.\nSecond line.",
		},
		{
			"first line indented",
			"    Summary.\n    Body.",
			"Summary.\nBody.",
		},
		{
			"deeper indent preserved",
			"Summary.\n\n    Body.\n        Code.",
			"Summary.\n\nBody.\n    Code.",
		},
		{
			"tabs expanded",
			"Summary.\n\tBody.",
			"Summary.\nBody.",
		},
		{
			"blank edges stripped",
			"\n\n    Text.\n\n",
			"Text.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cleandoc(tt.in))
		})
	}
}

func TestParametersGetIgnoresStars(t *testing.T) {
	params := NewParameters(
		Parameter{Name: "a", Annotation: "int"},
		Parameter{Name: "*args", Annotation: "str", Kind: VarPositional},
		Parameter{Name: "**kwargs", Kind: VarKeyword},
	)

	p, ok := params.Get("args")
	require.True(t, ok)
	assert.Equal(t, "str", p.Annotation)

	p, ok = params.Get("*args")
	require.True(t, ok)
	assert.Equal(t, "*args", p.Name)

	_, ok = params.Get("missing")
	assert.False(t, ok)
}

func TestAddMemberWiresPathAndParent(t *testing.T) {
	pkg := NewObject("pkg", KindPackage)
	pkg.Path = "pkg"

	mod := NewObject("mod", KindModule)
	pkg.AddMember(mod)

	fn := NewObject("run", KindFunction)
	mod.AddMember(fn)

	assert.Equal(t, "pkg.mod", mod.Path)
	assert.Equal(t, "pkg.mod.run", fn.Path)
	assert.Same(t, mod, fn.Parent)

	resolved, err := pkg.Resolve("mod.run")
	require.NoError(t, err)
	assert.Same(t, fn, resolved)

	_, err = pkg.Resolve("mod.missing")
	assert.Error(t, err)
}

func TestAddMemberDuplicateReplacesInPlace(t *testing.T) {
	mod := NewObject("mod", KindModule)
	mod.AddMember(NewObject("a", KindFunction))
	first := NewObject("x", KindAttribute)
	mod.AddMember(first)
	mod.AddMember(NewObject("b", KindFunction))

	second := NewObject("x", KindFunction)
	mod.AddMember(second)

	members := mod.Members()
	require.Len(t, members, 3)
	assert.Same(t, second, members[1])
	assert.Same(t, second, mod.Member("x"))
}

func TestSignature(t *testing.T) {
	fn := NewObject("run", KindFunction)
	fn.Parameters = NewParameters(
		Parameter{Name: "a", Kind: PositionalOrKeyword},
		Parameter{Name: "b", Annotation: "int", Default: "5", Kind: PositionalOrKeyword},
		Parameter{Name: "*args", Kind: VarPositional},
		Parameter{Name: "c", Annotation: "str", Default: "'x'", Kind: KeywordOnly},
		Parameter{Name: "**kw", Kind: VarKeyword},
	)
	fn.Returns = "dict[str, int]"

	assert.Equal(t, "run(a, b: int = 5, *args, c: str = 'x', **kw) -> dict[str, int]", fn.Signature())
}

func TestSignatureKeywordOnlyMarker(t *testing.T) {
	fn := NewObject("f", KindFunction)
	fn.Parameters = NewParameters(
		Parameter{Name: "a", Kind: PositionalOrKeyword},
		Parameter{Name: "b", Kind: KeywordOnly},
	)

	assert.Equal(t, "f(a, *, b)", fn.Signature())
}

func TestObjectJSONKeepsMemberOrder(t *testing.T) {
	mod := NewObject("mod", KindModule)
	mod.Path = "mod"
	mod.AddMember(NewObject("zeta", KindFunction))
	mod.AddMember(NewObject("alpha", KindClass))

	data, err := json.Marshal(mod)
	require.NoError(t, err)

	var decoded struct {
		Members []struct {
			Name string `json:"name"`
		} `json:"members"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Members, 2)
	assert.Equal(t, "zeta", decoded.Members[0].Name)
	assert.Equal(t, "alpha", decoded.Members[1].Name)
}

func TestNewDocstringComputesLineEnd(t *testing.T) {
	d := NewDocstring("Line one.\n\n    Line three.", 10)
	assert.Equal(t, "Line one.\n\nLine three.", d.Value)
	assert.Equal(t, 10, d.LineStart)
	assert.Equal(t, 12, d.LineEnd)
}
