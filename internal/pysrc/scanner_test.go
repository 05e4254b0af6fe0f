package pysrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adelyne/pydex/internal/model"
)

const sampleSource = `"""Module docs.

More.
"""

VERSION = "1.0"
'''The version.'''

COUNT: int = 3


class Greeter(Base, mixin.Mixin):
    """Greets."""

    name: str = "world"
    """Who to greet."""

    def greet(
        self,
        prefix="Hello",
    ):
        """Say hi."""
        return prefix

    @staticmethod
    async def fetch(url):
        pass


def add(a, b: int = 5, /, *args, c: str = "x", **kw) -> dict[str, int]:
    """Add."""
    x = 1
    return x
`

func TestScanModule(t *testing.T) {
	mod := ScanModule(sampleSource)

	assert.Equal(t, "Module docs.\n\nMore.\n", mod.Docstring)
	assert.Equal(t, 1, mod.DocstringLine)

	require.Len(t, mod.Attributes, 2)
	version := mod.Attributes[0]
	assert.Equal(t, "VERSION", version.Name)
	assert.Equal(t, `"1.0"`, version.Value)
	assert.Equal(t, "The version.", version.Docstring)
	count := mod.Attributes[1]
	assert.Equal(t, "COUNT", count.Name)
	assert.Equal(t, "int", count.Annotation)
	assert.Equal(t, "3", count.Value)

	require.Len(t, mod.Children, 2)

	greeter := mod.Children[0]
	assert.Equal(t, "class", greeter.Kind)
	assert.Equal(t, "Greeter", greeter.Name)
	assert.Equal(t, []string{"Base", "mixin.Mixin"}, greeter.Bases)
	assert.Equal(t, "Greets.", greeter.Docstring)
	assert.Equal(t, 12, greeter.LineStart)

	require.Len(t, greeter.Attributes, 1)
	assert.Equal(t, "name", greeter.Attributes[0].Name)
	assert.Equal(t, "str", greeter.Attributes[0].Annotation)
	assert.Equal(t, "Who to greet.", greeter.Attributes[0].Docstring)

	require.Len(t, greeter.Children, 2)

	greet := greeter.Children[0]
	assert.Equal(t, "greet", greet.Name)
	assert.Equal(t, 18, greet.LineStart)
	assert.Equal(t, "Say hi.", greet.Docstring)
	require.Equal(t, 2, greet.Parameters.Len())
	assert.Equal(t, "self", greet.Parameters.At(0).Name)
	assert.Equal(t, "prefix", greet.Parameters.At(1).Name)
	assert.Equal(t, `"Hello"`, greet.Parameters.At(1).Default)

	fetch := greeter.Children[1]
	assert.Equal(t, "fetch", fetch.Name)
	assert.True(t, fetch.Async)
	assert.Equal(t, []string{"staticmethod"}, fetch.Decorators)

	add := mod.Children[1]
	assert.Equal(t, "function", add.Kind)
	assert.Equal(t, "dict[str, int]", add.Returns)
	// x = 1 inside the body must not become an attribute
	assert.Empty(t, add.Attributes)

	require.Equal(t, 5, add.Parameters.Len())
	assert.Equal(t, model.PositionalOnly, add.Parameters.At(0).Kind)
	assert.Equal(t, model.PositionalOnly, add.Parameters.At(1).Kind)
	assert.Equal(t, "5", add.Parameters.At(1).Default)
	assert.Equal(t, model.VarPositional, add.Parameters.At(2).Kind)
	assert.Equal(t, "*args", add.Parameters.At(2).Name)
	assert.Equal(t, model.KeywordOnly, add.Parameters.At(3).Kind)
	assert.Equal(t, `"x"`, add.Parameters.At(3).Default)
	assert.Equal(t, model.VarKeyword, add.Parameters.At(4).Kind)
	assert.Equal(t, "**kw", add.Parameters.At(4).Name)
}

func TestScanModuleKeywordOnlyMarker(t *testing.T) {
	mod := ScanModule("def f(a, *, b=1):\n    pass\n")

	require.Len(t, mod.Children, 1)
	params := mod.Children[0].Parameters
	require.Equal(t, 2, params.Len())
	assert.Equal(t, model.PositionalOrKeyword, params.At(0).Kind)
	assert.Equal(t, model.KeywordOnly, params.At(1).Kind)
}

func TestScanModuleStringsAreOpaque(t *testing.T) {
	mod := ScanModule(`TEMPLATE = """
def not_a_function():
    pass
"""

def real():
    pass
`)

	require.Len(t, mod.Children, 1)
	assert.Equal(t, "real", mod.Children[0].Name)
	require.Len(t, mod.Attributes, 1)
	assert.Equal(t, "TEMPLATE", mod.Attributes[0].Name)
}

func TestScanModuleNestedFunctions(t *testing.T) {
	mod := ScanModule(`def outer():
    def inner():
        pass
    return inner
`)

	require.Len(t, mod.Children, 1)
	outer := mod.Children[0]
	require.Len(t, outer.Children, 1)
	assert.Equal(t, "inner", outer.Children[0].Name)
}

func TestScanModuleComparisonIsNotAssignment(t *testing.T) {
	mod := ScanModule("x == 3\ny += 1\nz = 4\n")

	require.Len(t, mod.Attributes, 1)
	assert.Equal(t, "z", mod.Attributes[0].Name)
}

func TestScanModuleBareAnnotation(t *testing.T) {
	mod := ScanModule("class C:\n    x: int\n")

	require.Len(t, mod.Children, 1)
	attrs := mod.Children[0].Attributes
	require.Len(t, attrs, 1)
	assert.Equal(t, "x", attrs[0].Name)
	assert.Equal(t, "int", attrs[0].Annotation)
	assert.Equal(t, "", attrs[0].Value)
}

func TestScanModuleInlineBody(t *testing.T) {
	mod := ScanModule("def f() -> int: return 1\n\ndef g() -> dict[str, int]: ...\n")

	require.Len(t, mod.Children, 2)
	assert.Equal(t, "int", mod.Children[0].Returns)
	assert.Equal(t, "dict[str, int]", mod.Children[1].Returns)
}

func TestScanModuleLineEnds(t *testing.T) {
	mod := ScanModule(`def a():
    pass


def b():
    pass
`)

	require.Len(t, mod.Children, 2)
	assert.Equal(t, 1, mod.Children[0].LineStart)
	assert.Equal(t, 2, mod.Children[0].LineEnd)
	assert.Equal(t, 5, mod.Children[1].LineStart)
	assert.Equal(t, 6, mod.Children[1].LineEnd)
}
