package loader

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adelyne/pydex/internal/docstring"
	"github.com/adelyne/pydex/internal/model"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func samplePackage(t *testing.T) string {
	return writeTree(t, map[string]string{
		"mypkg/__init__.py": `"""My package."""

__version__ = "1.0"
`,
		"mypkg/core.py": `"""Core module."""

def greet(name: str = "world") -> str:
    """Greet someone.

    Args:
        name: Who to greet.

    Returns:
        The greeting.
    """
    return "hello " + name


class Thing:
    """A thing."""

    kind = "basic"
`,
		"mypkg/sub/__init__.py": `"""Subpackage."""
`,
		"mypkg/sub/util.py": `def helper():
    pass
`,
		"mypkg/test_skip.py": `SHOULD_NOT_APPEAR = 1
`,
	})
}

func TestLoadPackageTree(t *testing.T) {
	root := samplePackage(t)
	l := New(Options{
		SearchPaths: []string{root},
		Excludes:    []string{"**/test_*.py"},
	})

	pkg, err := l.Load(context.Background(), "mypkg")
	require.NoError(t, err)

	assert.Equal(t, model.KindPackage, pkg.Kind)
	assert.Equal(t, "mypkg", pkg.Path)
	require.NotNil(t, pkg.Docstring)
	assert.Equal(t, "My package.", pkg.Docstring.Value)

	version := pkg.Member("__version__")
	require.NotNil(t, version)
	assert.Equal(t, model.KindAttribute, version.Kind)
	assert.Equal(t, `"1.0"`, version.Value)

	core := pkg.Member("core")
	require.NotNil(t, core)
	assert.Equal(t, model.KindModule, core.Kind)
	assert.Equal(t, "mypkg.core", core.Path)

	greet := core.Member("greet")
	require.NotNil(t, greet)
	assert.Equal(t, model.KindFunction, greet.Kind)
	assert.Equal(t, "str", greet.Returns)
	param, ok := greet.Parameters.Get("name")
	require.True(t, ok)
	assert.Equal(t, "str", param.Annotation)

	thing := core.Member("Thing")
	require.NotNil(t, thing)
	assert.Equal(t, model.KindClass, thing.Kind)
	require.NotNil(t, thing.Member("kind"))
	assert.Equal(t, "mypkg.core.Thing.kind", thing.Member("kind").Path)

	util := pkg.Member("sub").Member("util")
	require.NotNil(t, util)
	assert.NotNil(t, util.Member("helper"))

	assert.Nil(t, pkg.Member("test_skip"))
}

func TestLoadSingleModule(t *testing.T) {
	root := writeTree(t, map[string]string{
		"single.py": `"""A lone module."""

X = 1
`,
	})

	l := New(Options{SearchPaths: []string{root}})
	mod, err := l.Load(context.Background(), "single")
	require.NoError(t, err)

	assert.Equal(t, model.KindModule, mod.Kind)
	assert.Equal(t, "single", mod.Path)
	assert.NotNil(t, mod.Member("X"))
}

func TestLoadDottedName(t *testing.T) {
	root := samplePackage(t)
	l := New(Options{SearchPaths: []string{root}})

	core, err := l.Load(context.Background(), "mypkg.core")
	require.NoError(t, err)
	assert.Equal(t, "mypkg.core", core.Path)
	assert.NotNil(t, core.Member("greet"))
}

func TestLoadNotFound(t *testing.T) {
	l := New(Options{SearchPaths: []string{t.TempDir()}})

	_, err := l.Load(context.Background(), "missing")
	require.Error(t, err)

	var notFound *ModuleNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Name)
}

func TestLoadParsesDocstrings(t *testing.T) {
	root := samplePackage(t)
	l := New(Options{
		SearchPaths: []string{root},
		Style:       docstring.StyleGoogle,
	})

	pkg, err := l.Load(context.Background(), "mypkg")
	require.NoError(t, err)

	greet, err := pkg.Resolve("core.greet")
	require.NoError(t, err)
	require.NotNil(t, greet.Docstring)

	sections, ok := greet.Docstring.Parsed.([]docstring.Section)
	require.True(t, ok)
	require.Len(t, sections, 3)
	assert.Equal(t, docstring.SectionText, sections[0].Kind)
	assert.Equal(t, docstring.SectionParameters, sections[1].Kind)
	assert.Equal(t, docstring.SectionReturns, sections[2].Kind)

	params := sections[1].Value.([]docstring.ParameterDoc)
	assert.Equal(t, "str", params[0].Annotation)
	assert.Equal(t, `"world"`, params[0].Default)
}

func TestLoadParallelMatchesSerial(t *testing.T) {
	root := samplePackage(t)

	serial := New(Options{SearchPaths: []string{root}, Workers: 1})
	parallel := New(Options{SearchPaths: []string{root}, Workers: 4})

	a, err := serial.Load(context.Background(), "mypkg")
	require.NoError(t, err)
	b, err := parallel.Load(context.Background(), "mypkg")
	require.NoError(t, err)

	aJSON, err := json.Marshal(a)
	require.NoError(t, err)
	bJSON, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(aJSON), string(bJSON))
}

func TestLoadCanceledContext(t *testing.T) {
	root := samplePackage(t)
	l := New(Options{SearchPaths: []string{root}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, "mypkg")
	assert.Error(t, err)
}
