package docstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adelyne/pydex/internal/model"
)

func TestParseRSTTextOnly(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(model.NewDocstring("Just a description.\n\nWith two paragraphs.", 1))

	require.Len(t, sections, 1)
	assert.Equal(t, SectionText, sections[0].Kind)
	assert.Equal(t, "Just a description.\n\nWith two paragraphs.", sections[0].Value)
	assert.Empty(t, *warnings)
}

func TestParseRSTParameters(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(docWithParent(`Add two numbers.

:param a: The first number.
:param int b: The second number.
`, addFunction()))

	require.Len(t, sections, 2)
	assert.Equal(t, "Add two numbers.", sections[0].Value)

	params := sections[1].Value.([]ParameterDoc)
	require.Len(t, params, 2)
	assert.Equal(t, "a", params[0].Name)
	assert.Equal(t, "int", params[0].Annotation)
	assert.Equal(t, "The first number.", params[0].Description)
	assert.Equal(t, "int", params[1].Annotation)
	assert.Equal(t, "0", params[1].Default)
	assert.Empty(t, *warnings)
}

func TestParseRSTTypeDirective(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(model.NewDocstring(`:param x: The value.
:type x: int or str
`, 1))

	require.Len(t, sections, 2)
	params := sections[1].Value.([]ParameterDoc)
	require.Len(t, params, 1)
	assert.Equal(t, "int | str", params[0].Annotation)

	// The :param: line comes before :type: and has no parent to fall
	// back on.
	require.Len(t, *warnings, 1)
	assert.Contains(t, (*warnings)[0], "No matching parameter for 'x'")
}

func TestParseRSTTypeBeforeParam(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(model.NewDocstring(`:type x: int
:param x: The value.
`, 1))

	require.Len(t, sections, 2)
	params := sections[1].Value.([]ParameterDoc)
	assert.Equal(t, "int", params[0].Annotation)
	assert.Empty(t, *warnings)
}

func TestParseRSTDuplicateParameterWarns(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(docWithParent(`:param a: First.
:param a: Again.
`, addFunction()))

	params := sections[1].Value.([]ParameterDoc)
	require.Len(t, params, 1)
	require.Len(t, *warnings, 1)
	assert.Contains(t, (*warnings)[0], "Duplicate parameter entry for 'a'")
}

func TestParseRSTContinuationLines(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(docWithParent(`:param a: A description
    spanning multiple
    lines.
`, addFunction()))

	params := sections[1].Value.([]ParameterDoc)
	require.Len(t, params, 1)
	assert.Equal(t, "A description spanning multiple lines.", params[0].Description)
	assert.Empty(t, *warnings)
}

func TestParseRSTAttributes(t *testing.T) {
	sections := ParseRST(model.NewDocstring(`:var name: The object name.
:vartype name: str
:ivar count: How many.
`, 1))

	require.Len(t, sections, 2)
	attrs := sections[1].Value.([]AttributeDoc)
	require.Len(t, attrs, 2)
	assert.Equal(t, "name", attrs[0].Name)
	assert.Equal(t, "str", attrs[0].Annotation)
	assert.Equal(t, "count", attrs[1].Name)
}

func TestParseRSTReturnsAndRaises(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(docWithParent(`:returns: The sum.
:rtype: int
:raises ValueError: on bad input.
`, nil))

	require.Len(t, sections, 3)

	ret := sections[1].Value.(ReturnDoc)
	assert.Equal(t, "int", ret.Annotation)
	assert.Equal(t, "The sum.", ret.Description)

	raises := sections[2].Value.([]RaiseDoc)
	require.Len(t, raises, 1)
	assert.Equal(t, "ValueError", raises[0].Exception)

	// :rtype: appears after :returns: and back-patches the annotation, but
	// the :returns: line itself had nothing to resolve against.
	require.Len(t, *warnings, 1)
	assert.Contains(t, (*warnings)[0], "No return type or annotation")
}

func TestParseRSTReturnAnnotationFromSignature(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(docWithParent(":returns: The sum.\n", addFunction()))

	require.Len(t, sections, 2)
	ret := sections[1].Value.(ReturnDoc)
	assert.Equal(t, "int", ret.Annotation)
	assert.Empty(t, *warnings)
}

func TestParseRSTInvalidDirectiveWarns(t *testing.T) {
	warnings := captureWarnings(t)

	sections := ParseRST(model.NewDocstring(":param broken\n", 1))

	require.Len(t, sections, 1)
	assert.Equal(t, SectionText, sections[0].Kind)
	require.Len(t, *warnings, 1)
	assert.Contains(t, (*warnings)[0], "Failed to get ':directive: value' pair")
}
