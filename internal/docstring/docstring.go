// Package docstring parses Python docstrings into structured sections.
//
// Two styles are supported: Google-style sections ("Parameters:", "Returns:",
// ...) and RST field directives (":param x:", ":returns:", ...). Parsers
// report recoverable problems through the package Warn hook instead of
// failing, so a malformed docstring always yields a best-effort result.
package docstring

import (
	"fmt"

	"github.com/adelyne/pydex/internal/logger"
	"github.com/adelyne/pydex/internal/model"
)

var log = logger.ForComponent("docstring")

// Style selects the docstring parser.
type Style string

const (
	StyleGoogle Style = "google"
	StyleRST    Style = "rst"
	StyleNone   Style = "none"
)

func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleGoogle, StyleRST, StyleNone:
		return Style(s), nil
	case "":
		return StyleNone, nil
	default:
		return StyleNone, fmt.Errorf("unknown docstring style '%s'", s)
	}
}

// SectionKind discriminates the typed value of a Section.
type SectionKind string

const (
	SectionText              SectionKind = "text"
	SectionParameters        SectionKind = "parameters"
	SectionKeywordParameters SectionKind = "keyword parameters"
	SectionAttributes        SectionKind = "attributes"
	SectionReturns           SectionKind = "returns"
	SectionYields            SectionKind = "yields"
	SectionRaises            SectionKind = "raises"
	SectionExamples          SectionKind = "examples"
)

// Section is one parsed docstring section. Value holds a string for text
// sections, []ParameterDoc, []AttributeDoc, []RaiseDoc, []Example, or a
// ReturnDoc/YieldDoc depending on Kind.
type Section struct {
	Kind  SectionKind `json:"kind"`
	Value interface{} `json:"value"`
}

type ParameterDoc struct {
	Name        string `json:"name"`
	Annotation  string `json:"annotation,omitempty"`
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
}

type AttributeDoc struct {
	Name        string `json:"name"`
	Annotation  string `json:"annotation,omitempty"`
	Description string `json:"description"`
}

type RaiseDoc struct {
	Exception   string `json:"exception"`
	Description string `json:"description"`
}

type ReturnDoc struct {
	Annotation  string `json:"annotation,omitempty"`
	Description string `json:"description"`
}

type YieldDoc struct {
	Annotation  string `json:"annotation,omitempty"`
	Description string `json:"description"`
}

type ExampleKind string

const (
	ExampleText    ExampleKind = "text"
	ExampleDoctest ExampleKind = "doctest"
)

type Example struct {
	Kind ExampleKind `json:"kind"`
	Text string      `json:"text"`
}

// WarnFunc receives recoverable parse problems. The offset is the zero-based
// line index inside the docstring the problem was found at.
type WarnFunc func(d *model.Docstring, offset int, message string)

// Warn is the package warning hook. Tests replace it to capture messages.
var Warn WarnFunc = func(d *model.Docstring, offset int, message string) {
	line := 0
	if d != nil {
		line = d.LineStart + offset
	}
	log.Warn(message, "line", line)
}

func warn(d *model.Docstring, offset int, format string, args ...interface{}) {
	Warn(d, offset, fmt.Sprintf(format, args...))
}

// Parse runs the parser selected by style. StyleNone returns a single text
// section holding the raw value.
func Parse(d *model.Docstring, style Style) []Section {
	switch style {
	case StyleGoogle:
		return ParseGoogle(d)
	case StyleRST:
		return ParseRST(d)
	default:
		return []Section{{Kind: SectionText, Value: d.Value}}
	}
}
