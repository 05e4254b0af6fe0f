// Package pysrc reads Python source files: it resolves their encoding and
// scans them for the definitions that make up a module's API surface.
//
// The scanner is a line scanner, not a full parser. It tracks indentation,
// bracket depth and string state across lines, which is enough to recover
// def/class statements with their signatures, docstrings and attribute
// assignments while never mistaking code inside string literals for
// definitions.
package pysrc

import (
	"regexp"
	"strings"

	"github.com/adelyne/pydex/internal/model"
)

// Node is a class or function definition found in a module.
type Node struct {
	Kind          string
	Name          string
	Parameters    *model.Parameters
	Returns       string
	Bases         []string
	Decorators    []string
	Async         bool
	LineStart     int
	LineEnd       int
	Docstring     string
	DocstringLine int
	Children      []*Node
	Attributes    []Attribute
}

// Attribute is a module- or class-level assignment, optionally documented by
// a string literal on the following statement.
type Attribute struct {
	Name          string
	Annotation    string
	Value         string
	Line          int
	Docstring     string
	DocstringLine int
}

// Module is the scan result for one source file.
type Module struct {
	Docstring     string
	DocstringLine int
	Children      []*Node
	Attributes    []Attribute
}

var (
	assignRe     = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?::\s*([^=]+?))?\s*=\s*(.+)$`)
	annotationRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(.+)$`)
)

var pyKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true,
	"try": true, "except": true, "finally": true, "with": true,
	"return": true, "pass": true, "raise": true, "del": true,
	"assert": true, "lambda": true, "yield": true, "import": true,
	"from": true, "global": true, "nonlocal": true, "match": true,
	"case": true, "not": true, "and": true, "or": true, "in": true, "is": true,
}

type scanFrame struct {
	indent          int
	node            *Node // nil for the module frame
	awaitingDocstr  bool
	lastAttr        *Attribute
	lastAttrLine    int
	allowAttributes bool
}

type scanner struct {
	lines       []string
	module      *Module
	stack       []*scanFrame
	decorators  []string
	lastContent int
}

// ScanModule extracts definitions, attributes and docstrings from Python
// source. Line numbers are 1-based.
func ScanModule(source string) *Module {
	s := &scanner{
		lines:  strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n"),
		module: &Module{},
	}
	s.stack = []*scanFrame{{indent: -1, awaitingDocstr: true, allowAttributes: true}}
	s.run()
	return s.module
}

func (s *scanner) run() {
	i := 0
	for i < len(s.lines) {
		line := s.lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			i++
			continue
		}

		indent := indentWidth(line)
		s.popTo(indent)
		top := s.top()

		switch {
		case strings.HasPrefix(trimmed, "@"):
			stmt, next := s.logicalLine(i)
			s.decorators = append(s.decorators, strings.TrimPrefix(strings.TrimSpace(stmt), "@"))
			s.lastContent = next
			i = next
			continue

		case strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def ") || strings.HasPrefix(trimmed, "class "):
			stmt, next := s.logicalLine(i)
			node := parseDefinition(stmt, i+1)
			if node != nil {
				node.Decorators = s.decorators
				s.attach(node)
				s.stack = append(s.stack, &scanFrame{
					indent:          indent,
					node:            node,
					awaitingDocstr:  true,
					allowAttributes: node.Kind == "class",
				})
			}
			s.decorators = nil
			top.lastAttr = nil
			s.lastContent = next
			i = next
			continue

		case isStringStart(trimmed):
			text, next := s.consumeString(i)
			s.handleStringStatement(top, text, i+1)
			s.decorators = nil
			s.lastContent = next
			i = next
			continue

		default:
			stmt, next := s.logicalLine(i)
			s.handleStatement(top, strings.TrimSpace(stmt), i+1)
			s.decorators = nil
			s.lastContent = next
			i = next
			continue
		}
	}

	s.popTo(0)
}

func (s *scanner) top() *scanFrame {
	return s.stack[len(s.stack)-1]
}

// popTo closes every frame whose body cannot contain a statement at the
// given indentation.
func (s *scanner) popTo(indent int) {
	for len(s.stack) > 1 && indent <= s.top().indent {
		frame := s.stack[len(s.stack)-1]
		if frame.node != nil {
			frame.node.LineEnd = s.lastContent
		}
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *scanner) attach(node *Node) {
	top := s.top()
	if top.node == nil {
		s.module.Children = append(s.module.Children, node)
	} else {
		top.node.Children = append(top.node.Children, node)
	}
	top.awaitingDocstr = false
}

func (s *scanner) handleStringStatement(top *scanFrame, text string, line int) {
	switch {
	case top.awaitingDocstr:
		if top.node == nil {
			s.module.Docstring = text
			s.module.DocstringLine = line
		} else {
			top.node.Docstring = text
			top.node.DocstringLine = line
		}
	case top.lastAttr != nil:
		top.lastAttr.Docstring = text
		top.lastAttr.DocstringLine = line
	}
	top.awaitingDocstr = false
	top.lastAttr = nil
}

func (s *scanner) handleStatement(top *scanFrame, stmt string, line int) {
	top.awaitingDocstr = false
	top.lastAttr = nil

	if !top.allowAttributes {
		return
	}

	if m := assignRe.FindStringSubmatch(stmt); m != nil && !strings.HasPrefix(m[3], "=") {
		if pyKeywords[m[1]] {
			return
		}
		attr := Attribute{
			Name:       m[1],
			Annotation: strings.TrimSpace(m[2]),
			Value:      strings.TrimSpace(m[3]),
			Line:       line,
		}
		s.storeAttribute(top, attr)
		return
	}

	if m := annotationRe.FindStringSubmatch(stmt); m != nil {
		if pyKeywords[m[1]] {
			return
		}
		attr := Attribute{
			Name:       m[1],
			Annotation: strings.TrimSpace(m[2]),
			Line:       line,
		}
		s.storeAttribute(top, attr)
	}
}

func (s *scanner) storeAttribute(top *scanFrame, attr Attribute) {
	if top.node == nil {
		s.module.Attributes = append(s.module.Attributes, attr)
		top.lastAttr = &s.module.Attributes[len(s.module.Attributes)-1]
	} else {
		top.node.Attributes = append(top.node.Attributes, attr)
		top.lastAttr = &top.node.Attributes[len(top.node.Attributes)-1]
	}
}

// logicalLine joins a statement with its continuation lines: lines ending in
// a backslash, and lines inside open brackets or unterminated strings.
// Returns the joined statement and the index of the next unconsumed line.
func (s *scanner) logicalLine(start int) (string, int) {
	var state strState
	depth := 0
	var parts []string

	i := start
	for i < len(s.lines) {
		line := s.lines[i]
		depth = scanLineState(line, depth, &state)
		parts = append(parts, strings.TrimSpace(line))
		i++
		if state.open {
			continue
		}
		if depth > 0 {
			continue
		}
		if strings.HasSuffix(strings.TrimRight(line, " \t"), "\\") {
			last := parts[len(parts)-1]
			parts[len(parts)-1] = strings.TrimSuffix(strings.TrimRight(last, " \t"), "\\")
			continue
		}
		break
	}

	return strings.Join(parts, " "), i
}

type strState struct {
	open   bool
	quote  byte
	triple bool
}

// scanLineState advances bracket depth and string state across one line.
func scanLineState(line string, depth int, state *strState) int {
	i := 0
	for i < len(line) {
		c := line[i]

		if state.open {
			if c == '\\' {
				i += 2
				continue
			}
			if c == state.quote {
				if state.triple {
					if i+2 < len(line) && line[i+1] == state.quote && line[i+2] == state.quote {
						state.open = false
						i += 3
						continue
					}
				} else {
					state.open = false
					i++
					continue
				}
			}
			i++
			continue
		}

		switch c {
		case '#':
			return depth
		case '\'', '"':
			state.quote = c
			state.open = true
			if i+2 < len(line) && line[i+1] == c && line[i+2] == c {
				state.triple = true
				i += 3
			} else {
				state.triple = false
				i++
			}
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		}
		i++
	}

	// A single-quoted string cannot span lines; an unterminated one is a
	// syntax error we recover from by closing it.
	if state.open && !state.triple {
		state.open = false
	}
	return depth
}

var stringPrefixRe = regexp.MustCompile(`^[rRbBuUfF]{0,2}("""|'''|"|')`)

func isStringStart(trimmed string) bool {
	return stringPrefixRe.MatchString(trimmed)
}

// consumeString reads a string literal statement starting at line index
// start and returns its inner text and the next unconsumed line index.
func (s *scanner) consumeString(start int) (string, int) {
	trimmed := strings.TrimSpace(s.lines[start])
	m := stringPrefixRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", start + 1
	}
	delim := m[1]
	rest := trimmed[len(m[0]):]

	if len(delim) == 1 {
		if idx := findClosingQuote(rest, delim[0]); idx >= 0 {
			return rest[:idx], start + 1
		}
		return rest, start + 1
	}

	// Triple-quoted: may close on the same line or span many.
	if idx := strings.Index(rest, delim); idx >= 0 {
		return rest[:idx], start + 1
	}

	var b strings.Builder
	b.WriteString(rest)
	i := start + 1
	for i < len(s.lines) {
		line := s.lines[i]
		if idx := strings.Index(line, delim); idx >= 0 {
			b.WriteString("\n")
			b.WriteString(line[:idx])
			return b.String(), i + 1
		}
		b.WriteString("\n")
		b.WriteString(line)
		i++
	}
	return b.String(), i
}

func findClosingQuote(s string, quote byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

// parseDefinition parses a consolidated def or class statement.
func parseDefinition(stmt string, line int) *Node {
	stmt = strings.TrimSpace(stmt)

	node := &Node{LineStart: line}
	switch {
	case strings.HasPrefix(stmt, "async def "):
		node.Kind = "function"
		node.Async = true
		stmt = strings.TrimPrefix(stmt, "async def ")
	case strings.HasPrefix(stmt, "def "):
		node.Kind = "function"
		stmt = strings.TrimPrefix(stmt, "def ")
	case strings.HasPrefix(stmt, "class "):
		node.Kind = "class"
		stmt = strings.TrimPrefix(stmt, "class ")
	default:
		return nil
	}

	nameEnd := strings.IndexAny(stmt, "(:")
	if nameEnd < 0 {
		return nil
	}
	node.Name = strings.TrimSpace(stmt[:nameEnd])
	if node.Name == "" {
		return nil
	}

	inner, after, ok := extractParens(stmt[nameEnd:])
	if node.Kind == "class" {
		if ok {
			for _, base := range splitTopLevel(inner, ',') {
				base = strings.TrimSpace(base)
				if base != "" {
					node.Bases = append(node.Bases, base)
				}
			}
		}
		return node
	}

	if !ok {
		return nil
	}
	node.Parameters = parseParameters(inner)
	node.Returns = parseReturns(after)
	return node
}

// extractParens returns the text inside the first balanced parentheses and
// whatever follows the closing one.
func extractParens(s string) (string, string, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return "", s, false
	}

	depth := 0
	var state strState
	for i := open; i < len(s); i++ {
		c := s[i]
		if state.open {
			if c == '\\' {
				i++
				continue
			}
			if c == state.quote {
				state.open = false
			}
			continue
		}
		switch c {
		case '\'', '"':
			state.open = true
			state.quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return s[open+1 : i], s[i+1:], true
			}
		}
	}
	return "", s, false
}

func parseReturns(after string) string {
	after = strings.TrimSpace(after)
	if !strings.HasPrefix(after, "->") {
		return ""
	}
	after = strings.TrimPrefix(after, "->")
	// A one-line def carries its body after the colon; the annotation ends
	// at the first colon outside brackets.
	if colon := indexTopLevel(after, ':'); colon >= 0 {
		after = after[:colon]
	}
	return strings.TrimSpace(after)
}

// parseParameters splits a parameter list and classifies each parameter's
// kind from the / and * markers.
func parseParameters(paramText string) *model.Parameters {
	params := model.NewParameters()
	if strings.TrimSpace(paramText) == "" {
		return params
	}

	seenStar := false
	var collected []model.Parameter

	for _, part := range splitTopLevel(paramText, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if part == "/" {
			for i := range collected {
				if collected[i].Kind == model.PositionalOrKeyword {
					collected[i].Kind = model.PositionalOnly
				}
			}
			continue
		}
		if part == "*" {
			seenStar = true
			continue
		}

		param := model.Parameter{Kind: model.PositionalOrKeyword}
		switch {
		case strings.HasPrefix(part, "**"):
			param.Kind = model.VarKeyword
		case strings.HasPrefix(part, "*"):
			param.Kind = model.VarPositional
			seenStar = true
		default:
			if seenStar {
				param.Kind = model.KeywordOnly
			}
		}

		rest := part
		if eq := indexTopLevel(rest, '='); eq >= 0 {
			param.Default = strings.TrimSpace(rest[eq+1:])
			rest = rest[:eq]
		}
		if colon := indexTopLevel(rest, ':'); colon >= 0 {
			param.Annotation = strings.TrimSpace(rest[colon+1:])
			rest = rest[:colon]
		}
		param.Name = strings.TrimSpace(rest)
		if param.Name == "" {
			continue
		}
		collected = append(collected, param)
	}

	for _, param := range collected {
		params.Add(param)
	}
	return params
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var state strState
	last := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if state.open {
			if c == '\\' {
				i++
				continue
			}
			if c == state.quote {
				state.open = false
			}
			continue
		}
		switch c {
		case '\'', '"':
			state.open = true
			state.quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

func indexTopLevel(s string, target byte) int {
	depth := 0
	var state strState
	for i := 0; i < len(s); i++ {
		c := s[i]
		if state.open {
			if c == '\\' {
				i++
				continue
			}
			if c == state.quote {
				state.open = false
			}
			continue
		}
		switch c {
		case '\'', '"':
			state.open = true
			state.quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == target && depth == 0 {
				// "->" and "==" must not split annotations or defaults
				if target == '=' {
					if i+1 < len(s) && s[i+1] == '=' {
						i++
						continue
					}
					if i > 0 && (s[i-1] == '=' || s[i-1] == '!' || s[i-1] == '<' || s[i-1] == '>') {
						continue
					}
				}
				return i
			}
		}
	}
	return -1
}

func indentWidth(line string) int {
	width := 0
	for _, c := range line {
		switch c {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		default:
			return width
		}
	}
	return width
}
