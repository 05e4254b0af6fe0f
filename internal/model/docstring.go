package model

import "strings"

// Docstring holds the raw docstring of an object. The value is cleaned the
// same way Python's inspect.cleandoc cleans it: tabs expanded, the common
// leading indentation of every line after the first removed, and leading and
// trailing blank lines dropped.
type Docstring struct {
	Value     string      `json:"value"`
	LineStart int         `json:"line_start,omitempty"`
	LineEnd   int         `json:"line_end,omitempty"`
	Parsed    interface{} `json:"parsed,omitempty"`

	Parent *Object `json:"-"`

	lines []string
}

func NewDocstring(value string, lineStart int) *Docstring {
	cleaned := Cleandoc(value)
	d := &Docstring{
		Value:     cleaned,
		LineStart: lineStart,
	}
	if lineStart > 0 {
		d.LineEnd = lineStart + strings.Count(cleaned, "\n")
	}
	return d
}

func (d *Docstring) Lines() []string {
	if d.lines == nil {
		d.lines = strings.Split(d.Value, "\n")
	}
	return d.lines
}

// Cleandoc normalizes an indented docstring literal.
func Cleandoc(value string) string {
	lines := strings.Split(expandTabs(value, 8), "\n")

	margin := -1
	for _, line := range lines[1:] {
		content := strings.TrimLeft(line, " ")
		if content == "" {
			continue
		}
		indent := len(line) - len(content)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimLeft(lines[0], " ")
	if margin > 0 {
		for i, line := range lines[1:] {
			if len(line) >= margin {
				lines[i+1] = line[margin:]
			} else {
				lines[i+1] = strings.TrimLeft(line, " ")
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, "\n")
}

func expandTabs(s string, size int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			pad := size - col%size
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
