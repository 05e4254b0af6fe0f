package docstring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adelyne/pydex/internal/model"
)

// Section titles are recognized only as a full line with no indentation,
// so "Parameters:" inside an indented code block stays plain text.
var googleSections = map[string]SectionKind{
	"args:":              SectionParameters,
	"arguments:":         SectionParameters,
	"params:":            SectionParameters,
	"parameters:":        SectionParameters,
	"keyword args:":      SectionKeywordParameters,
	"keyword arguments:": SectionKeywordParameters,
	"attributes:":        SectionAttributes,
	"raises:":            SectionRaises,
	"exceptions:":        SectionRaises,
	"returns:":           SectionReturns,
	"yields:":            SectionYields,
	"examples:":          SectionExamples,
}

var admonitionRe = regexp.MustCompile(`^( *)([\w][\w-]*):(?: +(.+))?$`)

// ParseGoogle parses a Google-style docstring into sections.
func ParseGoogle(d *model.Docstring) []Section {
	var sections []Section
	var current []string
	lines := d.Lines()

	flushText := func() {
		start, end := 0, len(current)
		for start < end && strings.TrimSpace(current[start]) == "" {
			start++
		}
		for end > start && strings.TrimSpace(current[end-1]) == "" {
			end--
		}
		if start < end {
			sections = append(sections, Section{Kind: SectionText, Value: strings.Join(current[start:end], "\n")})
		}
		current = nil
	}

	inCode := false
	i := 0
	for i < len(lines) {
		line := lines[i]

		if inCode {
			current = append(current, line)
			if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
				inCode = false
			}
			i++
			continue
		}

		if kind, ok := googleSections[strings.TrimRight(strings.ToLower(line), " ")]; ok {
			flushText()
			section, next := readGoogleSection(d, i+1, kind)
			if section != nil {
				sections = append(sections, *section)
			}
			i = next
			continue
		}

		if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
			inCode = true
			current = append(current, line)
			i++
			continue
		}

		if m := admonitionRe.FindStringSubmatch(line); m != nil && isDeeperLine(lines, i+1, indentOf(line)) {
			adm := m[1] + "!!! " + strings.ToLower(m[2])
			if m[3] != "" {
				adm += fmt.Sprintf(" %q", m[3])
			}
			current = append(current, adm)
			current, i = appendAdmonitionBody(current, lines, i+1, indentOf(line), m[1])
			continue
		}

		current = append(current, line)
		i++
	}
	flushText()

	return sections
}

// appendAdmonitionBody re-indents the block under an admonition marker to
// four spaces so Markdown renderers attach it to the marker. Returns the
// index of the first line after the block.
func appendAdmonitionBody(out []string, lines []string, start, indent int, prefix string) ([]string, int) {
	end := start
	inner := -1
	for end < len(lines) {
		if strings.TrimSpace(lines[end]) == "" {
			end++
			continue
		}
		li := indentOf(lines[end])
		if li <= indent {
			break
		}
		if inner < 0 || li < inner {
			inner = li
		}
		end++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	for _, line := range lines[start:end] {
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, prefix+"    "+line[inner:])
	}
	return out, end
}

func readGoogleSection(d *model.Docstring, start int, kind SectionKind) (*Section, int) {
	switch kind {
	case SectionParameters, SectionKeywordParameters:
		return readParametersSection(d, start, kind)
	case SectionAttributes:
		return readAttributesSection(d, start)
	case SectionRaises:
		return readRaisesSection(d, start)
	case SectionReturns:
		return readReturnsSection(d, start)
	case SectionYields:
		return readYieldsSection(d, start)
	case SectionExamples:
		return readExamplesSection(d, start)
	}
	return nil, start
}

type blockItem struct {
	lines  []string
	offset int
}

// readBlockItems collects the indented block after a section header as a
// list of items. A new item starts at the block indent; continuation lines
// are expected at twice that indent. Deeper lines keep the extra indentation
// so code blocks inside a description survive. Returns the index of the
// first line not consumed.
func readBlockItems(d *model.Docstring, start int) ([]blockItem, int) {
	lines := d.Lines()
	index := start

	for index < len(lines) && strings.TrimSpace(lines[index]) == "" {
		index++
	}
	if index >= len(lines) {
		return nil, index
	}

	indent := indentOf(lines[index])
	if indent == 0 {
		return nil, index
	}

	var items []blockItem
	var current *blockItem

	for index < len(lines) {
		line := lines[index]

		if strings.TrimSpace(line) == "" {
			if current != nil {
				current.lines = append(current.lines, "")
			}
			index++
			continue
		}

		li := indentOf(line)
		switch {
		case li == indent:
			if current != nil {
				items = append(items, *current)
			}
			current = &blockItem{lines: []string{line[indent:]}, offset: index}
		case li > indent:
			if li >= indent*2 {
				current.lines = append(current.lines, line[indent*2:])
			} else {
				warn(d, index, "Confusing indentation for continuation line %d in docstring, should be %d * 2 = %d spaces, not %d", index+1, indent, indent*2, li)
				current.lines = append(current.lines, strings.TrimLeft(line, " "))
			}
		default:
			if current != nil {
				items = append(items, *current)
			}
			return trimItems(items), index
		}
		index++
	}

	if current != nil {
		items = append(items, *current)
	}
	return trimItems(items), index
}

func trimItems(items []blockItem) []blockItem {
	for i := range items {
		lines := items[i].lines
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		items[i].lines = lines
	}
	return items
}

// readBlock collects the indented block after a section header as dedented
// lines, for sections whose body is free text.
func readBlock(d *model.Docstring, start int) ([]string, int) {
	lines := d.Lines()
	index := start

	for index < len(lines) && strings.TrimSpace(lines[index]) == "" {
		index++
	}
	if index >= len(lines) {
		return nil, index
	}

	indent := indentOf(lines[index])
	if indent == 0 {
		return nil, index
	}

	var block []string
	for index < len(lines) {
		line := lines[index]
		if strings.TrimSpace(line) == "" {
			block = append(block, "")
			index++
			continue
		}
		if indentOf(line) < indent {
			break
		}
		block = append(block, line[indent:])
		index++
	}

	for len(block) > 0 && block[len(block)-1] == "" {
		block = block[:len(block)-1]
	}
	return block, index
}

func readParametersSection(d *model.Docstring, start int, kind SectionKind) (*Section, int) {
	items, next := readBlockItems(d, start)

	var params []ParameterDoc
	for _, item := range items {
		namePart, rest, found := strings.Cut(item.lines[0], ":")
		if !found {
			warn(d, item.offset, "Failed to get 'name: description' pair from '%s'", item.lines[0])
			continue
		}

		name, annotation := splitNameAnnotation(namePart)
		defaultValue := ""
		if param, ok := parentParameter(d, name); ok {
			defaultValue = param.Default
			if annotation == "" {
				annotation = param.Annotation
			}
		}
		if annotation == "" {
			warn(d, item.offset, "No type or annotation for parameter '%s'", name)
		}

		params = append(params, ParameterDoc{
			Name:        name,
			Annotation:  annotation,
			Description: assembleDescription(rest, item.lines[1:]),
			Default:     defaultValue,
		})
	}

	if len(params) == 0 {
		warn(d, start, "Empty %s section at line %d", string(kind), start)
		return nil, next
	}
	return &Section{Kind: kind, Value: params}, next
}

func readAttributesSection(d *model.Docstring, start int) (*Section, int) {
	items, next := readBlockItems(d, start)

	var attrs []AttributeDoc
	for _, item := range items {
		namePart, rest, found := strings.Cut(item.lines[0], ":")
		if !found {
			warn(d, item.offset, "Failed to get 'name: description' pair from '%s'", item.lines[0])
			continue
		}
		name, annotation := splitNameAnnotation(namePart)
		attrs = append(attrs, AttributeDoc{
			Name:        name,
			Annotation:  annotation,
			Description: assembleDescription(rest, item.lines[1:]),
		})
	}

	if len(attrs) == 0 {
		warn(d, start, "Empty attributes section at line %d", start)
		return nil, next
	}
	return &Section{Kind: SectionAttributes, Value: attrs}, next
}

func readRaisesSection(d *model.Docstring, start int) (*Section, int) {
	items, next := readBlockItems(d, start)

	var raises []RaiseDoc
	for _, item := range items {
		exception, rest, found := strings.Cut(item.lines[0], ":")
		if !found {
			warn(d, item.offset, "Failed to get 'exception: description' pair from '%s'", item.lines[0])
			continue
		}
		raises = append(raises, RaiseDoc{
			Exception:   strings.TrimSpace(exception),
			Description: assembleDescription(rest, item.lines[1:]),
		})
	}

	if len(raises) == 0 {
		warn(d, start, "Empty raises section at line %d", start)
		return nil, next
	}
	return &Section{Kind: SectionRaises, Value: raises}, next
}

func readReturnsSection(d *model.Docstring, start int) (*Section, int) {
	block, next := readBlock(d, start)
	text := strings.Join(block, "\n")
	if strings.TrimSpace(text) == "" {
		warn(d, start, "Empty return section at line %d", start)
		return nil, next
	}

	annotation, description := splitAnnotatedText(text)
	if annotation == "" {
		if parent := parentFunction(d); parent != nil {
			annotation = parent.Returns
		}
		if annotation == "" {
			warn(d, start, "No return type or annotation at line %d", start)
		}
	}

	return &Section{Kind: SectionReturns, Value: ReturnDoc{Annotation: annotation, Description: description}}, next
}

func readYieldsSection(d *model.Docstring, start int) (*Section, int) {
	block, next := readBlock(d, start)
	text := strings.Join(block, "\n")
	if strings.TrimSpace(text) == "" {
		warn(d, start, "Empty yields section at line %d", start)
		return nil, next
	}

	annotation, description := splitAnnotatedText(text)
	if annotation == "" {
		if parent := parentFunction(d); parent != nil {
			annotation = parent.Returns
		}
		if annotation == "" {
			warn(d, start, "No yield type or annotation at line %d", start)
		}
	}

	return &Section{Kind: SectionYields, Value: YieldDoc{Annotation: annotation, Description: description}}, next
}

// readExamplesSection splits the block into alternating prose and doctest
// runs. A doctest starts at a ">>>" line and stops at the next blank line.
// Fenced code blocks stay inside the prose, even when they contain ">>>".
func readExamplesSection(d *model.Docstring, start int) (*Section, int) {
	block, next := readBlock(d, start)
	if len(block) == 0 {
		warn(d, start, "Empty examples section at line %d", start)
		return nil, next
	}

	var examples []Example
	var text []string

	flushText := func() {
		joined := strings.Join(text, "\n")
		if strings.TrimSpace(joined) != "" {
			examples = append(examples, Example{Kind: ExampleText, Text: strings.Trim(joined, "\n")})
		}
		text = nil
	}

	inFence := false
	i := 0
	for i < len(block) {
		line := block[i]

		if inFence {
			text = append(text, line)
			if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
				inFence = false
			}
			i++
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
			inFence = true
			text = append(text, line)
			i++
			continue
		}

		if strings.HasPrefix(strings.TrimLeft(line, " "), ">>>") {
			flushText()
			var doctest []string
			for i < len(block) && strings.TrimSpace(block[i]) != "" {
				doctest = append(doctest, block[i])
				i++
			}
			examples = append(examples, Example{Kind: ExampleDoctest, Text: strings.Join(doctest, "\n")})
			continue
		}

		text = append(text, line)
		i++
	}
	flushText()

	if len(examples) == 0 {
		warn(d, start, "Empty examples section at line %d", start)
		return nil, next
	}
	return &Section{Kind: SectionExamples, Value: examples}, next
}

var nameAnnotationRe = regexp.MustCompile(`^(.+?)\s*\(\s*(.+?)\s*\)$`)

// splitNameAnnotation parses "name (annotation)" item leads. A trailing
// ", optional" marker inside the parentheses is dropped: the signature
// default already carries that information.
func splitNameAnnotation(namePart string) (string, string) {
	namePart = strings.TrimSpace(namePart)
	if m := nameAnnotationRe.FindStringSubmatch(namePart); m != nil {
		annotation := strings.TrimSpace(strings.TrimSuffix(m[2], ", optional"))
		return m[1], annotation
	}
	return namePart, ""
}

// splitAnnotatedText handles "annotation: description" blocks used by the
// returns and yields sections. The annotation must be a single token.
func splitAnnotatedText(text string) (string, string) {
	if before, after, found := strings.Cut(text, ":"); found {
		candidate := strings.TrimSpace(before)
		if candidate != "" && !strings.ContainsAny(candidate, " \n") {
			return candidate, strings.TrimSpace(after)
		}
	}
	return "", text
}

func assembleDescription(rest string, continuation []string) string {
	first := strings.TrimSpace(rest)
	for len(continuation) > 0 && strings.TrimSpace(continuation[0]) == "" && first == "" {
		continuation = continuation[1:]
	}
	if len(continuation) == 0 {
		return first
	}
	if first == "" {
		return strings.Join(continuation, "\n")
	}
	return first + "\n" + strings.Join(continuation, "\n")
}

func parentFunction(d *model.Docstring) *model.Object {
	if d.Parent != nil && d.Parent.Kind == model.KindFunction {
		return d.Parent
	}
	return nil
}

func parentParameter(d *model.Docstring, name string) (model.Parameter, bool) {
	if parent := parentFunction(d); parent != nil {
		return parent.Parameters.Get(name)
	}
	return model.Parameter{}, false
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func isDeeperLine(lines []string, index, indent int) bool {
	if index >= len(lines) {
		return false
	}
	line := lines[index]
	return strings.TrimSpace(line) != "" && indentOf(line) > indent
}
