package docstring

import (
	"strings"

	"github.com/adelyne/pydex/internal/model"
)

var (
	rstParamNames         = []string{"param", "parameter", "arg", "argument", "key", "keyword"}
	rstParamTypeNames     = []string{"type"}
	rstAttributeNames     = []string{"var", "ivar", "cvar"}
	rstAttributeTypeNames = []string{"vartype"}
	rstReturnNames        = []string{"returns", "return"}
	rstReturnTypeNames    = []string{"rtype"}
	rstExceptionNames     = []string{"raises", "raise", "except", "exception"}
)

type rstFieldType struct {
	names  []string
	reader func(p *rstParser, offset int) int
}

func (f rstFieldType) matches(line string) bool {
	for _, name := range f.names {
		if strings.HasPrefix(line, ":"+name) {
			return true
		}
	}
	return false
}

// Order matters: the prefix match means ":type" must be tried before
// ":param" style names and ":rtype" handled separately from ":returns".
var rstFieldTypes = []rstFieldType{
	{rstParamTypeNames, (*rstParser).readParameterType},
	{rstParamNames, (*rstParser).readParameter},
	{rstAttributeTypeNames, (*rstParser).readAttributeType},
	{rstAttributeNames, (*rstParser).readAttribute},
	{rstExceptionNames, (*rstParser).readException},
	{rstReturnNames, (*rstParser).readReturn},
	{rstReturnTypeNames, (*rstParser).readReturnType},
}

type rstDirective struct {
	line    string
	next    int
	parts   []string
	value   string
	invalid bool
}

type rstParser struct {
	doc *model.Docstring

	description    []string
	parameters     []ParameterDoc
	parameterIndex map[string]int
	paramTypes     map[string]string
	attributes     []AttributeDoc
	attributeIndex map[string]int
	attributeTypes map[string]string
	raises         []RaiseDoc
	returnValue    *ReturnDoc
	returnType     string
}

// ParseRST parses an RST-style (Sphinx field list) docstring into sections.
func ParseRST(d *model.Docstring) []Section {
	p := &rstParser{
		doc:            d,
		parameterIndex: make(map[string]int),
		paramTypes:     make(map[string]string),
		attributeIndex: make(map[string]int),
		attributeTypes: make(map[string]string),
	}

	lines := d.Lines()
	i := 0
	for i < len(lines) {
		matched := false
		for _, fieldType := range rstFieldTypes {
			if fieldType.matches(lines[i]) {
				i = fieldType.reader(p, i)
				matched = true
				break
			}
		}
		if !matched {
			p.description = append(p.description, lines[i])
		}
		i++
	}

	return p.sections()
}

func (p *rstParser) sections() []Section {
	text := strings.Join(stripBlankEdges(p.description), "\n")
	result := []Section{{Kind: SectionText, Value: text}}
	if len(p.parameters) > 0 {
		result = append(result, Section{Kind: SectionParameters, Value: p.parameters})
	}
	if len(p.attributes) > 0 {
		result = append(result, Section{Kind: SectionAttributes, Value: p.attributes})
	}
	if p.returnValue != nil {
		result = append(result, Section{Kind: SectionReturns, Value: *p.returnValue})
	}
	if len(p.raises) > 0 {
		result = append(result, Section{Kind: SectionRaises, Value: p.raises})
	}
	return result
}

func (p *rstParser) readParameter(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}

	var name, directiveType string
	switch len(directive.parts) {
	case 2:
		name = directive.parts[1]
	case 3:
		directiveType = directive.parts[1]
		name = directive.parts[2]
	default:
		warn(p.doc, offset, "Failed to parse field directive from '%s'", directive.line)
		return directive.next
	}

	if _, ok := p.parameterIndex[name]; ok {
		warn(p.doc, offset, "Duplicate parameter entry for '%s'", name)
		return directive.next
	}

	annotation := p.parameterAnnotation(offset, name, directiveType)
	defaultValue := ""
	if param, ok := parentParameter(p.doc, name); ok {
		defaultValue = param.Default
	}

	p.parameterIndex[name] = len(p.parameters)
	p.parameters = append(p.parameters, ParameterDoc{
		Name:        name,
		Annotation:  annotation,
		Description: directive.value,
		Default:     defaultValue,
	})
	return directive.next
}

// parameterAnnotation resolves the annotation with the original precedence:
// inline directive type, then a ":type:" directive, then the signature.
func (p *rstParser) parameterAnnotation(offset int, name, directiveType string) string {
	annotation := p.paramTypes[name]

	if directiveType != "" {
		if annotation != "" {
			warn(p.doc, offset, "Duplicate parameter information for '%s'", name)
		}
		annotation = directiveType
	}

	if annotation == "" {
		if param, ok := parentParameter(p.doc, name); ok {
			annotation = param.Annotation
		} else {
			warn(p.doc, offset, "No matching parameter for '%s'", name)
		}
	}

	return annotation
}

func (p *rstParser) readParameterType(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}
	paramType := consolidateDescriptiveType(strings.TrimSpace(directive.value))

	if len(directive.parts) != 2 {
		warn(p.doc, offset, "Failed to get parameter name from '%s'", directive.line)
		return directive.next
	}
	name := directive.parts[1]

	p.paramTypes[name] = paramType
	if i, ok := p.parameterIndex[name]; ok {
		if p.parameters[i].Annotation == "" {
			p.parameters[i].Annotation = paramType
		} else {
			warn(p.doc, offset, "Duplicate parameter information for '%s'", name)
		}
	}
	return directive.next
}

func (p *rstParser) readAttribute(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}

	if len(directive.parts) != 2 {
		warn(p.doc, offset, "Failed to parse field directive from '%s'", directive.line)
		return directive.next
	}
	name := directive.parts[1]

	if _, ok := p.attributeIndex[name]; ok {
		warn(p.doc, offset, "Duplicate attribute entry for '%s'", name)
		return directive.next
	}

	p.attributeIndex[name] = len(p.attributes)
	p.attributes = append(p.attributes, AttributeDoc{
		Name:        name,
		Annotation:  p.attributeTypes[name],
		Description: directive.value,
	})
	return directive.next
}

func (p *rstParser) readAttributeType(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}
	attributeType := consolidateDescriptiveType(strings.TrimSpace(directive.value))

	if len(directive.parts) != 2 {
		warn(p.doc, offset, "Failed to get attribute name from '%s'", directive.line)
		return directive.next
	}
	name := directive.parts[1]

	p.attributeTypes[name] = attributeType
	if i, ok := p.attributeIndex[name]; ok {
		if p.attributes[i].Annotation == "" {
			p.attributes[i].Annotation = attributeType
		} else {
			warn(p.doc, offset, "Duplicate attribute information for '%s'", name)
		}
	}
	return directive.next
}

func (p *rstParser) readException(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}

	if len(directive.parts) != 2 {
		warn(p.doc, offset, "Failed to parse exception directive from '%s'", directive.line)
		return directive.next
	}

	p.raises = append(p.raises, RaiseDoc{Exception: directive.parts[1], Description: directive.value})
	return directive.next
}

func (p *rstParser) readReturn(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}

	annotation := p.returnType
	if annotation == "" {
		if parent := parentFunction(p.doc); parent != nil {
			annotation = parent.Returns
		} else {
			warn(p.doc, offset, "No return type or annotation at '%s'", directive.line)
		}
	}

	p.returnValue = &ReturnDoc{Annotation: annotation, Description: directive.value}
	return directive.next
}

func (p *rstParser) readReturnType(offset int) int {
	directive := p.parseDirective(offset)
	if directive.invalid {
		return directive.next
	}

	p.returnType = consolidateDescriptiveType(strings.TrimSpace(directive.value))
	if p.returnValue != nil {
		p.returnValue.Annotation = p.returnType
	}
	return directive.next
}

// parseDirective consolidates continuation lines and splits a
// ":directive: value" pair. The returned next index is the last line
// consumed; the caller's loop increment moves past it.
func (p *rstParser) parseDirective(offset int) rstDirective {
	line, next := consolidateContinuationLines(p.doc.Lines(), offset)

	parts := strings.SplitN(line, ":", 3)
	if len(parts) < 3 {
		warn(p.doc, offset, "Failed to get ':directive: value' pair from '%s'", line)
		return rstDirective{line: line, next: next, invalid: true}
	}

	return rstDirective{
		line:  line,
		next:  next,
		parts: strings.Split(parts[1], " "),
		value: strings.TrimSpace(parts[2]),
	}
}

// consolidateContinuationLines joins a field and its continuation lines
// (following lines that do not start a new field) into one line.
func consolidateContinuationLines(lines []string, offset int) (string, int) {
	index := offset
	block := []string{strings.TrimLeft(lines[index], " \t")}

	index++
	for index < len(lines) && !strings.HasPrefix(lines[index], ":") {
		block = append(block, strings.TrimLeft(lines[index], " \t"))
		index++
	}

	return strings.TrimRight(strings.Join(block, " "), "\n"), index - 1
}

// consolidateDescriptiveType rewrites "x or y" into "x | y".
func consolidateDescriptiveType(descriptiveType string) string {
	return strings.ReplaceAll(descriptiveType, " or ", " | ")
}

func stripBlankEdges(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
