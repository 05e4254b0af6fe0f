package model

import (
	"fmt"
	"strings"
)

// Kind classifies an extracted API object.
type Kind string

const (
	KindModule    Kind = "module"
	KindPackage   Kind = "package"
	KindClass     Kind = "class"
	KindFunction  Kind = "function"
	KindAttribute Kind = "attribute"
)

// ParameterKind mirrors how Python binds a parameter at call time.
type ParameterKind string

const (
	PositionalOnly      ParameterKind = "positional-only"
	PositionalOrKeyword ParameterKind = "positional or keyword"
	KeywordOnly         ParameterKind = "keyword-only"
	VarPositional       ParameterKind = "variadic positional"
	VarKeyword          ParameterKind = "variadic keyword"
)

type Parameter struct {
	Name       string        `json:"name"`
	Annotation string        `json:"annotation,omitempty"`
	Default    string        `json:"default,omitempty"`
	Kind       ParameterKind `json:"kind,omitempty"`
}

// Parameters keeps parameters in declaration order and supports lookup by
// name. Lookup ignores the * and ** markers so that a docstring entry for
// "*args" finds the signature parameter and vice versa.
type Parameters struct {
	list []Parameter
}

func NewParameters(params ...Parameter) *Parameters {
	p := &Parameters{}
	for _, param := range params {
		p.Add(param)
	}
	return p
}

func (p *Parameters) Add(param Parameter) {
	p.list = append(p.list, param)
}

func (p *Parameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}

func (p *Parameters) At(i int) Parameter {
	return p.list[i]
}

func (p *Parameters) Get(name string) (Parameter, bool) {
	if p == nil {
		return Parameter{}, false
	}
	name = strings.TrimLeft(strings.TrimSpace(name), "*")
	for _, param := range p.list {
		if strings.TrimLeft(param.Name, "*") == name {
			return param, true
		}
	}
	return Parameter{}, false
}

func (p *Parameters) List() []Parameter {
	if p == nil {
		return nil
	}
	return p.list
}

// Object is a node in the extracted API tree: a package, module, class,
// function or attribute. Function fields and attribute fields are only set
// for the matching kind.
type Object struct {
	Name      string     `json:"name"`
	Kind      Kind       `json:"kind"`
	Path      string     `json:"path,omitempty"`
	File      string     `json:"file,omitempty"`
	LineStart int        `json:"line_start,omitempty"`
	LineEnd   int        `json:"line_end,omitempty"`
	Docstring *Docstring `json:"docstring,omitempty"`
	Labels    []string   `json:"labels,omitempty"`

	Parameters *Parameters `json:"-"`
	Returns    string      `json:"returns,omitempty"`

	Annotation string `json:"annotation,omitempty"`
	Value      string `json:"value,omitempty"`

	Parent  *Object `json:"-"`
	members []*Object
	byName  map[string]*Object
}

func NewObject(name string, kind Kind) *Object {
	return &Object{
		Name:   name,
		Kind:   kind,
		byName: make(map[string]*Object),
	}
}

// AddMember attaches a child object, wiring its parent pointer and dotted
// path. A member with a duplicate name replaces the previous entry but keeps
// the original position.
func (o *Object) AddMember(member *Object) {
	if o.byName == nil {
		o.byName = make(map[string]*Object)
	}
	member.Parent = o
	if o.Path != "" {
		member.Path = o.Path + "." + member.Name
	} else {
		member.Path = member.Name
	}
	if prev, ok := o.byName[member.Name]; ok {
		for i, m := range o.members {
			if m == prev {
				o.members[i] = member
				break
			}
		}
	} else {
		o.members = append(o.members, member)
	}
	o.byName[member.Name] = member
}

func (o *Object) Member(name string) *Object {
	if o == nil || o.byName == nil {
		return nil
	}
	return o.byName[name]
}

// Members returns children in insertion order.
func (o *Object) Members() []*Object {
	return o.members
}

// Resolve walks a dotted path relative to this object.
func (o *Object) Resolve(path string) (*Object, error) {
	current := o
	for _, part := range strings.Split(path, ".") {
		next := current.Member(part)
		if next == nil {
			return nil, fmt.Errorf("cannot resolve '%s' in '%s'", part, current.Path)
		}
		current = next
	}
	return current, nil
}

// Signature renders a function object the way it appeared in source.
func (o *Object) Signature() string {
	if o.Kind != KindFunction {
		return ""
	}
	var b strings.Builder
	b.WriteString(o.Name)
	b.WriteString("(")
	seenKeywordOnly := false
	for i, param := range o.Parameters.List() {
		if i > 0 {
			b.WriteString(", ")
		}
		if param.Kind == KeywordOnly && !seenKeywordOnly {
			seenKeywordOnly = true
			b.WriteString("*, ")
		}
		if param.Kind == VarPositional {
			seenKeywordOnly = true
		}
		b.WriteString(param.Name)
		if param.Annotation != "" {
			b.WriteString(": " + param.Annotation)
		}
		if param.Default != "" {
			if param.Annotation != "" {
				b.WriteString(" = " + param.Default)
			} else {
				b.WriteString("=" + param.Default)
			}
		}
	}
	b.WriteString(")")
	if o.Returns != "" {
		b.WriteString(" -> " + o.Returns)
	}
	return b.String()
}
