package model

import "encoding/json"

// MarshalJSON emits the object with its parameters and members inlined, in
// declaration order.
func (o *Object) MarshalJSON() ([]byte, error) {
	type plain Object
	out := struct {
		*plain
		Parameters []Parameter `json:"parameters,omitempty"`
		Members    []*Object   `json:"members,omitempty"`
	}{
		plain:      (*plain)(o),
		Parameters: o.Parameters.List(),
		Members:    o.members,
	}
	return json.Marshal(out)
}

// Dump serializes a set of loaded packages keyed by package name, matching
// the layout written by the dump command.
func Dump(packages map[string]*Object, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(packages, "", "  ")
	}
	return json.Marshal(packages)
}

// DumpObject serializes a single package tree, used when each package is
// written to its own output file.
func DumpObject(obj *Object, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(obj, "", "  ")
	}
	return json.Marshal(obj)
}
