package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Violation is one problem found in a manifest, located in its file.
type Violation struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (v *Violation) String() string {
	if v.File == "" && v.Line == 0 {
		return v.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", v.File, v.Line, v.Column, v.Message)
}

// Error collects every violation found while loading or binding a manifest.
type Error []*Violation

func (e Error) Error() string {
	lines := make([]string, len(e))
	for i, v := range e {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

type violations struct {
	file string
	list Error
}

func (vs *violations) at(n *yaml.Node, format string, args ...any) {
	v := &Violation{Message: fmt.Sprintf(format, args...), File: vs.file}
	if n != nil {
		v.Line, v.Column = n.Line, n.Column
	}
	vs.list = append(vs.list, v)
}

func (vs *violations) err() error {
	if len(vs.list) == 0 {
		return nil
	}
	return vs.list
}
