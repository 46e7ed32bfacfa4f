package shader

import (
	"strings"

	"shaderkit/internal/source"
)

// Marker is the first token of every directive line.
const Marker = "#pragma"

// DirectiveKind is the closed set of directives understood by the pragma layer.
type DirectiveKind uint8

const (
	// DirectiveInvalid marks a malformed or unknown directive; it emits nothing.
	DirectiveInvalid DirectiveKind = iota
	DirectiveInclude
	DirectiveDefine
	DirectiveShaderBlock
	DirectiveSnippet
	DirectiveEvent
)

var directiveNames = [...]string{
	DirectiveInvalid:     "invalid",
	DirectiveInclude:     "include",
	DirectiveDefine:      "define",
	DirectiveShaderBlock: "shaderblock",
	DirectiveSnippet:     "snippet",
	DirectiveEvent:       "event",
}

func (k DirectiveKind) String() string {
	if int(k) < len(directiveNames) {
		return directiveNames[k]
	}
	return "invalid"
}

// LookupDirective maps an action token to its kind.
func LookupDirective(action string) (DirectiveKind, bool) {
	for k := DirectiveInclude; int(k) < len(directiveNames); k++ {
		if directiveNames[k] == action {
			return k, true
		}
	}
	return DirectiveInvalid, false
}

// Pragma is the parsed descriptor of one directive line.
//
// Argument fields by kind:
//
//	include "mod" / "mod:sec"   Name=mod, Section=sec
//	define VAR "value"          Var=VAR, Value=value
//	shaderblock "name"          Name=name
//	shaderblock VAR ["default"] Var=VAR, Name=default (may be empty)
//	snippet "name"              Name=name
//	event "name"                Name=name
type Pragma struct {
	Kind    DirectiveKind
	Action  string
	Raw     string
	Line    uint32 // 1-based, relative to the unit
	Span    source.Span
	Name    string
	Section string
	Var     string
	Value   string
}

// Dynamic reports whether a shaderblock pragma selects its block through a context variable.
func (p *Pragma) Dynamic() bool {
	return p.Kind == DirectiveShaderBlock && p.Var != ""
}

// Target renders the dependency this pragma points at, for messages.
func (p *Pragma) Target() string {
	switch p.Kind {
	case DirectiveInclude:
		if p.Section != "" {
			return p.Name + ":" + p.Section
		}
		return p.Name
	case DirectiveDefine:
		return p.Var
	case DirectiveShaderBlock:
		if p.Var != "" {
			return "$" + p.Var
		}
	}
	return p.Name
}

// isIdent reports whether s is a valid context variable name.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// ValidName reports whether s is usable as a block, snippet, module or event name.
func ValidName(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\r\n\"")
}
