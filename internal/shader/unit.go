package shader

import (
	"slices"
	"strings"

	"shaderkit/internal/source"
)

// FragmentKind tags a Fragment.
type FragmentKind uint8

const (
	FragmentCode FragmentKind = iota
	FragmentPragma
)

// Fragment is either literal code or a directive.
type Fragment struct {
	Kind   FragmentKind
	Text   string  // FragmentCode
	Pragma *Pragma // FragmentPragma
}

// Decl is a uniform or attribute declaration found while parsing.
type Decl struct {
	Name string
	Type string
	Line uint32
}

// Origin locates a unit's text inside a source.FileSet file.
type Origin struct {
	File   source.FileID
	Offset uint32 // byte offset of the unit's first byte
	Line   uint32 // 1-based line of the unit's first line
}

// Dependencies are the names a unit's directives refer to, sorted and unique.
type Dependencies struct {
	Includes []string // module names, sections stripped
	Blocks   []string // static names and dynamic defaults
	Snippets []string
	Events   []string
	Vars     []string            // context variables written by define or read by shaderblock
	Defines  map[string][]string // variable -> values written by define
}

// BlockCandidates returns every block name the unit may reference: static names,
// dynamic defaults and values the unit itself defines.
func (d Dependencies) BlockCandidates() []string {
	out := slices.Clone(d.Blocks)
	for _, vals := range d.Defines {
		out = append(out, vals...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SourceUnit is one parsed shader source string. It is immutable once built;
// re-parsing produces a new unit.
type SourceUnit struct {
	name       string
	raw        string
	fragments  []Fragment
	dynamic    bool
	origin     Origin
	hasOrigin  bool
	uniforms   []Decl
	attributes []Decl
	deps       Dependencies
}

func (u *SourceUnit) Name() string { return u.name }

// Raw returns the original text, comments included.
func (u *SourceUnit) Raw() string { return u.raw }

// IsDynamic reports whether the unit contains at least one directive line.
func (u *SourceUnit) IsDynamic() bool { return u.dynamic }

// Fragments returns the ordered fragment list. Callers must not modify it.
func (u *SourceUnit) Fragments() []Fragment { return u.fragments }

func (u *SourceUnit) Uniforms() []Decl   { return u.uniforms }
func (u *SourceUnit) Attributes() []Decl { return u.attributes }

func (u *SourceUnit) Deps() Dependencies { return u.deps }

// Origin returns where the unit lives in a FileSet, if it was parsed with one.
func (u *SourceUnit) Origin() (Origin, bool) { return u.origin, u.hasOrigin }

// Pragmas returns the directive descriptors in source order.
func (u *SourceUnit) Pragmas() []*Pragma {
	var out []*Pragma
	for i := range u.fragments {
		if u.fragments[i].Kind == FragmentPragma {
			out = append(out, u.fragments[i].Pragma)
		}
	}
	return out
}

// Lines splits the raw text into lines without terminators.
func (u *SourceUnit) Lines() []string {
	if u.raw == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(u.raw, "\n"), "\n")
}

// FileLine converts a 1-based unit line into a line of the origin file.
func (u *SourceUnit) FileLine(line uint32) uint32 {
	if !u.hasOrigin || u.origin.Line == 0 {
		return line
	}
	return u.origin.Line + line - 1
}

// Empty is the unit for absent code: no text, not dynamic.
func Empty(name string) *SourceUnit {
	return &SourceUnit{name: name}
}
