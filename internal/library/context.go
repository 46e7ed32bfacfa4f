package library

import (
	"fmt"
	"slices"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
)

// MissingDep is a reference that could not be satisfied during resolution.
type MissingDep struct {
	Kind    shader.DirectiveKind
	Name    string // "module" or "module:section" for includes
	Unit    string
	Line    uint32
	Section bool // the module exists but the section does not
}

func (m MissingDep) String() string {
	return fmt.Sprintf("%s %q (%s:%d)", m.Kind, m.Name, m.Unit, m.Line)
}

// Context is the mutable state of one generation pass.
type Context struct {
	// Vars holds values written by `#pragma define` and read by dynamic shaderblocks.
	Vars map[string]string
	// Missing lists unresolved includes, blocks and snippets, in encounter order.
	Missing []MissingDep
	// Cycles lists blocks re-entered while already being resolved.
	Cycles []string
	// Reporter, when set, receives RES warnings for missing dependencies.
	Reporter diag.Reporter

	active []string
}

func NewContext() *Context {
	return &Context{Vars: make(map[string]string)}
}

// Complete reports whether every dependency was found.
func (c *Context) Complete() bool {
	return len(c.Missing) == 0 && len(c.Cycles) == 0
}

// PendingIncludes returns include targets that were not loaded, deduplicated.
func (c *Context) PendingIncludes() []string {
	var out []string
	for _, m := range c.Missing {
		if m.Kind == shader.DirectiveInclude && !slices.Contains(out, m.Name) {
			out = append(out, m.Name)
		}
	}
	return out
}

func (c *Context) missing(p *shader.Pragma, unit string, section bool) {
	dep := MissingDep{Kind: p.Kind, Name: p.Target(), Unit: unit, Line: p.Line, Section: section}
	if p.Kind == shader.DirectiveShaderBlock && p.Var != "" {
		dep.Name = c.Vars[p.Var]
		if dep.Name == "" {
			dep.Name = p.Name
		}
	}
	c.Missing = append(c.Missing, dep)
	if c.Reporter == nil {
		return
	}
	code := diag.ResMissingBlock
	switch {
	case section:
		code = diag.ResMissingSection
	case p.Kind == shader.DirectiveInclude:
		code = diag.ResMissingInclude
	case p.Kind == shader.DirectiveSnippet:
		code = diag.ResMissingSnippet
	}
	diag.ReportWarning(c.Reporter, code, p.Span, fmt.Sprintf("%s %q is not available", p.Kind, dep.Name)).Emit()
}

func (c *Context) enter(block string) bool {
	if slices.Contains(c.active, block) {
		return false
	}
	c.active = append(c.active, block)
	return true
}

func (c *Context) leave() {
	c.active = c.active[:len(c.active)-1]
}
