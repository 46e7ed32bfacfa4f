package library

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
)

// Snippet is unconditional code inserted by `#pragma snippet`.
type Snippet struct {
	Name string
	Text string
}

// Module is an include target. Text without section markers is included whole;
// `\name` marker lines split it into sections addressable as "module:name".
type Module struct {
	Name     string
	Text     string // section bodies concatenated, markers dropped
	Sections map[string]string
}

// RegisterSnippet adds or replaces a snippet. Replacing it, or adding one that a
// resolution found missing, invalidates compiled variants.
func (r *Registry) RegisterSnippet(name, text string, opts ...SourceOption) error {
	info := applySource("snippet:"+name, opts)
	name, err := normalizeName("snippet", name)
	if err != nil {
		r.reportError(diag.RegBadName, info.span, err)
		return err
	}
	_, replacing := r.snippets[name]
	r.snippets[name] = &Snippet{Name: name, Text: text}
	if replacing {
		r.invalidate("snippet " + name + " replaced")
	} else {
		r.arrived(shader.DirectiveSnippet, name)
	}
	return nil
}

// Snippet looks a snippet up by name.
func (r *Registry) Snippet(name string) (*Snippet, bool) {
	s, ok := r.snippets[name]
	return s, ok
}

// Snippets returns snippet names, sorted.
func (r *Registry) Snippets() []string {
	return slices.Sorted(maps.Keys(r.snippets))
}

// RegisterModule adds or replaces an include module. Modules usually arrive
// after the shaders that include them: adding one that a resolution found
// missing, or replacing one, invalidates compiled variants.
func (r *Registry) RegisterModule(name, text string, opts ...SourceOption) error {
	info := applySource("module:"+name, opts)
	name, err := normalizeName("module", name)
	if err != nil {
		r.reportError(diag.RegBadName, info.span, err)
		return err
	}
	secs, err := shader.SplitSections(text)
	if err != nil {
		return fmt.Errorf("module %q: %w", name, err)
	}
	mod := &Module{Name: name}
	var whole strings.Builder
	for _, sec := range secs {
		whole.WriteString(sec.Body)
		if sec.Name == "" {
			continue
		}
		if mod.Sections == nil {
			mod.Sections = make(map[string]string)
		}
		mod.Sections[sec.Name] = sec.Body
	}
	mod.Text = whole.String()

	_, replacing := r.modules[name]
	r.modules[name] = mod
	if replacing {
		r.invalidate("module " + name + " replaced")
	} else {
		r.arrived(shader.DirectiveInclude, name)
	}
	r.log.Debug("module registered", "module", name, "sections", len(mod.Sections))
	return nil
}

// Module looks a module up by name.
func (r *Registry) Module(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Modules returns module names, sorted.
func (r *Registry) Modules() []string {
	return slices.Sorted(maps.Keys(r.modules))
}
