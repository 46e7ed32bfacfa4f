package library

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
)

// DefaultMode is the render mode used when a mode has no source for a stage.
const DefaultMode = "default"

// ShaderCode holds the per-render-mode sources of one shader.
type ShaderCode struct {
	Name  string
	modes map[string]*[len(shader.Stages)]*shader.SourceUnit
}

// NewShaderCode creates an empty shader.
func NewShaderCode(name string) *ShaderCode {
	return &ShaderCode{Name: name, modes: make(map[string]*[len(shader.Stages)]*shader.SourceUnit)}
}

// Set installs the unit for a mode and stage.
func (c *ShaderCode) Set(mode string, st shader.Stage, u *shader.SourceUnit) {
	units, ok := c.modes[mode]
	if !ok {
		units = new([len(shader.Stages)]*shader.SourceUnit)
		c.modes[mode] = units
	}
	units[st] = u
}

// Unit returns the source for mode and stage, falling back to DefaultMode.
// The second result is the mode that actually supplied the unit.
func (c *ShaderCode) Unit(mode string, st shader.Stage) (*shader.SourceUnit, string, bool) {
	if units, ok := c.modes[mode]; ok && units[st] != nil {
		return units[st], mode, true
	}
	if units, ok := c.modes[DefaultMode]; ok && units[st] != nil {
		return units[st], DefaultMode, true
	}
	return nil, "", false
}

// Modes returns the render modes with at least one stage, sorted.
func (c *ShaderCode) Modes() []string {
	return slices.Sorted(maps.Keys(c.modes))
}

// Units returns every unit of every mode.
func (c *ShaderCode) Units() []*shader.SourceUnit {
	var out []*shader.SourceUnit
	for _, mode := range c.Modes() {
		for _, u := range c.modes[mode] {
			if u != nil {
				out = append(out, u)
			}
		}
	}
	return out
}

// RegisterShader parses a sectioned shader file and adds it under name.
//
// Sections are named "<mode>.<vs|fs>", e.g. `\default.vs` or `\shadow.fs`.
// Replacing a shader invalidates compiled variants.
func (r *Registry) RegisterShader(name, text string, opts ...SourceOption) (*ShaderCode, error) {
	info := applySource("shader:"+name, opts)
	name, err := normalizeName("shader", name)
	if err != nil {
		r.reportError(diag.RegBadName, info.span, err)
		return nil, err
	}

	file := r.files.AddVirtual(info.label, []byte(text))
	secs, err := shader.SplitSections(string(r.files.Get(file).Content))
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", name, err)
	}

	code := NewShaderCode(name)
	for _, sec := range secs {
		if sec.Name == "" {
			if strings.TrimSpace(sec.Body) == "" {
				continue
			}
			err := fmt.Errorf("shader %q: %w: code before the first section marker", name, ErrBadSection)
			r.reportError(diag.RegBadName, info.span, err)
			return nil, err
		}
		mode, suffix, ok := strings.Cut(sec.Name, ".")
		st, stOK := shader.ParseStage(suffix)
		if !ok || !stOK || mode == "" {
			err := fmt.Errorf("shader %q: %w: %q is not <mode>.vs or <mode>.fs", name, ErrBadSection, sec.Name)
			r.reportError(diag.RegBadName, info.span, err)
			return nil, err
		}
		code.Set(mode, st, r.parseSection(info.label+"#"+sec.Name, file, sec))
	}
	r.installShader(code)
	return code, nil
}

// RegisterShaderCode adds a programmatically built shader.
func (r *Registry) RegisterShaderCode(code *ShaderCode) error {
	name, err := normalizeName("shader", code.Name)
	if err != nil {
		return err
	}
	code.Name = name
	r.installShader(code)
	return nil
}

func (r *Registry) installShader(code *ShaderCode) {
	_, replacing := r.shaders[code.Name]
	r.shaders[code.Name] = code
	if replacing {
		r.invalidate("shader " + code.Name + " replaced")
	}
}

// Shader looks a shader up by name.
func (r *Registry) Shader(name string) (*ShaderCode, bool) {
	c, ok := r.shaders[name]
	return c, ok
}

// Shaders returns shader names, sorted.
func (r *Registry) Shaders() []string {
	return slices.Sorted(maps.Keys(r.shaders))
}
