package variant

import (
	"fmt"
	"maps"
	"slices"

	"shaderkit/internal/gpu"
	"shaderkit/internal/library"
	"shaderkit/internal/shader"
)

// Manager hands out one Frontend per registered shader. All frontends share a
// Diagnostics gate and a prologue.
type Manager struct {
	reg       *library.Registry
	compiler  gpu.Compiler
	opts      []Option
	diags     *Diagnostics
	defines   map[string]string
	frontends map[string]*Frontend

	unsubscribe func()
}

func NewManager(reg *library.Registry, compiler gpu.Compiler, opts ...Option) *Manager {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.diags == nil {
		cfg.diags = NewDiagnostics(LogSink{Log: cfg.log})
		opts = append(slices.Clone(opts), WithDiagnostics(cfg.diags))
	}
	m := &Manager{
		reg:       reg,
		compiler:  compiler,
		opts:      opts,
		diags:     cfg.diags,
		frontends: make(map[string]*Frontend),
	}
	m.unsubscribe = reg.Subscribe(m.dropReplaced)
	return m
}

// Diagnostics returns the shared failure gate.
func (m *Manager) Diagnostics() *Diagnostics { return m.diags }

// SetPrologue sets defines for every current and future frontend.
func (m *Manager) SetPrologue(defines map[string]string) {
	m.defines = maps.Clone(defines)
	for _, f := range m.frontends {
		f.SetPrologue(m.defines)
	}
}

// Frontend returns the frontend for a registered shader, creating it on first use.
func (m *Manager) Frontend(name string) (*Frontend, error) {
	if f, ok := m.frontends[name]; ok {
		return f, nil
	}
	code, ok := m.reg.Shader(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", library.ErrUnknownShader, name)
	}
	f := NewFrontend(m.reg, code, m.compiler, m.opts...)
	f.Init(m.defines)
	m.frontends[name] = f
	return f, nil
}

// GetProgram is Frontend(name).GetProgram(mode, mask); unknown shaders give nil.
func (m *Manager) GetProgram(name, mode string, mask shader.FeatureMask) gpu.Program {
	f, err := m.Frontend(name)
	if err != nil {
		return nil
	}
	return f.GetProgram(mode, mask)
}

// dropReplaced closes frontends whose shader was replaced or removed; the next
// lookup builds a fresh one.
func (m *Manager) dropReplaced(string) {
	for name, f := range m.frontends {
		if code, ok := m.reg.Shader(name); !ok || code != f.code {
			f.Close()
			delete(m.frontends, name)
		}
	}
}

// ContextLost forwards to every frontend.
func (m *Manager) ContextLost() {
	for _, f := range m.frontends {
		f.ContextLost()
	}
}

// Stats sums the counters of every frontend. Suppressed comes from the shared gate.
func (m *Manager) Stats() Stats {
	var s Stats
	for _, f := range m.frontends {
		fs := f.Stats()
		s.Hits += fs.Hits
		s.Misses += fs.Misses
		s.Compiles += fs.Compiles
		s.Failures += fs.Failures
		s.Incomplete += fs.Incomplete
		s.Cached += fs.Cached
		s.Invalidations += fs.Invalidations
	}
	s.Suppressed = m.diags.Suppressed()
	return s
}

// Close releases every frontend.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	for name, f := range m.frontends {
		f.Close()
		delete(m.frontends, name)
	}
}
