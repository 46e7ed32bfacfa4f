// Package variant compiles shader variants on demand and caches them per
// render mode and feature mask.
package variant

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"shaderkit/internal/diag"
	"shaderkit/internal/gpu"
	"shaderkit/internal/library"
	"shaderkit/internal/logging"
	"shaderkit/internal/shader"
)

type config struct {
	log      *slog.Logger
	diags    *Diagnostics
	reporter diag.Reporter
}

// Option configures a Frontend or Manager.
type Option func(*config)

// WithLogger sets the logger; the default is logging.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithDiagnostics shares a failure gate between frontends.
func WithDiagnostics(d *Diagnostics) Option {
	return func(c *config) { c.diags = d }
}

// WithReporter receives RES warnings for dependencies missing during
// resolution. The default forwards each distinct warning once to the
// registry's reporter.
func WithReporter(r diag.Reporter) Option {
	return func(c *config) { c.reporter = r }
}

type variantKey struct {
	mode string
	mask shader.FeatureMask
}

// Stats are frontend counters.
type Stats struct {
	Hits          int
	Misses        int
	Compiles      int
	Failures      int
	Suppressed    int // failures of the shared gate that were not reported
	Incomplete    int // compiled with missing dependencies; cached until one is registered
	Cached        int // programs currently in the cache
	Invalidations int
}

// Frontend owns the compiled variants of one shader.
type Frontend struct {
	reg      *library.Registry
	code     *library.ShaderCode
	compiler gpu.Compiler
	log      *slog.Logger
	diags    *Diagnostics
	reporter diag.Reporter

	defines  map[string]string
	prologue [len(shader.Stages)]string
	ready    bool

	cache  *Cache
	failed map[variantKey]struct{}
	stats  Stats

	unsubscribe func()
}

// NewFrontend creates a frontend for code. It follows registry invalidations
// until Close.
func NewFrontend(reg *library.Registry, code *library.ShaderCode, compiler gpu.Compiler, opts ...Option) *Frontend {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	f := &Frontend{
		reg:      reg,
		code:     code,
		compiler: compiler,
		log:      logging.Or(cfg.log),
		diags:    cfg.diags,
		reporter: cfg.reporter,
		cache:    NewCache(),
		failed:   make(map[variantKey]struct{}),
	}
	if f.diags == nil {
		f.diags = NewDiagnostics(LogSink{Log: f.log})
	}
	if f.reporter == nil {
		f.reporter = diag.NewDedupReporter(reg.Reporter())
	}
	f.unsubscribe = reg.Subscribe(f.Invalidate)
	return f
}

// Shader returns the shader this frontend compiles.
func (f *Frontend) Shader() *library.ShaderCode { return f.code }

// Diagnostics returns the failure gate.
func (f *Frontend) Diagnostics() *Diagnostics { return f.diags }

// Init computes the prologue from the compiler capabilities and defines. Only
// the first call has an effect; use SetPrologue to change defines later.
func (f *Frontend) Init(defines map[string]string) {
	if f.ready {
		return
	}
	f.defines = maps.Clone(defines)
	f.buildPrologue()
	f.ready = true
	f.log.Info("shader prologue computed", "shader", f.code.Name, "defines", len(f.defines))
}

// SetPrologue replaces the configured defines and drops every compiled variant.
func (f *Frontend) SetPrologue(defines map[string]string) {
	f.defines = maps.Clone(defines)
	f.buildPrologue()
	f.ready = true
	f.Invalidate("prologue changed")
}

func (f *Frontend) ensureInit() {
	if !f.ready {
		f.Init(nil)
	}
}

func (f *Frontend) buildPrologue() {
	merged := make(map[string]string)
	if f.compiler != nil {
		maps.Copy(merged, f.compiler.Capabilities())
	}
	maps.Copy(merged, f.defines)

	var common strings.Builder
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		if v := merged[k]; v != "" {
			fmt.Fprintf(&common, "#define %s %s\n", k, v)
		} else {
			fmt.Fprintf(&common, "#define %s\n", k)
		}
	}
	for _, st := range shader.Stages {
		f.prologue[st] = common.String() + "#define " + st.Define() + " 1\n"
	}
}

// Prologue returns the text prepended to st.
func (f *Frontend) Prologue(st shader.Stage) string {
	f.ensureInit()
	return f.prologue[st]
}

// GetProgram returns the program for mode and mask, compiling it on first use.
// It returns nil when the variant cannot be built; the first such failure is
// reported through the Diagnostics gate, later ones and repeated requests for a
// failed variant only count as suppressed.
//
// Variants resolved with missing dependencies are cached like complete ones: the
// registry invalidates when a missing dependency is registered.
func (f *Frontend) GetProgram(mode string, mask shader.FeatureMask) gpu.Program {
	f.ensureInit()
	if p, ok := f.cache.Get(mode, mask); ok {
		f.stats.Hits++
		f.log.Debug("variant cache hit", "shader", f.code.Name, "mode", mode, "mask", mask.String())
		return p
	}
	key := variantKey{mode, mask}
	if _, ok := f.failed[key]; ok {
		// не компилируем заново до инвалидации
		f.stats.Failures++
		f.diags.Suppress()
		return nil
	}
	f.stats.Misses++

	src, err := f.Resolve(mode, mask)
	if err != nil {
		f.stats.Failures++
		f.log.Error("variant resolve failed", "shader", f.code.Name, "mode", mode, "err", err)
		return nil
	}

	f.stats.Compiles++
	prog, err := f.compile(src)
	if err != nil {
		f.failed[key] = struct{}{}
		f.fail(src, err)
		return nil
	}

	if !src.Complete() {
		f.stats.Incomplete++
		f.log.Debug("variant compiled with missing dependencies",
			"shader", f.code.Name, "mode", mode, "mask", mask.String(), "missing", len(src.Missing))
	}
	f.cache.Put(mode, mask, prog)
	f.log.Debug("variant compiled", "shader", f.code.Name, "mode", mode, "mask", mask.String(),
		"vertex_bytes", len(src.Body[shader.StageVertex]), "fragment_bytes", len(src.Body[shader.StageFragment]))
	return prog
}

func (f *Frontend) compile(src *Sources) (prog gpu.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			prog, err = nil, fmt.Errorf("compiler panic: %v", r)
		}
	}()
	if f.compiler == nil {
		return nil, errors.New("no compiler configured")
	}
	prog, err = f.compiler.Compile(src.Stage(shader.StageVertex), src.Stage(shader.StageFragment))
	if err == nil && prog == nil {
		err = errors.New("compiler returned no program")
	}
	return prog, err
}

func (f *Frontend) fail(src *Sources, err error) {
	f.stats.Failures++
	r := &FailureReport{
		Shader:  f.code.Name,
		Mode:    src.Mode,
		Mask:    src.Mask,
		Blocks:  f.reg.Names(src.Mask),
		Stage:   shader.StageVertex,
		Message: err.Error(),
		Err:     err,
		Sources: *src,
	}
	var ce *gpu.CompileError
	if errors.As(err, &ce) {
		r.Stage, r.Line, r.Column, r.Message = ce.Stage, ce.Line, ce.Column, ce.Message
		if r.Line == 0 {
			r.Line, r.Column = gpu.LineFromMessage(ce.Message)
		}
	} else {
		r.Line, r.Column = gpu.LineFromMessage(err.Error())
	}
	r.Origin = f.locate(src, r.Stage, r.Line)

	if !f.diags.Report(r) {
		f.log.Warn("shader compile failed, details suppressed",
			"shader", r.Shader, "mode", r.Mode, "mask", r.Mask.String(), "suppressed", f.diags.Suppressed())
	}
}

// Invalidate releases and drops every compiled variant.
func (f *Frontend) Invalidate(reason string) {
	n := f.cache.Clear(true)
	clear(f.failed)
	f.stats.Invalidations++
	f.log.Debug("variant cache invalidated", "shader", f.code.Name, "reason", reason, "released", n)
}

// ContextLost drops every compiled variant without releasing it: the handles
// died with the GPU context.
func (f *Frontend) ContextLost() {
	n := f.cache.Clear(false)
	clear(f.failed)
	f.stats.Invalidations++
	f.log.Warn("gpu context lost, variant cache dropped", "shader", f.code.Name, "dropped", n)
}

// Close releases everything and stops following the registry.
func (f *Frontend) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
	f.Invalidate("closed")
}

func (f *Frontend) Stats() Stats {
	s := f.stats
	s.Cached = f.cache.Len()
	s.Suppressed = f.diags.Suppressed()
	return s
}
