package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"
	"github.com/gogpu/wgpu/hal"

	"shaderkit/internal/dcache"
	"shaderkit/internal/logging"
	"shaderkit/internal/preprocess"
	"shaderkit/internal/shader"
)

// NagaCompiler compiles WGSL stages to SPIR-V with naga. When a device is set,
// each stage also becomes a hal.ShaderModule.
type NagaCompiler struct {
	opts   naga.CompileOptions
	device hal.Device
	cache  *dcache.DiskCache
	log    *slog.Logger
}

// NagaOption configures a NagaCompiler.
type NagaOption func(*NagaCompiler)

// WithDevice creates shader modules on d for every compiled stage.
func WithDevice(d hal.Device) NagaOption {
	return func(c *NagaCompiler) { c.device = d }
}

// WithDiskCache reuses SPIR-V from c keyed by the preprocessed source.
func WithDiskCache(dc *dcache.DiskCache) NagaOption {
	return func(c *NagaCompiler) { c.cache = dc }
}

// WithLogger sets the logger; the default is logging.Logger().
func WithLogger(l *slog.Logger) NagaOption {
	return func(c *NagaCompiler) { c.log = l }
}

// WithDebugInfo emits SPIR-V debug names.
func WithDebugInfo(on bool) NagaOption {
	return func(c *NagaCompiler) { c.opts.Debug = on }
}

// WithSPIRVVersion selects the target SPIR-V version (default 1.3).
func WithSPIRVVersion(v spirv.Version) NagaOption {
	return func(c *NagaCompiler) { c.opts.SPIRVVersion = v }
}

// WithValidation toggles IR validation before code generation.
func WithValidation(on bool) NagaOption {
	return func(c *NagaCompiler) { c.opts.Validate = on }
}

func NewNagaCompiler(opts ...NagaOption) *NagaCompiler {
	c := &NagaCompiler{opts: naga.DefaultOptions()}
	for _, o := range opts {
		o(c)
	}
	c.log = logging.Or(c.log)
	return c
}

// Capabilities reports the defines every variant compiled by c can rely on.
func (c *NagaCompiler) Capabilities() map[string]string {
	caps := map[string]string{
		"SHADERKIT":     "1",
		"SPIRV_VERSION": fmt.Sprintf("%d%d", c.opts.SPIRVVersion.Major, c.opts.SPIRVVersion.Minor),
	}
	if c.device != nil {
		caps["HAS_DEVICE"] = "1"
	}
	return caps
}

func (c *NagaCompiler) identity() string {
	return fmt.Sprintf("naga/spirv%d.%d/debug=%t/validate=%t",
		c.opts.SPIRVVersion.Major, c.opts.SPIRVVersion.Minor, c.opts.Debug, c.opts.Validate)
}

// Compile preprocesses and compiles both stages.
func (c *NagaCompiler) Compile(vertex, fragment string) (Program, error) {
	prog := &NagaProgram{device: c.device}
	for _, st := range shader.Stages {
		src := vertex
		if st == shader.StageFragment {
			src = fragment
		}
		words, err := c.compileStage(st, src)
		if err != nil {
			prog.Release()
			return nil, err
		}
		prog.spirv[st] = words
		if c.device == nil {
			continue
		}
		mod, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  "shaderkit_" + st.Suffix(),
			Source: hal.ShaderSource{SPIRV: words},
		})
		if err != nil {
			prog.Release()
			return nil, &CompileError{Stage: st, Message: "create shader module: " + err.Error(), Err: err}
		}
		prog.modules[st] = mod
	}
	return prog, nil
}

func (c *NagaCompiler) compileStage(st shader.Stage, src string) ([]uint32, error) {
	pp, err := preprocess.Process(src, nil)
	if err != nil {
		ce := &CompileError{Stage: st, Message: err.Error(), Err: err}
		var pe *preprocess.Error
		if errors.As(err, &pe) {
			ce.Line, ce.Message = pe.Line, pe.Msg
		}
		return nil, ce
	}

	key := dcache.KeyOf(c.identity(), st.String(), pp)
	var cached dcache.Payload
	if ok, err := c.cache.Get(key, &cached); err != nil {
		c.log.Warn("spirv cache read failed", "key", key.String(), "err", err)
	} else if ok {
		c.log.Debug("spirv cache hit", "stage", st.String(), "key", key.String())
		return spirvWords(cached.SPIRV)
	}

	code, err := naga.CompileWithOptions(pp, c.opts)
	if err != nil {
		return nil, newCompileError(st, err)
	}
	if err := c.cache.Put(key, &dcache.Payload{Stage: st.String(), Compiler: c.identity(), SPIRV: code}); err != nil {
		c.log.Warn("spirv cache write failed", "key", key.String(), "err", err)
	}
	return spirvWords(code)
}

// newCompileError pulls the source position out of naga's error chain.
func newCompileError(st shader.Stage, err error) *CompileError {
	ce := &CompileError{Stage: st, Message: err.Error(), Err: err}
	var (
		pe   wgsl.ParseError
		se   *wgsl.SourceError
		errs *wgsl.SourceErrors
	)
	switch {
	case errors.As(err, &pe):
		ce.Line, ce.Column, ce.Message = pe.Token.Line, pe.Token.Column, pe.Message
	case errors.As(err, &errs) && errs.HasErrors():
		first := (*errs)[0]
		ce.Line, ce.Column, ce.Message = first.Span.Start.Line, first.Span.Start.Column, first.Message
	case errors.As(err, &se):
		ce.Line, ce.Column, ce.Message = se.Span.Start.Line, se.Span.Start.Column, se.Message
	default:
		ce.Line, ce.Column = LineFromMessage(err.Error())
	}
	return ce
}

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("spirv: %d bytes is not a whole number of words", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}

// NagaProgram holds the SPIR-V of both stages and, with a device, their modules.
type NagaProgram struct {
	device  hal.Device
	spirv   [len(shader.Stages)][]uint32
	modules [len(shader.Stages)]hal.ShaderModule
}

// SPIRV returns the words of one stage.
func (p *NagaProgram) SPIRV(st shader.Stage) []uint32 { return p.spirv[st] }

// Module returns the shader module of one stage, nil without a device.
func (p *NagaProgram) Module(st shader.Stage) hal.ShaderModule { return p.modules[st] }

func (p *NagaProgram) Release() {
	for i, m := range p.modules {
		if m != nil && p.device != nil {
			p.device.DestroyShaderModule(m)
		}
		p.modules[i] = nil
	}
}
