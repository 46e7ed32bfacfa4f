package library

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"shaderkit/internal/dag"
	"shaderkit/internal/diag"
	"shaderkit/internal/logging"
	"shaderkit/internal/shader"
	"shaderkit/internal/source"
)

// Registry holds the shading blocks, snippets, include modules and shaders of
// one render context. It is not safe for concurrent use.
type Registry struct {
	log      *slog.Logger
	reporter diag.Reporter
	files    *source.FileSet

	blocks   []*Block // by flag id
	byName   map[string]*Block
	snippets map[string]*Snippet
	modules  map[string]*Module
	shaders  map[string]*ShaderCode

	listeners  map[int]func(reason string)
	nextListen int
	generation uint64

	// awaited holds dependencies some resolution found missing; their first
	// registration invalidates like a replacement does.
	awaited map[awaitKey]struct{}
}

type awaitKey struct {
	kind shader.DirectiveKind
	name string
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byName:    make(map[string]*Block),
		snippets:  make(map[string]*Snippet),
		modules:   make(map[string]*Module),
		shaders:   make(map[string]*ShaderCode),
		listeners: make(map[int]func(string)),
		awaited:   make(map[awaitKey]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.Or(r.log)
	if r.reporter == nil {
		r.reporter = logReporter{log: r.log}
	}
	if r.files == nil {
		r.files = source.NewFileSet()
	}
	return r
}

// Files returns the FileSet holding every registered text.
func (r *Registry) Files() *source.FileSet { return r.files }

// Reporter returns the reporter used for parse and registration diagnostics.
func (r *Registry) Reporter() diag.Reporter { return r.reporter }

// Generation increases on every change that invalidates compiled variants.
func (r *Registry) Generation() uint64 { return r.generation }

// Subscribe registers fn to run on every invalidation. The returned func removes it.
func (r *Registry) Subscribe(fn func(reason string)) (cancel func()) {
	id := r.nextListen
	r.nextListen++
	r.listeners[id] = fn
	return func() { delete(r.listeners, id) }
}

func (r *Registry) await(kind shader.DirectiveKind, name string) {
	r.awaited[awaitKey{kind, name}] = struct{}{}
}

// arrived invalidates when name was missing from an earlier resolution.
func (r *Registry) arrived(kind shader.DirectiveKind, name string) {
	k := awaitKey{kind, name}
	if _, ok := r.awaited[k]; !ok {
		return
	}
	delete(r.awaited, k)
	r.invalidate(fmt.Sprintf("%s %s registered", kind, name))
}

func (r *Registry) invalidate(reason string) {
	r.generation++
	r.log.Debug("registry invalidated", "reason", reason, "generation", r.generation)
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		// a listener may cancel others while we iterate
		if fn, ok := r.listeners[id]; ok {
			fn(reason)
		}
	}
}

// normalizeName applies NFC and rejects names that cannot appear in a directive.
func normalizeName(kind, name string) (string, error) {
	n := norm.NFC.String(name)
	if !shader.ValidName(n) {
		return "", fmt.Errorf("%s name %q: %w", kind, name, ErrInvalidName)
	}
	return n, nil
}

func applySource(label string, opts []SourceOption) sourceInfo {
	info := sourceInfo{label: label}
	for _, opt := range opts {
		opt(&info)
	}
	return info
}

// parse adds text to the FileSet and parses it with an origin so diagnostics carry real spans.
func (r *Registry) parse(label, text string) *shader.SourceUnit {
	id := r.files.AddVirtual(label, []byte(text))
	// FileSet may have normalized CRLF; parse what it stored
	body := string(r.files.Get(id).Content)
	return shader.Parse(label, body, shader.ParseOptions{
		Reporter: r.reporter,
		Origin:   &shader.Origin{File: id, Line: 1},
	})
}

// parseSection parses one section of an already added file.
func (r *Registry) parseSection(label string, file source.FileID, sec shader.Section) *shader.SourceUnit {
	return shader.Parse(label, sec.Body, shader.ParseOptions{
		Reporter: r.reporter,
		Origin:   &shader.Origin{File: file, Offset: sec.Offset, Line: sec.Line},
	})
}

func (r *Registry) reportError(code diag.Code, sp source.Span, err error) {
	diag.ReportError(r.reporter, code, sp, err.Error()).Emit()
}

// Blocks returns the registered blocks in flag order.
func (r *Registry) Blocks() []*Block {
	return slices.Clone(r.blocks)
}

// Block looks a block up by name.
func (r *Registry) Block(name string) (*Block, bool) {
	b, ok := r.byName[norm.NFC.String(name)]
	return b, ok
}

// BlockByID looks a block up by flag id.
func (r *Registry) BlockByID(id int) (*Block, bool) {
	if id < 0 || id >= len(r.blocks) {
		return nil, false
	}
	return r.blocks[id], true
}

// MaskOf ORs the masks of the named blocks.
func (r *Registry) MaskOf(names ...string) (shader.FeatureMask, error) {
	var m shader.FeatureMask
	var unknown []string
	for _, name := range names {
		b, ok := r.Block(strings.TrimSpace(name))
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		m = m.With(b.Mask())
	}
	if len(unknown) > 0 {
		return m, fmt.Errorf("%w: %s", ErrUnknownBlock, strings.Join(unknown, ", "))
	}
	return m, nil
}

// Names returns block names for the bits of m, in flag order. Bits without a block are skipped.
func (r *Registry) Names(m shader.FeatureMask) []string {
	var out []string
	for _, id := range m.IDs() {
		if b, ok := r.BlockByID(id); ok {
			out = append(out, b.name)
		}
	}
	return out
}

// RegisterBlock adds a block, or replaces one with the same name.
//
// A new block takes the next flag id; the 65th distinct block fails with
// ErrCapacity and leaves the registry unchanged. A replacement keeps its flag
// id so existing masks stay valid, and invalidates every subscriber, as does a
// new block that an earlier resolution found missing. A block
// whose references close a cycle is rejected with ErrCycle.
func (r *Registry) RegisterBlock(name string, def BlockDef) (*Block, error) {
	info := sourceInfo{label: "block:" + name, span: def.Span}
	if def.Source != "" {
		info.label = def.Source
	}
	name, err := normalizeName("block", name)
	if err != nil {
		r.reportError(diag.RegBadName, info.span, err)
		return nil, err
	}

	prev, replacing := r.byName[name]
	if !replacing && len(r.blocks) >= shader.MaxBlocks {
		err := fmt.Errorf("register %q: %w (limit %d)", name, ErrCapacity, shader.MaxBlocks)
		r.log.Error("shading block capacity exceeded", "block", name, "limit", shader.MaxBlocks)
		r.reportError(diag.RegCapacity, info.span, err)
		return nil, err
	}

	b := r.buildBlock(name, info, def)
	if err := r.checkCycles(b); err != nil {
		return nil, err
	}

	if replacing {
		b.id = prev.id
		r.blocks[b.id] = b
		r.byName[name] = b
		r.log.Warn("shading block re-registered", "block", name, "flag", b.id)
		diag.ReportWarning(r.reporter, diag.RegReplaced, info.span,
			fmt.Sprintf("block %q re-registered; compiled variants invalidated", name)).Emit()
		r.invalidate("block " + name + " re-registered")
		return b, nil
	}

	b.id = len(r.blocks)
	r.blocks = append(r.blocks, b)
	r.byName[name] = b
	r.log.Debug("shading block registered", "block", name, "flag", b.id)
	r.arrived(shader.DirectiveShaderBlock, name)
	return b, nil
}

func (r *Registry) buildBlock(name string, info sourceInfo, def BlockDef) *Block {
	b := &Block{name: name, span: info.span, events: make(map[string]string, len(def.Events))}
	for _, st := range shader.Stages {
		sd := def.Stage(st)
		base := info.label + "/" + st.String()
		b.stages[st] = StageCode{
			Enabled:  r.parse(base+".enabled", sd.Enabled),
			Disabled: r.parse(base+".disabled", sd.Disabled),
			Macros:   cloneMacros(sd.Macros),
		}
	}
	for ev, code := range def.Events {
		b.events[norm.NFC.String(ev)] = code
	}
	return b
}

func cloneMacros(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// checkCycles builds the block dependency graph with candidate in place of any
// block of the same name and fails if candidate sits on a cycle.
func (r *Registry) checkCycles(candidate *Block) error {
	metas := make([]dag.NodeMeta, 0, len(r.blocks)+1)
	for _, b := range r.blocks {
		if b.name != candidate.name {
			metas = append(metas, b.nodeMeta())
		}
	}
	metas = append(metas, candidate.nodeMeta())

	idx, err := dag.BuildIndex(metas)
	if err != nil {
		return err
	}
	g, _ := dag.BuildGraph(idx, metas, nil)
	topo := dag.ToposortKahn(g)
	if !topo.Cyclic {
		return nil
	}
	self := idx.NameToID[candidate.name]
	if !slices.Contains(topo.Cycles, self) {
		return nil
	}
	path := strings.Join(dag.CyclePath(idx, g, topo), " -> ")
	err = fmt.Errorf("register %q: %w: %s", candidate.name, ErrCycle, path)
	r.log.Error("shading block dependency cycle", "block", candidate.name, "cycle", path)
	r.reportError(diag.RegCycle, candidate.span, err)
	return err
}
