package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"shaderkit/internal/diag"
	"shaderkit/internal/library"
	"shaderkit/internal/shader"
)

// Summary counts what Apply registered.
type Summary struct {
	Modules  int
	Snippets int
	Blocks   int
	Shaders  int
	Files    int
	Elapsed  time.Duration
}

// text is an inline value or a file to read; label names it in diagnostics.
type text struct {
	inline string
	file   string
	label  string
	owner  string // manifest entry name, for error spans
	body   string
}

type loadPlan struct {
	modules  []*text
	snippets []*text
	blocks   [][len(shader.Stages)][2]*text // enabled, disabled
	shaders  []*text
	all      []*text
}

func (p *loadPlan) add(inline, file, label, owner string) *text {
	t := &text{inline: inline, file: file, label: label, owner: owner}
	if file != "" {
		t.label = file
	}
	p.all = append(p.all, t)
	return t
}

func (m *Manifest) plan() *loadPlan {
	p := &loadPlan{}
	for _, e := range m.Modules {
		p.modules = append(p.modules, p.add(e.Code, e.File, "module:"+e.Name, e.Name))
	}
	for _, e := range m.Snippets {
		p.snippets = append(p.snippets, p.add(e.Code, e.File, "snippet:"+e.Name, e.Name))
	}
	for _, b := range m.Blocks {
		var stages [len(shader.Stages)][2]*text
		for _, st := range shader.Stages {
			se := b.Stage(st)
			base := "block:" + b.Name + "/" + st.String()
			stages[st][0] = p.add(se.Enabled, se.EnabledFile, base+".enabled", b.Name)
			stages[st][1] = p.add(se.Disabled, se.DisabledFile, base+".disabled", b.Name)
		}
		p.blocks = append(p.blocks, stages)
	}
	for _, e := range m.Shaders {
		p.shaders = append(p.shaders, p.add(e.Code, e.File, "shader:"+e.Name, e.Name))
	}
	return p
}

// read loads every file-backed text concurrently. jobs <= 0 means GOMAXPROCS.
func (m *Manifest) read(ctx context.Context, p *loadPlan, jobs int) (int, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	var files []*text
	for _, t := range p.all {
		if t.file == "" {
			t.body = t.inline
			continue
		}
		files = append(files, t)
	}
	if len(files) == 0 {
		return 0, nil
	}

	errs := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, t := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(m.Resolve(t.file))
			if err != nil {
				// ошибки чтения собираем все, а не только первую
				errs[i] = err
				return nil
			}
			t.body = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var failed []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		t := files[i]
		diag.ReportError(m.reporter, diag.IOLoadFileError, m.entrySpan(t.owner),
			fmt.Sprintf("%s: %v", t.file, err)).Emit()
		failed = append(failed, fmt.Errorf("%s: %w: %w", t.file, ErrRead, err))
	}
	return len(files), errors.Join(failed...)
}

// Apply reads every referenced file and registers modules, snippets, blocks
// and shaders into reg, in that order and in manifest order within each kind.
// Registration stops at the first registry error.
func (m *Manifest) Apply(ctx context.Context, reg *library.Registry, jobs int) (Summary, error) {
	start := time.Now()
	var sum Summary
	p := m.plan()
	n, err := m.read(ctx, p, jobs)
	sum.Files = n
	if err != nil {
		return sum, err
	}

	for i, e := range m.Modules {
		if err := reg.RegisterModule(e.Name, p.modules[i].body,
			library.FromFile(p.modules[i].label), library.DeclaredAt(m.entrySpan(e.Name))); err != nil {
			return sum, err
		}
		sum.Modules++
	}
	for i, e := range m.Snippets {
		if err := reg.RegisterSnippet(e.Name, p.snippets[i].body,
			library.FromFile(p.snippets[i].label), library.DeclaredAt(m.entrySpan(e.Name))); err != nil {
			return sum, err
		}
		sum.Snippets++
	}
	for i, b := range m.Blocks {
		def := library.BlockDef{
			Events: b.Events,
			Source: "block:" + b.Name,
			Span:   m.entrySpan(b.Name),
		}
		for _, st := range shader.Stages {
			sd := library.StageDef{
				Enabled:  p.blocks[i][st][0].body,
				Disabled: p.blocks[i][st][1].body,
				Macros:   b.Stage(st).Macros,
			}
			if st == shader.StageVertex {
				def.Vertex = sd
			} else {
				def.Fragment = sd
			}
		}
		if _, err := reg.RegisterBlock(b.Name, def); err != nil {
			return sum, err
		}
		sum.Blocks++
	}
	for i, e := range m.Shaders {
		if _, err := reg.RegisterShader(e.Name, p.shaders[i].body,
			library.FromFile(p.shaders[i].label), library.DeclaredAt(m.entrySpan(e.Name))); err != nil {
			return sum, err
		}
		sum.Shaders++
	}
	sum.Elapsed = time.Since(start)
	m.log.Info("manifest applied", "library", m.Library.Name,
		"modules", sum.Modules, "snippets", sum.Snippets, "blocks", sum.Blocks, "shaders", sum.Shaders,
		"files", sum.Files, "elapsed", sum.Elapsed)
	return sum, nil
}
