package library

import (
	"fmt"

	"shaderkit/internal/dag"
	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
)

// Check walks every registered unit and reports references that cannot be
// satisfied by the current registry state, plus any block dependency cycle.
// Dynamic shaderblock references are checked through their defaults only.
func (r *Registry) Check(reporter diag.Reporter) {
	for _, b := range r.blocks {
		for _, u := range b.Units() {
			r.checkUnit(u, reporter)
		}
	}
	for _, name := range r.Shaders() {
		for _, u := range r.shaders[name].Units() {
			r.checkUnit(u, reporter)
		}
	}

	metas := make([]dag.NodeMeta, 0, len(r.blocks))
	for _, b := range r.blocks {
		metas = append(metas, b.nodeMeta())
	}
	idx, err := dag.BuildIndex(metas)
	if err != nil {
		return
	}
	g, _ := dag.BuildGraph(idx, metas, reporter)
	dag.ReportCycles(idx, metas, g, dag.ToposortKahn(g), reporter)
}

func (r *Registry) checkUnit(u *shader.SourceUnit, reporter diag.Reporter) {
	for _, p := range u.Pragmas() {
		var code diag.Code
		switch p.Kind {
		case shader.DirectiveInclude:
			mod, ok := r.modules[p.Name]
			switch {
			case !ok:
				code = diag.ResMissingInclude
			case p.Section != "":
				if _, ok := mod.Sections[p.Section]; !ok {
					code = diag.ResMissingSection
				}
			}
		case shader.DirectiveShaderBlock:
			if p.Name != "" {
				if _, ok := r.byName[p.Name]; !ok {
					code = diag.ResMissingBlock
				}
			}
		case shader.DirectiveSnippet:
			if _, ok := r.snippets[p.Name]; !ok {
				code = diag.ResMissingSnippet
			}
		}
		if code != diag.UnknownCode {
			target := p.Target()
			if p.Kind == shader.DirectiveShaderBlock {
				target = p.Name
			}
			diag.ReportWarning(reporter, code, p.Span,
				fmt.Sprintf("%s %q referenced by %s is not registered", p.Kind, target, u.Name())).Emit()
		}
	}
}
