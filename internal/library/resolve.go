package library

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
)

// Resolve expands unit for a stage and feature mask.
//
// A unit without directives is returned unchanged. Otherwise code fragments are
// copied and each directive is replaced by its output; non-empty output always
// ends with a newline. Missing dependencies produce no text and are recorded in
// ctx; the registry remembers them, so registering one later invalidates
// subscribers.
func (r *Registry) Resolve(unit *shader.SourceUnit, st shader.Stage, mask shader.FeatureMask, ctx *Context) string {
	if unit == nil {
		return ""
	}
	if !unit.IsDynamic() {
		return unit.Raw()
	}
	if ctx == nil {
		ctx = NewContext()
	}
	var b strings.Builder
	b.Grow(len(unit.Raw()))
	for _, frag := range unit.Fragments() {
		if frag.Kind == shader.FragmentCode {
			b.WriteString(frag.Text)
			continue
		}
		out := r.emit(unit, frag.Pragma, st, mask, ctx)
		if out == "" {
			continue
		}
		b.WriteString(out)
		if !strings.HasSuffix(out, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// emit is the generate phase of every directive kind.
func (r *Registry) emit(unit *shader.SourceUnit, p *shader.Pragma, st shader.Stage, mask shader.FeatureMask, ctx *Context) string {
	switch p.Kind {
	case shader.DirectiveInclude:
		mod, ok := r.modules[p.Name]
		if !ok {
			r.await(p.Kind, p.Name)
			ctx.missing(p, unit.Name(), false)
			return ""
		}
		if p.Section == "" {
			return mod.Text
		}
		text, ok := mod.Sections[p.Section]
		if !ok {
			ctx.missing(p, unit.Name(), true)
			return ""
		}
		return text

	case shader.DirectiveDefine:
		ctx.Vars[p.Var] = p.Value
		return ""

	case shader.DirectiveShaderBlock:
		name := p.Name
		if p.Var != "" {
			if v, ok := ctx.Vars[p.Var]; ok {
				name = v
			}
		}
		if name == "" {
			return ""
		}
		b, ok := r.byName[name]
		if !ok {
			r.await(p.Kind, name)
			ctx.missing(p, unit.Name(), false)
			return ""
		}
		code, ok := r.finalCode(b, p, st, mask, ctx)
		if !ok {
			return ""
		}
		if mask.Has(b.Mask()) {
			return "#define " + MarkerMacro(b.name) + "\n" + code
		}
		return code

	case shader.DirectiveSnippet:
		s, ok := r.snippets[p.Name]
		if !ok {
			r.await(p.Kind, p.Name)
			ctx.missing(p, unit.Name(), false)
			return ""
		}
		return s.Text

	case shader.DirectiveEvent:
		var out strings.Builder
		for _, b := range r.blocks {
			if !mask.Has(b.Mask()) {
				continue
			}
			if code, ok := b.events[p.Name]; ok && code != "" {
				out.WriteString(code)
				if !strings.HasSuffix(code, "\n") {
					out.WriteByte('\n')
				}
			}
		}
		return out.String()
	}
	return ""
}

// FinalCode resolves a block for a stage: its enabled unit when the block's bit
// is set in mask, its disabled unit otherwise, preceded by `#define NAME VALUE`
// lines for the stage macros.
func (r *Registry) FinalCode(name string, st shader.Stage, mask shader.FeatureMask, ctx *Context) (string, bool) {
	b, ok := r.Block(name)
	if !ok {
		return "", false
	}
	if ctx == nil {
		ctx = NewContext()
	}
	return r.finalCode(b, nil, st, mask, ctx)
}

func (r *Registry) finalCode(b *Block, from *shader.Pragma, st shader.Stage, mask shader.FeatureMask, ctx *Context) (string, bool) {
	if !ctx.enter(b.name) {
		ctx.Cycles = append(ctx.Cycles, b.name)
		if ctx.Reporter != nil && from != nil {
			diag.ReportWarning(ctx.Reporter, diag.ResBlockCycle, from.Span,
				fmt.Sprintf("block %q is already being resolved; reference skipped", b.name)).Emit()
		}
		return "", false
	}
	defer ctx.leave()

	sc := b.stages[st]
	unit := sc.Disabled
	if mask.Has(b.Mask()) {
		unit = sc.Enabled
	}
	body := r.Resolve(unit, st, mask, ctx)
	if len(sc.Macros) == 0 {
		return body, true
	}

	var out strings.Builder
	for _, k := range slices.Sorted(maps.Keys(sc.Macros)) {
		fmt.Fprintf(&out, "#define %s %s\n", k, sc.Macros[k])
	}
	out.WriteString(body)
	return out.String(), true
}

// MarkerMacro returns BLOCK_<NAME>: the block name upper-cased with every byte
// that cannot appear in an identifier replaced by '_'.
func MarkerMacro(block string) string {
	var b strings.Builder
	b.Grow(len("BLOCK_") + len(block))
	b.WriteString("BLOCK_")
	for _, r := range strings.ToUpper(block) {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
