package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
	"shaderkit/internal/source"
)

type validator struct {
	m      *Manifest
	errors int
}

func (v *validator) errorf(code diag.Code, sp source.Span, format string, args ...any) *diag.ReportBuilder {
	v.errors++
	return diag.ReportError(v.m.reporter, code, sp, fmt.Sprintf(format, args...))
}

func (v *validator) check(meta toml.MetaData) {
	m := v.m
	if !meta.IsDefined("library") {
		v.errorf(diag.CfgMissingField, m.wholeFile(), "missing [library]").Emit()
	} else if !meta.IsDefined("library", "name") || strings.TrimSpace(m.Library.Name) == "" {
		v.errorf(diag.CfgMissingField, m.wholeFile(), "missing [library].name").Emit()
	}
	for _, key := range meta.Undecoded() {
		diag.ReportWarning(m.reporter, diag.CfgInfo, m.wholeFile(),
			fmt.Sprintf("unknown manifest key %q", key.String())).Emit()
	}

	v.sources("module", m.Modules)
	v.sources("snippet", m.Snippets)
	v.sources("shader", m.Shaders)
	v.blocks()

	if name := m.Library.DefaultShader; name != "" && !v.hasShader(name) {
		v.errorf(diag.CfgMissingField, m.wholeFile(),
			"[library].default_shader %q is not declared", name).Emit()
	}
}

func (v *validator) named(kind, name string, seen map[string]int, i int) bool {
	if strings.TrimSpace(name) == "" {
		v.errorf(diag.CfgMissingField, v.m.wholeFile(), "%s #%d: missing name", kind, i+1).Emit()
		return false
	}
	spans := v.m.entrySpans(name)
	if !shader.ValidName(name) {
		v.errorf(diag.RegBadName, spans[0], "%s name %q is not a valid identifier", kind, name).Emit()
		return false
	}
	n := seen[name]
	seen[name] = n + 1
	if n > 0 {
		v.errorf(diag.CfgDuplicateName, spans[min(n, len(spans)-1)], "duplicate %s %q", kind, name).
			WithNote(spans[0], "first declared here").Emit()
		return false
	}
	return true
}

func (v *validator) sources(kind string, entries []SourceEntry) {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if !v.named(kind, e.Name, seen, i) {
			continue
		}
		switch {
		case e.File != "" && e.Code != "":
			v.errorf(diag.CfgMissingField, v.m.entrySpan(e.Name), "%s %q sets both file and code", kind, e.Name).Emit()
		case e.File == "" && e.Code == "" && kind != "snippet":
			v.errorf(diag.CfgMissingField, v.m.entrySpan(e.Name), "%s %q needs file or code", kind, e.Name).Emit()
		}
	}
}

func (v *validator) blocks() {
	seen := make(map[string]int, len(v.m.Blocks))
	if len(v.m.Blocks) > shader.MaxBlocks {
		v.errorf(diag.RegCapacity, v.m.wholeFile(), "%d blocks declared, at most %d fit a feature mask",
			len(v.m.Blocks), shader.MaxBlocks).Emit()
	}
	for i, b := range v.m.Blocks {
		if !v.named("block", b.Name, seen, i) {
			continue
		}
		for _, st := range shader.Stages {
			se := b.Stage(st)
			if se.Enabled != "" && se.EnabledFile != "" {
				v.errorf(diag.CfgMissingField, v.m.entrySpan(b.Name),
					"block %q: [%s] sets both enabled and enabled_file", b.Name, st.String()).Emit()
			}
			if se.Disabled != "" && se.DisabledFile != "" {
				v.errorf(diag.CfgMissingField, v.m.entrySpan(b.Name),
					"block %q: [%s] sets both disabled and disabled_file", b.Name, st.String()).Emit()
			}
		}
	}
}

func (v *validator) hasShader(name string) bool {
	return slices.ContainsFunc(v.m.Shaders, func(s SourceEntry) bool { return s.Name == name })
}
