package library

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"shaderkit/internal/dag"
	"shaderkit/internal/diag"
	"shaderkit/internal/shader"
	"shaderkit/internal/source"
)

// StageDef is the raw source of one stage of a block.
type StageDef struct {
	Enabled  string
	Disabled string
	Macros   map[string]string
}

// BlockDef is what callers hand to RegisterBlock.
type BlockDef struct {
	Vertex   StageDef
	Fragment StageDef
	// Events maps an event name to code injected by `#pragma event`.
	Events map[string]string
	// Source labels the block's text in diagnostics; "block:<name>" by default.
	Source string
	Span   source.Span
}

// Stage returns the definition for st.
func (d BlockDef) Stage(st shader.Stage) StageDef {
	if st == shader.StageVertex {
		return d.Vertex
	}
	return d.Fragment
}

// StageCode is the parsed form of a StageDef.
type StageCode struct {
	Enabled  *shader.SourceUnit
	Disabled *shader.SourceUnit
	Macros   map[string]string
}

// Block is a registered shading block.
type Block struct {
	name   string
	id     int
	span   source.Span
	stages [len(shader.Stages)]StageCode
	events map[string]string
}

func (b *Block) Name() string { return b.name }

// ID is the flag id, 0..63.
func (b *Block) ID() int { return b.id }

// Mask is 1 << ID.
func (b *Block) Mask() shader.FeatureMask { return shader.Bit(b.id) }

func (b *Block) Span() source.Span { return b.span }

func (b *Block) Stage(st shader.Stage) StageCode { return b.stages[st] }

// Handler returns the code bound to an event.
func (b *Block) Handler(event string) (string, bool) {
	code, ok := b.events[event]
	return code, ok
}

// Events returns the bound event names, sorted.
func (b *Block) Events() []string {
	return slices.Sorted(maps.Keys(b.events))
}

// Units returns every parsed unit of the block: enabled then disabled, per stage.
func (b *Block) Units() []*shader.SourceUnit {
	out := make([]*shader.SourceUnit, 0, 2*len(b.stages))
	for _, sc := range b.stages {
		out = append(out, sc.Enabled, sc.Disabled)
	}
	return out
}

// nodeMeta lists every block name the block's units may reference.
func (b *Block) nodeMeta() dag.NodeMeta {
	meta := dag.NodeMeta{Name: b.name, Span: b.span}
	seen := make(map[string]struct{})
	for _, u := range b.Units() {
		for _, name := range u.Deps().BlockCandidates() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			meta.Deps = append(meta.Deps, dag.Dep{Name: name})
		}
	}
	return meta
}

// logReporter is the default Reporter: diagnostics go to the logger.
type logReporter struct {
	log *slog.Logger
}

func (l logReporter) Report(code diag.Code, sev diag.Severity, primary source.Span, msg string, _ []diag.Note) {
	level := slog.LevelInfo
	switch sev {
	case diag.SevWarning:
		level = slog.LevelWarn
	case diag.SevError:
		level = slog.LevelError
	}
	l.log.Log(context.Background(), level, msg, "code", code.ID(), "span", primary.String())
}
