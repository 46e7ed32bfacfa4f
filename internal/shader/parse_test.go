package shader

import (
	"slices"
	"strings"
	"testing"

	"shaderkit/internal/diag"
	"shaderkit/internal/source"
)

func parseWithBag(t *testing.T, raw string) (*SourceUnit, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(0)
	return Parse("test", raw, ParseOptions{Reporter: diag.BagReporter{Bag: bag}}), bag
}

func TestParse_NonDynamic(t *testing.T) {
	raw := "// header\n@fragment fn main() -> @location(0) vec4<f32> {\n  return vec4<f32>(1.0); /* one */\n}\n"
	u, bag := parseWithBag(t, raw)
	if u.IsDynamic() {
		t.Fatal("unit without directives must not be dynamic")
	}
	if u.Raw() != raw {
		t.Error("raw text changed")
	}
	if bag.Len() != 0 {
		t.Errorf("unexpected diagnostics: %d", bag.Len())
	}
}

func TestParse_Fragments(t *testing.T) {
	raw := "result = color;\n#pragma shaderblock \"fog\"\ntail;\n"
	u, _ := parseWithBag(t, raw)
	if !u.IsDynamic() {
		t.Fatal("expected dynamic unit")
	}
	frags := u.Fragments()
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}
	if frags[0].Kind != FragmentCode || frags[0].Text != "result = color;\n" {
		t.Errorf("fragment 0 = %+v", frags[0])
	}
	p := frags[1].Pragma
	if frags[1].Kind != FragmentPragma || p.Kind != DirectiveShaderBlock || p.Name != "fog" || p.Dynamic() {
		t.Errorf("fragment 1 = %+v", p)
	}
	if p.Line != 2 {
		t.Errorf("pragma line = %d, want 2", p.Line)
	}
	if frags[2].Text != "tail;\n" {
		t.Errorf("fragment 2 = %q", frags[2].Text)
	}
	if !slices.Equal(u.Deps().Blocks, []string{"fog"}) {
		t.Errorf("blocks = %v", u.Deps().Blocks)
	}
}

func TestParse_Directives(t *testing.T) {
	raw := strings.Join([]string{
		`#pragma include "lighting"`,
		`#pragma include "lighting:pbr"`,
		`#pragma define LIGHT "spot"`,
		`#pragma shaderblock LIGHT "point"`,
		`#pragma shaderblock SHADOW`,
		`#pragma snippet "srgb"`,
		`#pragma event "vs_attributes"`,
	}, "\n")
	u, bag := parseWithBag(t, raw)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	ps := u.Pragmas()
	if len(ps) != 7 {
		t.Fatalf("got %d pragmas", len(ps))
	}
	if ps[1].Name != "lighting" || ps[1].Section != "pbr" || ps[1].Target() != "lighting:pbr" {
		t.Errorf("include section = %+v", ps[1])
	}
	if ps[2].Var != "LIGHT" || ps[2].Value != "spot" {
		t.Errorf("define = %+v", ps[2])
	}
	if !ps[3].Dynamic() || ps[3].Var != "LIGHT" || ps[3].Name != "point" {
		t.Errorf("dynamic shaderblock = %+v", ps[3])
	}
	if !ps[4].Dynamic() || ps[4].Name != "" {
		t.Errorf("shaderblock without default = %+v", ps[4])
	}

	deps := u.Deps()
	if !slices.Equal(deps.Includes, []string{"lighting"}) {
		t.Errorf("includes = %v", deps.Includes)
	}
	if !slices.Equal(deps.Vars, []string{"LIGHT", "SHADOW"}) {
		t.Errorf("vars = %v", deps.Vars)
	}
	if !slices.Equal(deps.BlockCandidates(), []string{"point", "spot"}) {
		t.Errorf("block candidates = %v", deps.BlockCandidates())
	}
	if !slices.Equal(deps.Snippets, []string{"srgb"}) || !slices.Equal(deps.Events, []string{"vs_attributes"}) {
		t.Errorf("snippets/events = %v/%v", deps.Snippets, deps.Events)
	}
}

func TestParse_MalformedDirectivesWarn(t *testing.T) {
	tests := []struct {
		line string
		code diag.Code
	}{
		{`#pragma`, diag.DirMissingAction},
		{`#pragma frobnicate "x"`, diag.DirUnknown},
		{`#pragma include`, diag.DirBadArity},
		{`#pragma include "a" "b"`, diag.DirBadArity},
		{`#pragma include ":sec"`, diag.DirBadName},
		{`#pragma snippet ""`, diag.DirBadName},
		{`#pragma define "X" "v"`, diag.DirBadVariable},
		{`#pragma define X`, diag.DirBadArity},
		{`#pragma shaderblock 9x`, diag.DirBadVariable},
		{`#pragma shaderblock VAR default`, diag.DirBadName},
		{`#pragma shaderblock "a" "b"`, diag.DirBadArity},
		{`#pragma snippet "open`, diag.DirUnterminatedQuote},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			u, bag := parseWithBag(t, "before;\n"+tt.line+"\nafter;\n")
			if bag.Len() != 1 {
				t.Fatalf("got %d diagnostics, want 1", bag.Len())
			}
			d := bag.Items()[0]
			if d.Code != tt.code || d.Severity != diag.SevWarning {
				t.Errorf("got %s %s, want %s warning", d.Severity, d.Code.ID(), tt.code.ID())
			}
			if !u.IsDynamic() {
				t.Error("malformed directive still marks the unit dynamic")
			}
			frags := u.Fragments()
			if len(frags) != 3 || frags[1].Pragma.Kind != DirectiveInvalid {
				t.Errorf("expected invalid pragma between code fragments, got %+v", frags)
			}
		})
	}
}

func TestParse_CommentsNeverDirectives(t *testing.T) {
	raw := "// #pragma shaderblock \"fog\"\n/*\n#pragma snippet \"x\"\n*/\ncode; // trailing\n"
	u, bag := parseWithBag(t, raw)
	if u.IsDynamic() {
		t.Error("commented directives must be ignored")
	}
	if bag.Len() != 0 {
		t.Errorf("unexpected diagnostics: %d", bag.Len())
	}
}

func TestParse_CommentStrippedCode(t *testing.T) {
	raw := "a; // note\n#pragma snippet \"s\"\nb; /* x */ c;\n"
	u, _ := parseWithBag(t, raw)
	frags := u.Fragments()
	if frags[0].Text != "a;\n" {
		t.Errorf("fragment 0 = %q", frags[0].Text)
	}
	if want := "b;" + strings.Repeat(" ", 9) + "c;\n"; frags[2].Text != want {
		t.Errorf("fragment 2 = %q", frags[2].Text)
	}
}

func TestParse_Declarations(t *testing.T) {
	raw := strings.Join([]string{
		"uniform highp vec3 u_color;",
		"uniform mat4 u_bones[32];",
		"attribute vec2 a_uv;",
		"@group(0) @binding(0)",
		"var<uniform> camera: Camera;",
		"  @location(0) position: vec3<f32>,",
		"  @location(1) normal: vec3<f32>)",
		"#pragma event \"vs_attributes\"",
	}, "\n")
	u, _ := parseWithBag(t, raw)

	var uniforms, attrs []string
	for _, d := range u.Uniforms() {
		uniforms = append(uniforms, d.Name+":"+d.Type)
	}
	for _, d := range u.Attributes() {
		attrs = append(attrs, d.Name+":"+d.Type)
	}
	if !slices.Equal(uniforms, []string{"u_color:vec3", "u_bones:mat4", "camera:Camera"}) {
		t.Errorf("uniforms = %v", uniforms)
	}
	if !slices.Equal(attrs, []string{"a_uv:vec2", "position:vec3<f32>", "normal:vec3<f32>"}) {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestParse_OriginSpans(t *testing.T) {
	fs := source.NewFileSet()
	text := "\\default.fs\nx;\n  #pragma bogus\n"
	id := fs.AddVirtual("lit.wgsl", []byte(text))
	bag := diag.NewBag(0)
	u := Parse("lit", "x;\n  #pragma bogus\n", ParseOptions{
		Reporter: diag.BagReporter{Bag: bag},
		Origin:   &Origin{File: id, Offset: 12, Line: 2},
	})
	if bag.Len() != 1 {
		t.Fatalf("got %d diagnostics", bag.Len())
	}
	start, _ := fs.Resolve(bag.Items()[0].Primary)
	if start.Line != 3 || start.Col != 11 {
		t.Errorf("diagnostic at %+v, want 3:11", start)
	}
	if got := u.FileLine(2); got != 3 {
		t.Errorf("FileLine(2) = %d, want 3", got)
	}
}

func TestLookupDirective(t *testing.T) {
	for _, name := range []string{"include", "define", "shaderblock", "snippet", "event"} {
		k, ok := LookupDirective(name)
		if !ok || k.String() != name {
			t.Errorf("LookupDirective(%q) = %v,%v", name, k, ok)
		}
	}
	if _, ok := LookupDirective("invalid"); ok {
		t.Error("invalid must not be a directive action")
	}
}
