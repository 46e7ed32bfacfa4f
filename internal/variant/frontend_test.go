package variant

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"shaderkit/internal/diag"
	"shaderkit/internal/gpu"
	"shaderkit/internal/library"
	"shaderkit/internal/shader"
)

type fakeProgram struct {
	vs, fs   string
	released int
}

func (p *fakeProgram) Release() { p.released++ }

type fakeCompiler struct {
	compiles int
	last     [2]string
	fail     func(vs, fs string) error
	panicMsg string
	programs []*fakeProgram
}

func (c *fakeCompiler) Compile(vs, fs string) (gpu.Program, error) {
	c.compiles++
	c.last = [2]string{vs, fs}
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	if c.fail != nil {
		if err := c.fail(vs, fs); err != nil {
			return nil, err
		}
	}
	p := &fakeProgram{vs: vs, fs: fs}
	c.programs = append(c.programs, p)
	return p, nil
}

func (c *fakeCompiler) Capabilities() map[string]string {
	return map[string]string{"FAKE_GPU": "1"}
}

// failOn fails the fragment stage at the first line containing marker.
func failOn(marker string) func(vs, fs string) error {
	return func(_, fs string) error {
		for i, line := range strings.Split(fs, "\n") {
			if strings.Contains(line, marker) {
				return &gpu.CompileError{Stage: shader.StageFragment, Line: i + 1, Column: 5, Message: "unknown identifier"}
			}
		}
		return nil
	}
}

type recordingSink struct{ reports []*FailureReport }

func (s *recordingSink) Report(r *FailureReport) { s.reports = append(s.reports, r) }

const testShader = `\default.vs
fn vs_main() {
}
\default.fs
fn fs_main() {
    var color = base;
#pragma shaderblock "fog"
#pragma shaderblock "tint"
    out = color;
}
\shadow.fs
fn shadow_main() {}
`

type fixture struct {
	reg  *library.Registry
	bag  *diag.Bag
	comp *fakeCompiler
	sink *recordingSink
	fe   *Frontend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bag := diag.NewBag(0)
	reg := library.New(library.WithReporter(diag.BagReporter{Bag: bag}))
	if _, err := reg.RegisterBlock("fog", library.BlockDef{
		Fragment: library.StageDef{Enabled: "    color = mix(color, fog, 0.5);", Disabled: "    // no fog"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.RegisterBlock("tint", library.BlockDef{
		Fragment: library.StageDef{Enabled: "    color = color * tint;"},
	}); err != nil {
		t.Fatal(err)
	}
	code, err := reg.RegisterShader("standard", testShader)
	if err != nil {
		t.Fatal(err)
	}
	fx := &fixture{reg: reg, bag: bag, comp: &fakeCompiler{}, sink: &recordingSink{}}
	fx.fe = NewFrontend(reg, code, fx.comp, WithDiagnostics(NewDiagnostics(fx.sink)))
	fx.fe.Init(map[string]string{"MAX_LIGHTS": "4"})
	t.Cleanup(fx.fe.Close)
	return fx
}

func (fx *fixture) mask(t *testing.T, names ...string) shader.FeatureMask {
	t.Helper()
	m, err := fx.reg.MaskOf(names...)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestFrontend_CachesPerModeAndMask(t *testing.T) {
	fx := newFixture(t)
	fog := fx.mask(t, "fog")

	p1 := fx.fe.GetProgram("default", fog)
	p2 := fx.fe.GetProgram("default", fog)
	if p1 == nil || p1 != p2 {
		t.Fatalf("expected the same cached program, got %v and %v", p1, p2)
	}
	if fx.comp.compiles != 1 {
		t.Errorf("compiles = %d, want 1", fx.comp.compiles)
	}
	if p3 := fx.fe.GetProgram("default", 0); p3 == nil || p3 == p1 {
		t.Error("different mask must compile a different program")
	}
	if p4 := fx.fe.GetProgram("shadow", fog); p4 == nil || p4 == p1 {
		t.Error("different mode must compile a different program")
	}
	st := fx.fe.Stats()
	if st.Hits != 1 || st.Misses != 3 || st.Compiles != 3 || st.Cached != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFrontend_ResolveFogVariant(t *testing.T) {
	fx := newFixture(t)
	src, err := fx.fe.Resolve("default", fx.mask(t, "fog"))
	if err != nil {
		t.Fatal(err)
	}
	fs := src.Body[shader.StageFragment]
	if !strings.Contains(fs, "#define BLOCK_FOG\n    color = mix(color, fog, 0.5);\n") {
		t.Errorf("fog code missing:\n%s", fs)
	}
	if strings.Contains(fs, "tint") {
		t.Errorf("tint must be absent:\n%s", fs)
	}
	if src.Body[shader.StageVertex] != "fn vs_main() {\n}\n" {
		t.Errorf("vertex = %q", src.Body[shader.StageVertex])
	}
	if !src.Complete() {
		t.Errorf("unexpected missing deps: %v", src.Missing)
	}
}

func TestFrontend_PrologueAndFallback(t *testing.T) {
	fx := newFixture(t)
	src, err := fx.fe.Resolve("shadow", 0)
	if err != nil {
		t.Fatal(err)
	}
	if src.Modes[shader.StageVertex] != library.DefaultMode || src.Modes[shader.StageFragment] != "shadow" {
		t.Errorf("modes = %v", src.Modes)
	}
	wantVS := "#define FAKE_GPU 1\n#define MAX_LIGHTS 4\n#define STAGE_VERTEX 1\n"
	if src.Prologue[shader.StageVertex] != wantVS {
		t.Errorf("vertex prologue = %q", src.Prologue[shader.StageVertex])
	}
	if !strings.HasPrefix(src.Stage(shader.StageFragment), "#define FAKE_GPU 1\n#define MAX_LIGHTS 4\n#define STAGE_FRAGMENT 1\nfn shadow_main()") {
		t.Errorf("fragment text = %q", src.Stage(shader.StageFragment))
	}
	if src.PrologueLines(shader.StageVertex) != 3 {
		t.Errorf("prologue lines = %d", src.PrologueLines(shader.StageVertex))
	}

	if _, err := fx.fe.Resolve("", 0); err != nil {
		t.Errorf("empty mode should fall back to default: %v", err)
	}
}

func TestFrontend_MissingStage(t *testing.T) {
	reg := library.New()
	code, err := reg.RegisterShader("vsonly", "\\default.vs\nfn v() {}\n")
	if err != nil {
		t.Fatal(err)
	}
	fe := NewFrontend(reg, code, &fakeCompiler{})
	defer fe.Close()
	if _, err := fe.Resolve("default", 0); !errors.Is(err, ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}
	if fe.GetProgram("default", 0) != nil {
		t.Error("expected nil program")
	}
}

func TestFrontend_FailureReportedOnceThenSuppressed(t *testing.T) {
	fx := newFixture(t)
	fx.comp.fail = failOn("tint")
	tint := fx.mask(t, "tint")

	if p := fx.fe.GetProgram("default", tint); p != nil {
		t.Fatal("expected nil program for failing variant")
	}
	if len(fx.sink.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(fx.sink.reports))
	}
	r := fx.sink.reports[0]
	if r.Stage != shader.StageFragment || r.Shader != "standard" || r.Mask != tint {
		t.Errorf("report header = %+v", r)
	}
	if r.Origin == nil || r.Origin.Kind != "block" || r.Origin.Name != "tint" || r.Origin.Line != 1 {
		t.Errorf("origin = %+v", r.Origin)
	}
	if !r.Origin.HasFile {
		t.Error("block origin should carry a file")
	}
	if !strings.Contains(r.Sources.Stage(shader.StageFragment), "color * tint") {
		t.Error("report must carry the full failing source")
	}

	// another failing variant: counted, not reported
	if p := fx.fe.GetProgram("default", fx.mask(t, "fog", "tint")); p != nil {
		t.Fatal("expected nil program")
	}
	if len(fx.sink.reports) != 1 {
		t.Errorf("reports = %d after second failure", len(fx.sink.reports))
	}
	if got := fx.fe.Diagnostics().Suppressed(); got != 1 {
		t.Errorf("suppressed = %d, want 1", got)
	}

	// the same failing request again: no recompile, no report, one more suppressed
	before := fx.comp.compiles
	if fx.fe.GetProgram("default", tint) != nil {
		t.Fatal("expected nil program")
	}
	if fx.comp.compiles != before {
		t.Error("failed variant recompiled without invalidation")
	}
	if len(fx.sink.reports) != 1 {
		t.Errorf("reports = %d after repeated request", len(fx.sink.reports))
	}
	if got := fx.fe.Diagnostics().Suppressed(); got != 2 {
		t.Errorf("suppressed = %d, want 2", got)
	}

	// working variants are unaffected
	if fx.fe.GetProgram("default", fx.mask(t, "fog")) == nil {
		t.Error("fog variant should compile")
	}
	if st := fx.fe.Stats(); st.Failures != 3 || st.Suppressed != 2 || st.Compiles != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFrontend_FailureInTopLevelUnit(t *testing.T) {
	fx := newFixture(t)
	fx.comp.fail = failOn("out = color")
	fx.fe.GetProgram("default", 0)
	if len(fx.sink.reports) != 1 {
		t.Fatalf("reports = %d", len(fx.sink.reports))
	}
	r := fx.sink.reports[0]
	pro := r.Sources.PrologueLines(shader.StageFragment)
	if r.Line <= pro {
		t.Fatalf("line %d inside prologue of %d lines", r.Line, pro)
	}
	o := r.Origin
	if o == nil || o.Kind != "shader" || o.Line != 5 {
		t.Fatalf("origin = %+v", o)
	}
	// the fs section starts on line 5 of the shader file
	if o.FileLine != 9 {
		t.Errorf("file line = %d, want 9", o.FileLine)
	}
}

func TestFrontend_FailureInPrologue(t *testing.T) {
	fx := newFixture(t)
	fx.comp.fail = failOn("MAX_LIGHTS")
	fx.fe.GetProgram("default", 0)
	if len(fx.sink.reports) != 1 {
		t.Fatalf("reports = %d", len(fx.sink.reports))
	}
	if o := fx.sink.reports[0].Origin; o == nil || o.Kind != "prologue" || o.Line != 2 {
		t.Errorf("origin = %+v", o)
	}
}

func TestFrontend_LineFromPlainError(t *testing.T) {
	fx := newFixture(t)
	fx.comp.fail = func(_, _ string) error {
		return errors.New("ERROR: 0:4: syntax error")
	}
	fx.fe.GetProgram("default", 0)
	if len(fx.sink.reports) != 1 {
		t.Fatalf("reports = %d", len(fx.sink.reports))
	}
	if r := fx.sink.reports[0]; r.Line != 4 {
		t.Errorf("line = %d, want 4", r.Line)
	}
}

func TestFrontend_CompilerPanicBecomesFailure(t *testing.T) {
	fx := newFixture(t)
	fx.comp.panicMsg = "backend exploded"
	if p := fx.fe.GetProgram("default", 0); p != nil {
		t.Fatal("expected nil program")
	}
	if len(fx.sink.reports) != 1 || !strings.Contains(fx.sink.reports[0].Message, "backend exploded") {
		t.Errorf("reports = %+v", fx.sink.reports)
	}
}

const litShader = "\\default.vs\nfn v() {}\n\\default.fs\n#pragma include \"lighting\"\nfn f() {}\n"

func TestFrontend_MissingIncludeThenRetry(t *testing.T) {
	bag := diag.NewBag(0)
	reg := library.New(library.WithReporter(diag.BagReporter{Bag: bag}))
	code, err := reg.RegisterShader("lit", litShader)
	if err != nil {
		t.Fatal(err)
	}
	comp := &fakeCompiler{}
	fe := NewFrontend(reg, code, comp)
	defer fe.Close()

	first := fe.GetProgram("default", 0)
	if first == nil {
		t.Fatal("variant with a missing include still compiles")
	}
	if !bag.HasWarnings() {
		t.Error("missing include should be reported as a warning")
	}
	// a render loop asking every frame compiles once and holds one program
	for range 1000 {
		if fe.GetProgram("default", 0) != first {
			t.Fatal("incomplete variant not reused")
		}
	}
	if st := fe.Stats(); comp.compiles != 1 || st.Incomplete != 1 || st.Cached != 1 {
		t.Errorf("compiles = %d stats = %+v", comp.compiles, st)
	}

	if err := reg.RegisterModule("lighting", "fn light() {}\n"); err != nil {
		t.Fatal(err)
	}
	if first.(*fakeProgram).released != 1 {
		t.Error("incomplete program must be released once the include arrives")
	}
	second := fe.GetProgram("default", 0)
	if second == nil || second == first {
		t.Fatal("retry must recompile")
	}
	if !strings.Contains(comp.last[1], "fn light() {}\nfn f() {}") {
		t.Errorf("fragment = %q", comp.last[1])
	}
	if fe.GetProgram("default", 0) != second || comp.compiles != 2 {
		t.Error("complete variant should now be cached")
	}
}

func TestFrontend_FailedIncludeRetriedAfterModuleLoads(t *testing.T) {
	reg := library.New(library.WithReporter(diag.NopReporter{}))
	code, err := reg.RegisterShader("lit", litShader)
	if err != nil {
		t.Fatal(err)
	}
	comp := &fakeCompiler{fail: func(_, fs string) error {
		if !strings.Contains(fs, "fn light()") {
			return &gpu.CompileError{Stage: shader.StageFragment, Line: 4, Message: "unresolved call light"}
		}
		return nil
	}}
	sink := &recordingSink{}
	fe := NewFrontend(reg, code, comp, WithDiagnostics(NewDiagnostics(sink)))
	defer fe.Close()

	if fe.GetProgram("default", 0) != nil {
		t.Fatal("expected failure while the include is missing")
	}
	fe.GetProgram("default", 0)
	if err := reg.RegisterModule("shadows", "fn shadow() {}\n"); err != nil {
		t.Fatal(err)
	}
	fe.GetProgram("default", 0)
	if comp.compiles != 1 {
		t.Fatalf("compiles = %d before the include arrives", comp.compiles)
	}

	if err := reg.RegisterModule("lighting", "fn light() {}\n"); err != nil {
		t.Fatal(err)
	}
	if fe.GetProgram("default", 0) == nil {
		t.Fatal("variant must compile once the include is registered")
	}
	if len(sink.reports) != 1 || fe.Stats().Suppressed != 2 {
		t.Errorf("reports = %d suppressed = %d", len(sink.reports), fe.Stats().Suppressed)
	}
}

func TestFrontend_ReRegistrationInvalidates(t *testing.T) {
	fx := newFixture(t)
	fog := fx.mask(t, "fog")
	old := fx.fe.GetProgram("default", fog).(*fakeProgram)

	if _, err := fx.reg.RegisterBlock("fog", library.BlockDef{
		Fragment: library.StageDef{Enabled: "    color = vec3(0.0);"},
	}); err != nil {
		t.Fatal(err)
	}
	if old.released != 1 {
		t.Errorf("old program released %d times", old.released)
	}
	fresh := fx.fe.GetProgram("default", fog).(*fakeProgram)
	if fresh == old {
		t.Fatal("stale program returned after re-registration")
	}
	if !strings.Contains(fresh.fs, "color = vec3(0.0);") || strings.Contains(fresh.fs, "mix(") {
		t.Errorf("fresh program built from stale source:\n%s", fresh.fs)
	}
	if fx.reg.Names(fog)[0] != "fog" {
		t.Error("flag id must survive replacement")
	}
}

func TestFrontend_ContextLostDoesNotRelease(t *testing.T) {
	fx := newFixture(t)
	p := fx.fe.GetProgram("default", 0).(*fakeProgram)
	fx.fe.ContextLost()
	if p.released != 0 {
		t.Error("ContextLost must not release dead handles")
	}
	if q := fx.fe.GetProgram("default", 0); q == p {
		t.Error("cache should be empty after context loss")
	}
	fx.fe.Invalidate("test")
	if fx.fe.Stats().Cached != 0 {
		t.Error("cache not empty after Invalidate")
	}
}

func TestFrontend_SetPrologueInvalidates(t *testing.T) {
	fx := newFixture(t)
	p := fx.fe.GetProgram("default", 0).(*fakeProgram)
	fx.fe.SetPrologue(map[string]string{"MAX_LIGHTS": "8", "FLAG": ""})
	if p.released != 1 {
		t.Error("SetPrologue must release cached programs")
	}
	q := fx.fe.GetProgram("default", 0).(*fakeProgram)
	if !strings.Contains(q.vs, "#define FLAG\n") || !strings.Contains(q.vs, "#define MAX_LIGHTS 8\n") {
		t.Errorf("prologue not applied:\n%s", q.vs)
	}
	// Init after the fact does nothing
	fx.fe.Init(map[string]string{"MAX_LIGHTS": "1"})
	if !strings.Contains(fx.fe.Prologue(shader.StageVertex), "MAX_LIGHTS 8") {
		t.Error("Init must not override SetPrologue")
	}
}

func TestFrontend_Prewarm(t *testing.T) {
	fx := newFixture(t)
	fog, tint := fx.mask(t, "fog"), fx.mask(t, "tint")
	fx.fe.GetProgram("default", fog)

	var events []Progress
	res, err := fx.fe.Prewarm(t.Context(), "default", []shader.FeatureMask{0, fog, tint, fog | tint}, func(p Progress) {
		events = append(events, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Compiled != 3 || res.Cached != 1 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(events) != 4 || !events[1].Cached || events[3].Index != 4 || events[3].Total != 4 {
		t.Errorf("events = %+v", events)
	}
}

func TestFrontend_PrewarmFailedCountsMatchStats(t *testing.T) {
	fx := newFixture(t)
	fx.comp.fail = failOn("tint")
	masks := []shader.FeatureMask{0, fx.mask(t, "tint")}
	for range 2 {
		res, err := fx.fe.Prewarm(t.Context(), "default", masks, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Failed != 1 {
			t.Errorf("result = %+v", res)
		}
	}
	if st := fx.fe.Stats(); st.Failures != 2 || st.Suppressed != 1 || len(fx.sink.reports) != 1 {
		t.Errorf("stats = %+v reports = %d", st, len(fx.sink.reports))
	}
}

func TestFrontend_PrewarmCancelled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	_, err := fx.fe.Prewarm(ctx, "default", shader.FeatureMask(3).Subsets(), func(Progress) {
		calls++
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("progress calls = %d, want 1", calls)
	}
}

func TestDiagnostics_Reset(t *testing.T) {
	sink := &recordingSink{}
	d := NewDiagnostics(sink)
	d.Report(&FailureReport{})
	d.Report(&FailureReport{})
	if !d.Reported() || d.Suppressed() != 1 {
		t.Fatalf("reported=%v suppressed=%d", d.Reported(), d.Suppressed())
	}
	d.Reset()
	d.Report(&FailureReport{})
	if len(sink.reports) != 2 || d.Suppressed() != 0 {
		t.Errorf("reports=%d suppressed=%d", len(sink.reports), d.Suppressed())
	}
}

func failingReport() *FailureReport {
	r := &FailureReport{Shader: "std", Mode: "default", Stage: shader.StageFragment, Line: 2, Column: 5, Message: "expected expression"}
	r.Sources.Modes = [len(shader.Stages)]string{"default", "default"}
	r.Sources.Body[shader.StageVertex] = "fn v() {}\n"
	r.Sources.Body[shader.StageFragment] = "a\nc = ;\n"
	return r
}

func TestFailureReport_WriteListing(t *testing.T) {
	var buf strings.Builder
	failingReport().WriteListing(&buf, false)
	want := "--- std vertex (mode default) ---\n" +
		"  1 | fn v() {}\n" +
		"--- std fragment (mode default) ---\n" +
		"  1 | a\n" +
		"> 2 | c = ;\n" +
		"    |     ^\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestLogSink_ErrorWithBothStages(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	LogSink{Log: log}.Report(failingReport())
	out := buf.String()
	for _, want := range []string{"level=ERROR", "expected expression", "std vertex (mode default)", "fn v() {}", "> 2 | c = ;"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output misses %q:\n%s", want, out)
		}
	}
}

func TestFailureReport_Summary(t *testing.T) {
	r := &FailureReport{
		Shader: "standard", Mode: "default", Mask: 2, Stage: shader.StageFragment,
		Line: 7, Message: "boom", Origin: &Location{Kind: "block", Name: "tint", Line: 1},
	}
	want := `standard/default mask 0x2 fragment:7: boom (from block "tint" line 1)`
	if got := r.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
