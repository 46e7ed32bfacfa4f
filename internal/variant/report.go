package variant

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"shaderkit/internal/diagfmt"
	"shaderkit/internal/logging"
	"shaderkit/internal/shader"
	"shaderkit/internal/source"
)

// Location is where a failing line came from.
type Location struct {
	Kind string // "shader", "block", "snippet", "module" or "prologue"
	Name string // unit, block, snippet or module name
	Line int    // 1-based line within that text
	Text string

	// File and FileLine are set when the text was registered with an origin.
	File     source.FileID
	FileLine int
	HasFile  bool
}

func (l *Location) String() string {
	if l == nil {
		return "unknown location"
	}
	return fmt.Sprintf("%s %q line %d", l.Kind, l.Name, l.Line)
}

// FailureReport is everything known about one failed variant compile.
type FailureReport struct {
	Shader string
	Mode   string
	Mask   shader.FeatureMask
	Blocks []string

	Stage shader.Stage
	// Line and Column point into Sources.Stage(Stage), prologue included; 0 if unknown.
	Line    int
	Column  int
	Message string
	Err     error

	Sources Sources
	Origin  *Location
}

// Summary is a one-line description.
func (r *FailureReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s mask %s %s", r.Shader, r.Mode, r.Mask, r.Stage)
	if r.Line > 0 {
		fmt.Fprintf(&b, ":%d", r.Line)
	}
	b.WriteString(": ")
	b.WriteString(r.Message)
	if r.Origin != nil {
		b.WriteString(" (from ")
		b.WriteString(r.Origin.String())
		b.WriteString(")")
	}
	return b.String()
}

// Sink receives detailed failure reports.
type Sink interface {
	Report(r *FailureReport)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r *FailureReport)

func (f SinkFunc) Report(r *FailureReport) { f(r) }

// WriteListing writes both stages as full numbered listings. Only the failing
// stage carries the line marker.
func (r *FailureReport) WriteListing(w io.Writer, color bool) {
	for _, st := range shader.Stages {
		opts := diagfmt.AnnotateOpts{
			Title: fmt.Sprintf("%s %s (mode %s)", r.Shader, st, r.Sources.Modes[st]),
			Color: color,
		}
		if st == r.Stage {
			opts.Mark, opts.Column = r.Line, r.Column
		}
		diagfmt.AnnotatedSource(w, r.Sources.Stage(st), opts)
	}
}

// LogSink writes reports to a logger at error level, with the listing of both
// stages.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Report(r *FailureReport) {
	log := logging.Or(s.Log)
	var listing strings.Builder
	r.WriteListing(&listing, false)
	attrs := []any{
		"shader", r.Shader,
		"mode", r.Mode,
		"mask", r.Mask.String(),
		"blocks", strings.Join(r.Blocks, ","),
		"stage", r.Stage.String(),
		"line", r.Line,
		"error", r.Message,
	}
	if r.Origin != nil {
		attrs = append(attrs, "origin", r.Origin.String())
	}
	attrs = append(attrs, "source", listing.String())
	log.Error("shader compile failed", attrs...)
}

// Diagnostics lets exactly one failure through to its sink; later failures only
// increment a counter until Reset. Frontends may share one.
type Diagnostics struct {
	mu         sync.Mutex
	sink       Sink
	reported   bool
	suppressed int
}

// NewDiagnostics creates a gate; a nil sink logs through the shared logger.
func NewDiagnostics(sink Sink) *Diagnostics {
	if sink == nil {
		sink = LogSink{}
	}
	return &Diagnostics{sink: sink}
}

// Report forwards r if nothing was reported yet and returns whether it did.
func (d *Diagnostics) Report(r *FailureReport) bool {
	d.mu.Lock()
	if d.reported {
		d.suppressed++
		d.mu.Unlock()
		return false
	}
	d.reported = true
	sink := d.sink
	d.mu.Unlock()

	sink.Report(r)
	return true
}

// Suppress counts a failure that is known already and not reported again.
func (d *Diagnostics) Suppress() {
	d.mu.Lock()
	d.suppressed++
	d.mu.Unlock()
}

// Reported reports whether the gate has already fired.
func (d *Diagnostics) Reported() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reported
}

// Suppressed counts failures swallowed after the first.
func (d *Diagnostics) Suppressed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// Reset re-arms the gate and zeroes the counter.
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	d.reported = false
	d.suppressed = 0
	d.mu.Unlock()
}
