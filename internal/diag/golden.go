package diag

import (
	"fmt"
	"sort"
	"strings"

	"shaderkit/internal/source"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShortDiagnostics renders diagnostics one per line in a stable order:
// "severity CODE path:line:col message". Notes become "note" lines when requested.
// Used for `check --format short` and as golden output in tests.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if fs == nil || len(diags) == 0 {
		return ""
	}

	rendered := make([]shortDiagnostic, 0, len(diags))
	for i := range diags {
		rendered = appendDiagnostic(rendered, &diags[i], fs, includeNotes)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	lines := make([]string, len(rendered))
	for i, d := range rendered {
		lines[i] = fmt.Sprintf("%s %s %s:%d:%d %s", d.Severity, d.Code, d.Path, d.Line, d.Column, d.Message)
	}
	return strings.Join(lines, "\n")
}

func appendDiagnostic(out []shortDiagnostic, d *Diagnostic, fs *source.FileSet, includeNotes bool) []shortDiagnostic {
	if loc, ok := resolveSpan(fs, d.Primary); ok {
		loc.Severity = strings.ToLower(d.Severity.String())
		loc.Code = d.Code.ID()
		loc.Message = sanitizeMessage(d.Message)
		out = append(out, loc)
	}
	if !includeNotes {
		return out
	}
	for _, note := range d.Notes {
		if loc, ok := resolveSpan(fs, note.Span); ok {
			loc.Severity = "note"
			loc.Code = d.Code.ID()
			loc.Message = sanitizeMessage(note.Msg)
			out = append(out, loc)
		}
	}
	return out
}

func resolveSpan(fs *source.FileSet, span source.Span) (shortDiagnostic, bool) {
	if !fs.Has(span.File) {
		return shortDiagnostic{}, false
	}
	file := fs.Get(span.File)
	start, _ := fs.Resolve(span)
	return shortDiagnostic{
		Path:   strings.TrimPrefix(file.FormatPath("relative", fs.BaseDir()), "./"),
		Line:   start.Line,
		Column: start.Col,
	}, true
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
