package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"shaderkit/internal/diag"
	"shaderkit/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с аналогичным форматом.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		prettyOne(w, &d, fs, opts, p)
	}
}

func prettyOne(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette) {
	loc, start, end, f := position(fs, d.Primary, opts.PathMode)
	sev := p.severity(d.Severity)
	fmt.Fprintf(w, "%s: %s %s: %s\n",
		p.bold.Sprint(loc), sev.Sprint(d.Severity.String()), sev.Sprint(d.Code.ID()), p.bold.Sprint(d.Message))

	if f != nil && start.Line > 0 {
		snippet(w, f, start, end, opts, p)
	}
	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		nloc, _, _, _ := position(fs, n.Span, opts.PathMode)
		fmt.Fprintf(w, "  %s %s: %s\n", p.note.Sprint("note:"), nloc, n.Msg)
	}
}

// position formats path:line:col; f is nil for spans of unknown files.
func position(fs *source.FileSet, sp source.Span, mode PathMode) (string, source.LineCol, source.LineCol, *source.File) {
	if fs == nil || !fs.Has(sp.File) {
		return "<unknown>", source.LineCol{}, source.LineCol{}, nil
	}
	f := fs.Get(sp.File)
	start, end := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, fs, mode), start.Line, start.Col), start, end, f
}

func snippet(w io.Writer, f *source.File, start, end source.LineCol, opts PrettyOpts, p palette) {
	ctx := uint32(max(opts.Context, 0))
	first := start.Line - min(ctx, start.Line-1)
	last := min(start.Line+ctx, f.LineCount())
	gutter := len(fmt.Sprint(last))

	for n := first; n <= last; n++ {
		text := clip(expandTabs(f.GetLine(n)), opts.Width)
		fmt.Fprintf(w, " %s %s %s\n", p.dim.Sprintf("%*d", gutter, n), p.dim.Sprint("|"), text)
		if n != start.Line {
			continue
		}
		line := f.GetLine(n)
		col := int(start.Col)
		endCol := len(line) + 1
		if end.Line == start.Line && int(end.Col) > col {
			endCol = min(int(end.Col), endCol)
		}
		fmt.Fprintf(w, " %s %s %s\n", strings.Repeat(" ", gutter), p.dim.Sprint("|"), p.mark.Sprint(underline(line, col, endCol)))
	}
}

// underline returns the padding and ^~~~ marker for the 1-based byte columns
// [col, endCol) of line, measured in display cells.
func underline(line string, col, endCol int) string {
	col = clampCol(col, len(line)+1)
	endCol = clampCol(endCol, len(line)+1)
	pad := runewidth.StringWidth(expandTabs(line[:col-1]))
	width := runewidth.StringWidth(expandTabs(line[col-1 : max(endCol, col)-1]))
	if width < 1 {
		width = 1
	}
	return strings.Repeat(" ", pad) + "^" + strings.Repeat("~", width-1)
}

func clampCol(c, limit int) int {
	if c < 1 {
		return 1
	}
	if c > limit {
		return limit
	}
	return c
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

func clip(s string, width uint8) string {
	if width == 0 {
		return s
	}
	return runewidth.Truncate(s, int(width), "…")
}
