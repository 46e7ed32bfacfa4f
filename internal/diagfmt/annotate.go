package diagfmt

import (
	"fmt"
	"io"
	"strings"
)

// AnnotatedSource печатает text с номерами строк. Строка opts.Mark выделяется
// маркером '>' и, если задан opts.Column, кареткой под колонкой.
func AnnotatedSource(w io.Writer, text string, opts AnnotateOpts) {
	p := newPalette(opts.Color)
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	first, last := 1, len(lines)
	if opts.Context > 0 && opts.Mark > 0 {
		first = max(1, opts.Mark-opts.Context)
		last = min(len(lines), opts.Mark+opts.Context)
	}
	gutter := len(fmt.Sprint(last))

	if opts.Title != "" {
		fmt.Fprintf(w, "--- %s ---\n", p.bold.Sprint(opts.Title))
	}
	if first > 1 {
		fmt.Fprintf(w, "  %*s %s ...\n", gutter, "", p.dim.Sprint("|"))
	}
	for n := first; n <= last; n++ {
		line := lines[n-1]
		if n != opts.Mark {
			fmt.Fprintf(w, "  %s %s %s\n", p.dim.Sprintf("%*d", gutter, n), p.dim.Sprint("|"), expandTabs(line))
			continue
		}
		fmt.Fprintf(w, "%s %s %s %s\n", p.err.Sprint(">"), p.err.Sprintf("%*d", gutter, n), p.dim.Sprint("|"), expandTabs(line))
		if opts.Column > 0 {
			fmt.Fprintf(w, "  %*s %s %s\n", gutter, "", p.dim.Sprint("|"), p.mark.Sprint(underline(line, opts.Column, opts.Column+1)))
		}
	}
	if last < len(lines) {
		fmt.Fprintf(w, "  %*s %s ...\n", gutter, "", p.dim.Sprint("|"))
	}
}
