package diagfmt

import (
	"github.com/fatih/color"

	"shaderkit/internal/diag"
)

type palette struct {
	err, warn, info *color.Color
	bold, dim, mark *color.Color
	note            *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		info: color.New(color.FgCyan, color.Bold),
		bold: color.New(color.Bold),
		dim:  color.New(color.Faint),
		mark: color.New(color.FgGreen, color.Bold),
		note: color.New(color.FgBlue, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.bold, p.dim, p.mark, p.note} {
		// color.NoColor глобален, поэтому решаем на уровне каждого цвета
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	}
	return p.info
}
