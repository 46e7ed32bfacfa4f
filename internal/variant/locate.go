package variant

import (
	"strings"

	"fortio.org/safecast"

	"shaderkit/internal/shader"
)

type candidate struct {
	kind  string
	name  string
	lines []string
	unit  *shader.SourceUnit
	near  int // preferred line for tie breaks, 0 for none
}

// locate maps a line of the compiled text back to the text it was copied from:
// the top-level unit first, then enabled blocks, the remaining block code,
// snippets and modules.
func (f *Frontend) locate(src *Sources, st shader.Stage, line int) *Location {
	if line <= 0 {
		return nil
	}
	pro := src.PrologueLines(st)
	if line <= pro {
		return &Location{Kind: "prologue", Name: src.Shader, Line: line, Text: lineAt(src.Prologue[st], line)}
	}
	bodyLine := line - pro
	target := normalize(lineAt(src.Body[st], bodyLine))
	if target == "" {
		return nil
	}
	return findLine(f.candidates(src, st, bodyLine), target)
}

func (f *Frontend) candidates(src *Sources, st shader.Stage, bodyLine int) []candidate {
	var out []candidate
	if u := src.Unit(st); u != nil {
		out = append(out, unitCandidate("shader", u.Name(), u, bodyLine))
	}
	blocks := f.reg.Blocks()
	for _, b := range blocks {
		if src.Mask.Has(b.Mask()) {
			if u := b.Stage(st).Enabled; u != nil {
				out = append(out, unitCandidate("block", b.Name(), u, 0))
			}
		}
	}
	for _, b := range blocks {
		if !src.Mask.Has(b.Mask()) {
			if u := b.Stage(st).Disabled; u != nil {
				out = append(out, unitCandidate("block", b.Name(), u, 0))
			}
		}
	}
	for _, name := range f.reg.Snippets() {
		if s, ok := f.reg.Snippet(name); ok {
			out = append(out, candidate{kind: "snippet", name: name, lines: splitLines(s.Text)})
		}
	}
	for _, name := range f.reg.Modules() {
		if m, ok := f.reg.Module(name); ok {
			out = append(out, candidate{kind: "module", name: name, lines: splitLines(m.Text)})
		}
	}
	return out
}

func unitCandidate(kind, name string, u *shader.SourceUnit, near int) candidate {
	return candidate{kind: kind, name: name, lines: u.Lines(), unit: u, near: near}
}

// findLine looks for target first as an exact (whitespace-normalized) line, then
// as a line containing or contained in it. Short lines only match exactly.
func findLine(cands []candidate, target string) *Location {
	match := []func(line string) bool{
		func(line string) bool { return line == target },
		func(line string) bool {
			if len(line) < 4 || len(target) < 4 {
				return false
			}
			return strings.Contains(line, target) || strings.Contains(target, line)
		},
	}
	for _, ok := range match {
		for _, c := range cands {
			best := -1
			for i, raw := range c.lines {
				if !ok(normalize(raw)) {
					continue
				}
				if best < 0 || (c.near > 0 && absInt(i+1-c.near) < absInt(best+1-c.near)) {
					best = i
				}
				if c.near == 0 {
					break
				}
			}
			if best >= 0 {
				return c.location(best)
			}
		}
	}
	return nil
}

func (c candidate) location(idx int) *Location {
	loc := &Location{Kind: c.kind, Name: c.name, Line: idx + 1, Text: c.lines[idx]}
	if c.unit == nil {
		return loc
	}
	origin, ok := c.unit.Origin()
	if !ok {
		return loc
	}
	l, err := safecast.Conv[uint32](idx + 1)
	if err != nil {
		return loc
	}
	loc.File = origin.File
	loc.FileLine = int(c.unit.FileLine(l))
	loc.HasFile = true
	return loc
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func lineAt(text string, line int) string {
	lines := splitLines(text)
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
