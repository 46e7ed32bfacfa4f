package shader

import (
	"strings"

	"fortio.org/safecast"
)

// SectionMarker starts a named section line, e.g. `\default.vs` or `\lighting`.
const SectionMarker = '\\'

// Section is a named slice of a sectioned text file.
type Section struct {
	Name   string // "" for text before the first marker
	Body   string
	Offset uint32 // byte offset of Body in the file
	Line   uint32 // 1-based line of Body's first line
}

// SplitSections cuts text at marker lines. A file without markers yields a
// single unnamed section. Empty leading preambles are dropped.
func SplitSections(text string) ([]Section, error) {
	var out []Section
	cur := Section{Line: 1}
	bodyStart := 0
	var lineNo uint32
	for start := 0; start < len(text); {
		lineNo++
		end := strings.IndexByte(text[start:], '\n')
		next := len(text)
		if end >= 0 {
			next = start + end + 1
			end += start
		} else {
			end = len(text)
		}
		trimmed := strings.TrimSpace(text[start:end])
		if len(trimmed) > 1 && trimmed[0] == SectionMarker && ValidName(trimmed[1:]) {
			cur.Body = text[bodyStart:start]
			if cur.Name != "" || strings.TrimSpace(cur.Body) != "" {
				out = append(out, cur)
			}
			off, err := safecast.Conv[uint32](next)
			if err != nil {
				return nil, err
			}
			cur = Section{Name: trimmed[1:], Offset: off, Line: lineNo + 1}
			bodyStart = next
		}
		start = next
	}
	cur.Body = text[bodyStart:]
	if cur.Name != "" || strings.TrimSpace(cur.Body) != "" || len(out) == 0 {
		out = append(out, cur)
	}
	return out, nil
}
