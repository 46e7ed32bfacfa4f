package shader

import (
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"shaderkit/internal/diag"
	"shaderkit/internal/source"
)

// ParseOptions configures Parse.
type ParseOptions struct {
	// Reporter receives directive warnings. Nil drops them.
	Reporter diag.Reporter
	// Origin places the text inside a FileSet file so spans point at real lines.
	Origin *Origin
}

type token struct {
	text   string
	quoted bool
	off    int // byte offset inside the line
}

func (t token) value() string {
	if t.quoted {
		return t.text[1 : len(t.text)-1]
	}
	return t.text
}

type parser struct {
	unit    *SourceUnit
	opts    ParseOptions
	code    strings.Builder
	sets    map[DirectiveKind]map[string]struct{}
	vars    map[string]struct{}
	defines map[string][]string
}

// Parse splits raw into code and directive fragments.
//
// Comments are removed before directive detection. A line whose first token is
// "#pragma" becomes a directive; everything else is code. Malformed directives
// are reported as warnings and kept as DirectiveInvalid fragments that emit nothing.
func Parse(name, raw string, opts ParseOptions) *SourceUnit {
	p := &parser{
		unit: &SourceUnit{name: name, raw: raw},
		opts: opts,
		sets: make(map[DirectiveKind]map[string]struct{}),
		vars: make(map[string]struct{}),
	}
	if opts.Origin != nil {
		p.unit.origin = *opts.Origin
		p.unit.hasOrigin = true
	}
	p.run(stripComments(raw))
	return p.unit
}

func (p *parser) run(stripped string) {
	var lineNo uint32
	for start := 0; start < len(p.unit.raw); {
		lineNo++
		end := strings.IndexByte(p.unit.raw[start:], '\n')
		next := len(p.unit.raw)
		if end >= 0 {
			end += start
			next = end + 1
		} else {
			end = len(p.unit.raw)
		}
		rawLine, line := p.unit.raw[start:end], stripped[start:end]

		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == Marker {
			p.flush()
			p.unit.dynamic = true
			p.directive(line, lineNo, start)
		} else {
			if rawLine != line {
				rawLine = strings.TrimRight(line, " \t")
			}
			p.code.WriteString(rawLine)
			if next > end {
				p.code.WriteByte('\n')
			}
			p.declarations(line, lineNo)
		}
		start = next
	}
	p.flush()
	p.finish()
}

func (p *parser) flush() {
	if p.code.Len() == 0 {
		return
	}
	p.unit.fragments = append(p.unit.fragments, Fragment{Kind: FragmentCode, Text: p.code.String()})
	p.code.Reset()
}

func (p *parser) span(lineStart, from, to int) source.Span {
	var file source.FileID
	var base uint32
	if p.unit.hasOrigin {
		file, base = p.unit.origin.File, p.unit.origin.Offset
	}
	s, err := safecast.Conv[uint32](lineStart + from)
	if err != nil {
		return source.Span{File: file, Start: base, End: base}
	}
	e, err := safecast.Conv[uint32](lineStart + to)
	if err != nil {
		e = s
	}
	return source.Span{File: file, Start: base + s, End: base + e}
}

func (p *parser) warn(code diag.Code, sp source.Span, format string, args ...any) {
	if p.opts.Reporter == nil {
		return
	}
	diag.ReportWarning(p.opts.Reporter, code, sp, fmt.Sprintf(format, args...)).Emit()
}

// directive parses one "#pragma" line and appends its fragment.
func (p *parser) directive(line string, lineNo uint32, lineStart int) {
	text := strings.TrimSpace(line)
	lead := strings.Index(line, Marker)
	prag := &Pragma{
		Raw:  text,
		Line: lineNo,
		Span: p.span(lineStart, lead, lead+len(text)),
	}
	p.unit.fragments = append(p.unit.fragments, Fragment{Kind: FragmentPragma, Pragma: prag})

	toks, bad := tokenize(line)
	if bad >= 0 {
		p.warn(diag.DirUnterminatedQuote, p.span(lineStart, toks[bad].off, toks[bad].off+len(toks[bad].text)),
			"unterminated quoted argument %s", toks[bad].text)
		return
	}
	if len(toks) < 2 {
		p.warn(diag.DirMissingAction, prag.Span, "directive has no action")
		return
	}
	prag.Action = toks[1].text
	kind, ok := LookupDirective(prag.Action)
	if !ok {
		p.warn(diag.DirUnknown, p.span(lineStart, toks[1].off, toks[1].off+len(toks[1].text)),
			"unknown directive %q", prag.Action)
		return
	}
	if msg, code := p.validate(kind, prag, toks[2:]); msg != "" {
		p.warn(code, prag.Span, "%s %s", kind, msg)
		return
	}
	prag.Kind = kind
	p.record(prag)
}

// validate checks the arguments of a known directive and fills prag.
// It returns a non-empty message when the shape is wrong.
func (p *parser) validate(kind DirectiveKind, prag *Pragma, args []token) (string, diag.Code) {
	switch kind {
	case DirectiveInclude, DirectiveSnippet, DirectiveEvent:
		if len(args) != 1 {
			return fmt.Sprintf("expects 1 argument, got %d", len(args)), diag.DirBadArity
		}
		name := args[0].value()
		if kind == DirectiveInclude {
			if mod, sec, found := strings.Cut(name, ":"); found {
				if mod == "" || sec == "" {
					return fmt.Sprintf("target %q has an empty module or section", name), diag.DirBadName
				}
				prag.Section = sec
				name = mod
			}
		}
		if !ValidName(name) {
			return fmt.Sprintf("has invalid name %q", name), diag.DirBadName
		}
		prag.Name = name

	case DirectiveDefine:
		if len(args) != 2 {
			return fmt.Sprintf("expects a variable and a value, got %d arguments", len(args)), diag.DirBadArity
		}
		if args[0].quoted || !isIdent(args[0].text) {
			return fmt.Sprintf("variable %s is not an identifier", args[0].text), diag.DirBadVariable
		}
		prag.Var, prag.Value = args[0].text, args[1].value()

	case DirectiveShaderBlock:
		switch {
		case len(args) == 1 && args[0].quoted:
			if !ValidName(args[0].value()) {
				return fmt.Sprintf("has invalid name %q", args[0].value()), diag.DirBadName
			}
			prag.Name = args[0].value()
		case (len(args) == 1 || len(args) == 2) && !args[0].quoted:
			if !isIdent(args[0].text) {
				return fmt.Sprintf("variable %s is not an identifier", args[0].text), diag.DirBadVariable
			}
			prag.Var = args[0].text
			if len(args) == 2 {
				if !args[1].quoted || !ValidName(args[1].value()) {
					return fmt.Sprintf("default %s must be a quoted block name", args[1].text), diag.DirBadName
				}
				prag.Name = args[1].value()
			}
		default:
			return fmt.Sprintf("expects \"name\" or VAR [\"default\"], got %d arguments", len(args)), diag.DirBadArity
		}
	}
	return "", diag.UnknownCode
}

func (p *parser) add(kind DirectiveKind, name string) {
	if name == "" {
		return
	}
	set, ok := p.sets[kind]
	if !ok {
		set = make(map[string]struct{})
		p.sets[kind] = set
	}
	set[name] = struct{}{}
}

func (p *parser) record(prag *Pragma) {
	switch prag.Kind {
	case DirectiveInclude, DirectiveSnippet, DirectiveEvent, DirectiveShaderBlock:
		p.add(prag.Kind, prag.Name)
	case DirectiveDefine:
		if p.defines == nil {
			p.defines = make(map[string][]string)
		}
		if !slices.Contains(p.defines[prag.Var], prag.Value) {
			p.defines[prag.Var] = append(p.defines[prag.Var], prag.Value)
		}
	}
	if prag.Var != "" {
		p.vars[prag.Var] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (p *parser) finish() {
	p.unit.deps = Dependencies{
		Includes: sortedKeys(p.sets[DirectiveInclude]),
		Blocks:   sortedKeys(p.sets[DirectiveShaderBlock]),
		Snippets: sortedKeys(p.sets[DirectiveSnippet]),
		Events:   sortedKeys(p.sets[DirectiveEvent]),
		Vars:     sortedKeys(p.vars),
		Defines:  p.defines,
	}
}

// tokenize splits a directive line on whitespace. It returns the index of the
// first token with an unbalanced quote, or -1.
func tokenize(line string) ([]token, int) {
	var toks []token
	bad := -1
	for i := 0; i < len(line); {
		if line[i] == ' ' || line[i] == '\t' || line[i] == '\r' {
			i++
			continue
		}
		j := i
		for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '\r' {
			j++
		}
		t := token{text: line[i:j], off: i}
		if strings.HasPrefix(t.text, `"`) {
			if len(t.text) < 2 || !strings.HasSuffix(t.text, `"`) {
				if bad < 0 {
					bad = len(toks)
				}
			} else {
				t.quoted = true
			}
		}
		toks = append(toks, t)
		i = j
	}
	return toks, bad
}
