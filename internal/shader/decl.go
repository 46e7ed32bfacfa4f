package shader

import "strings"

// declarations records uniform and attribute declarations on one code line.
// Best effort: GLSL "uniform T name;" / "attribute T name;" and WGSL
// "var<uniform> name: T;" / "@location(N) name: T".
func (p *parser) declarations(line string, lineNo uint32) {
	text := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(text, "uniform ") || strings.HasPrefix(text, "attribute "):
		fields := strings.Fields(strings.TrimRight(text, "; "))
		if len(fields) < 3 {
			return
		}
		name := fields[len(fields)-1]
		if i := strings.IndexByte(name, '['); i > 0 {
			name = name[:i]
		}
		d := Decl{Name: name, Type: fields[len(fields)-2], Line: lineNo}
		if fields[0] == "uniform" {
			p.unit.uniforms = append(p.unit.uniforms, d)
		} else {
			p.unit.attributes = append(p.unit.attributes, d)
		}

	case strings.HasPrefix(text, "var<uniform>"):
		if d, ok := wgslDecl(strings.TrimPrefix(text, "var<uniform>"), lineNo); ok {
			p.unit.uniforms = append(p.unit.uniforms, d)
		}

	case strings.HasPrefix(text, "@location("):
		rest := text[len("@location("):]
		i := strings.IndexByte(rest, ')')
		if i < 0 {
			return
		}
		if d, ok := wgslDecl(rest[i+1:], lineNo); ok {
			p.unit.attributes = append(p.unit.attributes, d)
		}
	}
}

// wgslDecl parses "name: type" followed by an optional ';', ',' or ')'.
func wgslDecl(s string, lineNo uint32) (Decl, bool) {
	name, typ, ok := strings.Cut(s, ":")
	if !ok {
		return Decl{}, false
	}
	name = strings.TrimSpace(name)
	typ = strings.TrimSpace(typ)
	typ = strings.TrimRight(typ, ";,) ")
	if !isIdent(name) || typ == "" {
		return Decl{}, false
	}
	return Decl{Name: name, Type: typ, Line: lineNo}, true
}

// stripComments blanks // and /* */ comments with spaces, keeping newlines and
// byte offsets intact.
func stripComments(src string) string {
	if !strings.Contains(src, "/") {
		return src
	}
	out := []byte(src)
	const (
		code = iota
		line
		block
		quote
	)
	state := code
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case code:
			switch {
			case c == '"':
				state = quote
			case c == '/' && i+1 < len(out) && out[i+1] == '/':
				state = line
				out[i], out[i+1] = ' ', ' '
				i++
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = block
				out[i], out[i+1] = ' ', ' '
				i++
			}
		case quote:
			if c == '"' || c == '\n' {
				state = code
			}
		case line:
			if c == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		case block:
			switch {
			case c == '*' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
			case c != '\n':
				out[i] = ' '
			}
		}
	}
	return string(out)
}
