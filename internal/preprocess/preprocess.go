package preprocess

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Error is a preprocessing failure at a 1-based line of the input.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// maxExpansionDepth bounds nested macro expansion.
const maxExpansionDepth = 64

type frame struct {
	line     int
	parentOn bool // enclosing region is active
	on       bool // current branch is active
	taken    bool // some branch of this conditional was active
	sawElse  bool
}

type state struct {
	macros map[string]string
	stack  []frame
}

// Process runs the conditional preprocessor over src.
//
// The output has exactly as many lines as the input: directive lines and lines in
// inactive branches become empty, so line numbers reported by a downstream
// compiler are line numbers of src. defines seed the macro table and are not
// modified.
func Process(src string, defines map[string]string) (string, error) {
	st := &state{macros: make(map[string]string, len(defines))}
	maps.Copy(st.macros, defines)

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lineNo := i + 1
		text := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(text, "#") {
			if err := st.directive(strings.TrimRight(text[1:], " \t\r"), lineNo); err != nil {
				return "", err
			}
			lines[i] = ""
			continue
		}
		if !st.active() {
			lines[i] = ""
			continue
		}
		out, err := st.substitute(line, lineNo)
		if err != nil {
			return "", err
		}
		lines[i] = out
	}
	if n := len(st.stack); n > 0 {
		return "", &Error{Line: st.stack[n-1].line, Msg: "unterminated conditional: missing #endif"}
	}
	return strings.Join(lines, "\n"), nil
}

func (s *state) active() bool {
	if len(s.stack) == 0 {
		return true
	}
	return s.stack[len(s.stack)-1].on
}

func (s *state) directive(body string, lineNo int) error {
	body = strings.TrimLeft(body, " \t")
	name, rest := splitWord(body)
	rest = strings.TrimSpace(rest)

	switch name {
	case "if", "ifdef", "ifndef":
		f := frame{line: lineNo, parentOn: s.active()}
		if f.parentOn {
			ok, err := s.condition(name, rest, lineNo)
			if err != nil {
				return err
			}
			f.on, f.taken = ok, ok
		}
		s.stack = append(s.stack, f)
		return nil

	case "elif":
		f, err := s.top("#elif", lineNo)
		if err != nil {
			return err
		}
		if f.sawElse {
			return &Error{Line: lineNo, Msg: "#elif after #else"}
		}
		f.on = false
		if f.parentOn && !f.taken {
			ok, err := s.condition("if", rest, lineNo)
			if err != nil {
				return err
			}
			f.on, f.taken = ok, ok
		}
		return nil

	case "else":
		f, err := s.top("#else", lineNo)
		if err != nil {
			return err
		}
		if f.sawElse {
			return &Error{Line: lineNo, Msg: "duplicate #else"}
		}
		f.sawElse = true
		f.on = f.parentOn && !f.taken
		f.taken = true
		return nil

	case "endif":
		if _, err := s.top("#endif", lineNo); err != nil {
			return err
		}
		s.stack = s.stack[:len(s.stack)-1]
		return nil
	}

	// остальные директивы действуют только в активной ветке
	if !s.active() {
		return nil
	}
	switch name {
	case "define":
		return s.define(rest, lineNo)
	case "undef":
		if !isIdent(rest) {
			return &Error{Line: lineNo, Msg: fmt.Sprintf("#undef: invalid macro name %q", rest)}
		}
		delete(s.macros, rest)
		return nil
	case "pragma":
		return nil
	case "error":
		return &Error{Line: lineNo, Msg: "#error " + rest}
	case "":
		return &Error{Line: lineNo, Msg: "empty directive"}
	}
	return &Error{Line: lineNo, Msg: fmt.Sprintf("unknown directive #%s", name)}
}

func (s *state) top(what string, lineNo int) (*frame, error) {
	if len(s.stack) == 0 {
		return nil, &Error{Line: lineNo, Msg: what + " without #if"}
	}
	return &s.stack[len(s.stack)-1], nil
}

func (s *state) condition(kind, rest string, lineNo int) (bool, error) {
	switch kind {
	case "ifdef", "ifndef":
		if !isIdent(rest) {
			return false, &Error{Line: lineNo, Msg: fmt.Sprintf("#%s: invalid macro name %q", kind, rest)}
		}
		_, ok := s.macros[rest]
		return ok == (kind == "ifdef"), nil
	}
	if rest == "" {
		return false, &Error{Line: lineNo, Msg: "#if with no expression"}
	}
	v, err := s.eval(rest)
	if err != nil {
		return false, &Error{Line: lineNo, Msg: "#if: " + err.Error()}
	}
	return v != 0, nil
}

func (s *state) define(rest string, lineNo int) error {
	name, value := splitWord(rest)
	if strings.HasPrefix(value, "(") {
		return &Error{Line: lineNo, Msg: fmt.Sprintf("function-like macro %q is not supported", name)}
	}
	if !isIdent(name) {
		return &Error{Line: lineNo, Msg: fmt.Sprintf("#define: invalid macro name %q", name)}
	}
	s.macros[name] = strings.TrimSpace(value)
	return nil
}

// substitute replaces macro names in line. Text after `//` is left alone.
func (s *state) substitute(line string, lineNo int) (string, error) {
	if len(s.macros) == 0 {
		return line, nil
	}
	out, err := s.expand(line, nil)
	if err != nil {
		return "", &Error{Line: lineNo, Msg: err.Error()}
	}
	return out, nil
}

func (s *state) expand(text string, active []string) (string, error) {
	if len(active) > maxExpansionDepth {
		return "", fmt.Errorf("macro expansion too deep (%s)", strings.Join(active, " -> "))
	}
	var b strings.Builder
	changed := false
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			if !changed {
				return text, nil
			}
			b.WriteString(text[i:])
			return b.String(), nil
		case isIdentStart(c):
			j := i + 1
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			word := text[i:j]
			value, ok := s.macros[word]
			if !ok || slices.Contains(active, word) {
				if changed {
					b.WriteString(word)
				}
				i = j
				continue
			}
			if !changed {
				b.WriteString(text[:i])
				changed = true
			}
			expanded, err := s.expand(value, append(active, word))
			if err != nil {
				return "", err
			}
			b.WriteString(expanded)
			i = j
		case isDigit(c):
			// числовой литерал целиком, чтобы 0xFF или 1e5 не задевали макросы
			j := i + 1
			for j < len(text) && (isIdentByte(text[j]) || text[j] == '.') {
				j++
			}
			if changed {
				b.WriteString(text[i:j])
			}
			i = j
		default:
			if changed {
				b.WriteByte(c)
			}
			i++
		}
	}
	if !changed {
		return text, nil
	}
	return b.String(), nil
}

func splitWord(s string) (word, rest string) {
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	if i == 0 {
		if j := strings.IndexAny(s, " \t"); j >= 0 {
			return s[:j], s[j:]
		}
		return s, ""
	}
	return s[:i], s[i:]
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
