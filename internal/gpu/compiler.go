// Package gpu is the boundary to the shader compiler: two complete stage sources
// go in, a Program or a *CompileError comes out.
package gpu

import (
	"fmt"
	"regexp"
	"strconv"

	"shaderkit/internal/shader"
)

// Program is a compiled vertex+fragment pair.
type Program interface {
	// Release frees GPU-side objects. Calling it twice is harmless.
	Release()
}

// Compiler turns resolved stage sources into a Program.
type Compiler interface {
	Compile(vertex, fragment string) (Program, error)
	// Capabilities are prepended to every variant as `#define NAME VALUE` lines.
	Capabilities() map[string]string
}

// CompileError is a compile failure with the offending position when known.
// Line and Column are 1-based; 0 means unknown.
type CompileError struct {
	Stage   shader.Stage
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.Stage, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Stage, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

var lineRes = []*regexp.Regexp{
	regexp.MustCompile(`\bline (\d+)(?:, column (\d+))?`),
	regexp.MustCompile(`(?:^|[\s(])(\d+):(\d+)(?::|\b)`),
	regexp.MustCompile(`\bERROR: \d+:(\d+)`),
}

// LineFromMessage extracts a line (and column, when present) from compiler
// output text. It returns 0 when no position is found.
func LineFromMessage(msg string) (line, col int) {
	for _, re := range lineRes {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		line, _ = strconv.Atoi(m[1])
		if len(m) > 2 && m[2] != "" {
			col, _ = strconv.Atoi(m[2])
		}
		if line > 0 {
			return line, col
		}
	}
	return 0, 0
}
