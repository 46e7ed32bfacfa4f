package variant

import (
	"errors"
	"fmt"
	"strings"

	"shaderkit/internal/library"
	"shaderkit/internal/shader"
)

// ErrNoSource is returned when neither the requested mode nor the default mode
// has source for a stage.
var ErrNoSource = errors.New("variant: no source for stage")

// Sources are the resolved stage texts of one variant.
type Sources struct {
	Shader string
	Mode   string
	Mask   shader.FeatureMask
	// Modes holds the render mode that supplied each stage after fallback.
	Modes    [len(shader.Stages)]string
	Prologue [len(shader.Stages)]string
	Body     [len(shader.Stages)]string

	Missing []library.MissingDep
	Cycles  []string

	units [len(shader.Stages)]*shader.SourceUnit
}

// Stage is the complete text handed to the compiler for st.
func (s *Sources) Stage(st shader.Stage) string {
	return s.Prologue[st] + s.Body[st]
}

// PrologueLines is the number of lines the prologue adds in front of the body.
func (s *Sources) PrologueLines(st shader.Stage) int {
	return strings.Count(s.Prologue[st], "\n")
}

// Complete reports whether every referenced dependency was available.
func (s *Sources) Complete() bool {
	return len(s.Missing) == 0 && len(s.Cycles) == 0
}

// Unit returns the top-level unit a stage was resolved from.
func (s *Sources) Unit(st shader.Stage) *shader.SourceUnit { return s.units[st] }

// Resolve expands both stages for mode and mask without compiling them.
func (f *Frontend) Resolve(mode string, mask shader.FeatureMask) (*Sources, error) {
	f.ensureInit()
	src := &Sources{Shader: f.code.Name, Mode: mode, Mask: mask}
	for _, st := range shader.Stages {
		unit, actual, ok := f.code.Unit(mode, st)
		if !ok {
			return nil, fmt.Errorf("%w: shader %q mode %q %s", ErrNoSource, f.code.Name, mode, st)
		}
		ctx := library.NewContext()
		ctx.Reporter = f.reporter
		src.units[st] = unit
		src.Modes[st] = actual
		src.Prologue[st] = f.prologue[st]
		src.Body[st] = f.reg.Resolve(unit, st, mask, ctx)
		src.Missing = append(src.Missing, ctx.Missing...)
		src.Cycles = append(src.Cycles, ctx.Cycles...)
	}
	return src, nil
}
