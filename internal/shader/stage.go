package shader

import "strings"

// Stage identifies a programmable pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
)

// Stages lists every stage in compile order.
var Stages = [...]Stage{StageVertex, StageFragment}

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return "unknown"
}

// Suffix is the short form used in sectioned shader files ("vs", "fs").
func (s Stage) Suffix() string {
	switch s {
	case StageVertex:
		return "vs"
	case StageFragment:
		return "fs"
	}
	return ""
}

// Define is the macro every resolved stage is compiled with.
func (s Stage) Define() string {
	return "STAGE_" + strings.ToUpper(s.String())
}

// ParseStage accepts the long and short stage names.
func ParseStage(s string) (Stage, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertex", "vs", "vert":
		return StageVertex, true
	case "fragment", "fs", "frag":
		return StageFragment, true
	}
	return 0, false
}
