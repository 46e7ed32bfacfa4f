package library

import "errors"

var (
	// ErrCapacity is returned when a 65th distinct block is registered.
	ErrCapacity      = errors.New("shading block capacity exceeded")
	ErrCycle         = errors.New("shading block dependency cycle")
	ErrInvalidName   = errors.New("invalid name")
	ErrUnknownBlock  = errors.New("unknown shading block")
	ErrUnknownShader = errors.New("unknown shader")
	ErrBadSection    = errors.New("bad shader section")
)
