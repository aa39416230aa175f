// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with context and test with errors.Is.
var (
	// Registry errors (configuration-fatal)
	ErrDuplicateDefinition = errors.New("actionengine: duplicate definition")
	ErrUnknownPrimitive    = errors.New("actionengine: unknown primitive")
	ErrUnknownExternType   = errors.New("actionengine: unknown extern type")
	ErrUnknownMethod       = errors.New("actionengine: unknown extern method")
	ErrUnknownCalculation  = errors.New("actionengine: unknown calculation")
	ErrUnknownAction       = errors.New("actionengine: unknown action")

	// Binding errors (configuration-fatal)
	ErrUnknownField     = errors.New("actionengine: unknown field")
	ErrUnknownHeader    = errors.New("actionengine: unknown header")
	ErrUnknownArray     = errors.New("actionengine: unknown stateful array")
	ErrUnknownExtern    = errors.New("actionengine: unknown extern instance")
	ErrArgumentMismatch = errors.New("actionengine: argument mismatch")
	ErrZeroDivisor      = errors.New("actionengine: zero divisor")

	// Stateful array errors
	ErrIndexOutOfRange = errors.New("actionengine: index out of range")

	// Configuration errors
	ErrConfigInvalid = errors.New("actionengine: invalid configuration")

	// Pipeline errors
	ErrPipelineStopped = errors.New("actionengine: pipeline stopped")
)
