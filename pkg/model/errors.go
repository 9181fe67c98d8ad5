package model

import "errors"

// Error taxonomy shared by the builder, the layout engine and the interaction
// controller. Call sites wrap these with detail; callers match with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnknownNode  = errors.New("unknown node")
	ErrEngineState  = errors.New("engine state error")
)
