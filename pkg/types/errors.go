package types

import "errors"

var (
	ErrMissingField    = errors.New("required field missing or malformed")
	ErrUnknownAction   = errors.New("unknown classroom action")
	ErrInvalidState    = errors.New("classroom state is required")
	ErrPayloadTooLarge = errors.New("signal payload exceeds 64KB limit")
)
