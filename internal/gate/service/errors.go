package service

import (
	"errors"
	"fmt"
)

// Decision error taxonomy. Every Decision with Authorized=false carries one
// of these in Err.
var (
	ErrConfigurationMissing = errors.New("subsystem configuration missing")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenMismatch        = errors.New("token mismatch")
	ErrSessionUnresolvable  = errors.New("session unresolvable")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrInternal             = errors.New("authorization check failed")

	// ErrSubsystemNotFound is the ErrConfigurationMissing case the decision
	// endpoint reports as 404.
	ErrSubsystemNotFound = fmt.Errorf("%w: not found", ErrConfigurationMissing)
)

// Refresh errors.
var (
	ErrPageNotFound = errors.New("page not found")
	ErrForbidden    = errors.New("forbidden")
)
