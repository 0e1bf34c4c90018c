package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNotHost         = errors.New("only the host can do that")
	ErrWrongPhase      = errors.New("not allowed in the current phase")
	ErrInvalidRoster   = errors.New("invalid roster")
)

// ValidationError rejects a command. Code is a stable machine-readable reason,
// Reason is shown to the player.
type ValidationError struct {
	Code   string
	Reason string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.err }

func invalid(code string, cause error, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...), err: cause}
}

// Reject builds a ValidationError for commands refused before they reach the engine.
func Reject(code, reason string) *ValidationError {
	return &ValidationError{Code: code, Reason: reason}
}

// NotFoundError reports an unknown session or player id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "player" {
		return ErrPlayerNotFound
	}
	return ErrSessionNotFound
}

func sessionNotFound(id string) error { return &NotFoundError{Kind: "session", ID: id} }

func playerNotFound(id string) error { return &NotFoundError{Kind: "player", ID: id} }

// Code extracts a rejection code from err for clients. Unknown errors map to "internal".
func Code(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Kind + "_not_found"
	}
	return "internal"
}

// Reason extracts the player-facing message from err.
func Reason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return err.Error()
}
