package editor

import "errors"

var (
	// ErrStepNotFound is returned when a command addresses a client id the list does not hold.
	ErrStepNotFound = errors.New("step not found")

	// ErrConfigMismatch is returned when a config variant does not belong to the step's action type.
	ErrConfigMismatch = errors.New("config does not match action type")

	// ErrDuplicateClientID is returned when a replacement list holds the same client id twice.
	ErrDuplicateClientID = errors.New("duplicate step client id")

	// ErrSessionClosed is returned when a command is dispatched to a closed session.
	ErrSessionClosed = errors.New("editor session closed")

	// ErrUnknownCommand is returned for command values the store cannot apply.
	ErrUnknownCommand = errors.New("unknown editor command")
)
