package engine

import "errors"

var (
	ErrAlreadyRunning  = errors.New("engine: a session is already running")
	ErrUnknownProject  = errors.New("engine: unknown project")
	ErrSessionNotFound = errors.New("engine: session not found")
	ErrSessionMismatch = errors.New("engine: session id does not match the running session")
)
