package kernel

import "errors"

var (
	ErrAlreadyRunning = errors.New("kernel already running")
	ErrRunning        = errors.New("kernel is running")
	ErrStopping       = errors.New("kernel workers are still stopping")
	ErrNoSuchArena    = errors.New("no such arena")
	ErrUnknownArena   = errors.New("snapshot names an unknown arena")
	ErrNoSuchTask     = errors.New("no such task")
)
