package pipeline

import "errors"

var (
	// ErrAlreadyRunning means a run was requested while one is in flight.
	// The request is dropped, never queued.
	ErrAlreadyRunning = errors.New("pipeline: run already in progress")

	// ErrNotRun means no manifest has been persisted yet.
	ErrNotRun = errors.New("pipeline: no run recorded")
)
