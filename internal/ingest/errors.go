package ingest

import "errors"

var (
	// ErrUnclassifiable means a file's header matched no indicator keywords.
	// The scan skips the file; it is never fatal.
	ErrUnclassifiable = errors.New("ingest: file matches no record kind")

	// ErrNoFiles means zero valid files exist for a required kind. The stage
	// reports empty rows and the pipeline continues degraded.
	ErrNoFiles = errors.New("ingest: no valid files for kind")
)
