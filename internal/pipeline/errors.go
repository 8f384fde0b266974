package pipeline

import "errors"

// Sentinel errors shared by job store implementations so handlers can map
// them to HTTP status codes.
var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
)
