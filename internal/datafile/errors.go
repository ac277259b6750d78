package datafile

import "errors"

var (
	// ErrInvalidDatafile is returned when a document is not valid JSON or fails schema validation.
	ErrInvalidDatafile = errors.New("invalid datafile")

	// ErrUnsupportedVersion is returned for datafile versions this service cannot read.
	ErrUnsupportedVersion = errors.New("unsupported datafile version")
)
