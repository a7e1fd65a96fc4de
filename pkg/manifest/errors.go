package manifest

import "errors"

var (
	// ErrDescriptorNotFound is returned when a package root has no descriptor file
	ErrDescriptorNotFound = errors.New("package descriptor not found")

	// ErrInvalidDescriptor is returned when the descriptor cannot be parsed
	ErrInvalidDescriptor = errors.New("invalid package descriptor")
)
