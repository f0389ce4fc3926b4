package graph

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrDuplicateTask     = errors.New("task already registered")
	ErrCycle             = errors.New("dependency cycle detected")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrTaskFailed        = errors.New("task failed")
)
