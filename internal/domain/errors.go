package domain

import "errors"

// Storage-level failures that services translate into their own errors.
var (
	ErrOverlapConstraint = errors.New("approved loans overlap in room")
	ErrDuplicate         = errors.New("duplicate record")
)
