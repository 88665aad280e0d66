package catalog

import "errors"

// ErrNotFound is returned by ResolveSchedule for unknown codes.
var ErrNotFound = errors.New("unknown schedule code")
