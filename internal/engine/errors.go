package engine

import "errors"

// ErrConfiguration wraps every error that aborts an invocation before any
// file is written
var ErrConfiguration = errors.New("configuration error")
