package checkpoint

import "errors"

// ErrNotFound is returned when no checkpoint exists for a shard key.
var ErrNotFound = errors.New("checkpoint not found")
