package pipeline

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrSnapshotDecode = errors.New("snapshot decode failed")
)
