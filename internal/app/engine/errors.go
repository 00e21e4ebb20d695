package engine

import "errors"

// ErrRunAborted is returned when the caller's context ends before a run
// joins all of its scoring requests.
var ErrRunAborted = errors.New("analysis run aborted")
