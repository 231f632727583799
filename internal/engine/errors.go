package engine

import (
	"fmt"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageLock     Stage = "lock"
	StageDiscover Stage = "discover"
	StageResource Stage = "resource"
	StageProbe    Stage = "probe"
	StageRender   Stage = "render"
	StagePlan     Stage = "plan"
	StageManifest Stage = "manifest"
	StageMerge    Stage = "merge"
	StagePublish  Stage = "publish"
)

// StageError tags a failure with the stage and, when it concerns one
// segment, the segment index. Index is -1 otherwise.
type StageError struct {
	Stage Stage
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: segment %03d: %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Index: -1, Err: err}
}
