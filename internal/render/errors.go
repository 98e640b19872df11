package render

import (
	"errors"
	"fmt"
)

// Stage is a step of the per-playlist state machine.
type Stage string

const (
	StageFetching      Stage = "Fetching"
	StageConcatenating Stage = "Concatenating"
	StageProbing       Stage = "Probing"
	StagePublishing    Stage = "Publishing"
	StagePersisting    Stage = "Persisting"
	StageDone          Stage = "Done"
)

// Request-fatal errors.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("user catalog not found")
)

// Playlist-fatal error kinds. A failed playlist contributes no output but
// never stops its siblings.
var (
	ErrFetch            = errors.New("fetch failed")
	ErrConcatenation    = errors.New("concatenation failed")
	ErrProbeUnavailable = errors.New("metadata extraction failed")
	ErrPublish          = errors.New("publish failed")
	ErrPersist          = errors.New("persist failed")
)

// StageError records where a playlist failed. errors.Is matches both the
// kind and the underlying cause.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
