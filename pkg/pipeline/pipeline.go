// Package pipeline runs a directed acyclic graph of stages where every
// stage produces exactly one artifact.
//
// A stage is complete when its artifact exists in the Store. Complete
// stages are never re-run and their content is not re-validated, so a run
// that is interrupted resumes from the first missing artifact. Stages
// write to a temporary location provided by the Store and the artifact
// becomes visible only after a successful commit, so a failed stage never
// leaves an artifact that passes the existence test.
//
// This is a pure package: artifact persistence is delegated to Store.
package pipeline

import (
	"context"
	"time"
)

// Kind describes the content of an artifact.
type Kind int

const (
	// Text is a newline-separated list of values.
	Text Kind = iota
	// Table is a delimited text table.
	Table
	// Record is a serialized structure.
	Record
	// Archive is a zip archive.
	Archive
	// Raster is a multi-band raster stack.
	Raster
	// Database is an embedded database file.
	Database
)

var kindNames = map[Kind]string{
	Text:     "text",
	Table:    "table",
	Record:   "record",
	Archive:  "archive",
	Raster:   "raster",
	Database: "database",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Artifact is the durable output of a stage. It serves both as the result
// of the stage and as its completion marker. Its Name must be stable across
// runs.
type Artifact struct {
	Name string
	Kind Kind
}

// StageIO gives a running stage the locations of its inputs and output.
type StageIO struct {
	inputs map[string]string

	// Output is a temporary path the stage must write its artifact to.
	// The engine commits it after Run returns without error.
	Output string
}

// NewStageIO creates StageIO. It is useful for running a stage outside
// of the engine, for example in tests.
func NewStageIO(inputs map[string]string, output string) StageIO {
	return StageIO{inputs: inputs, Output: output}
}

// Input returns the path of the artifact produced by a required stage.
// It returns an empty string for stages that are not declared as
// requirements.
func (s StageIO) Input(stage string) string {
	return s.inputs[stage]
}

// RunFunc produces the artifact of a stage.
type RunFunc func(ctx context.Context, sio StageIO) error

// Stage is one step of the pipeline.
type Stage struct {
	// Name identifies the stage; it is used on the command line.
	Name string

	// Requires lists stages whose artifacts must exist before Run.
	Requires []string

	// Artifact is the single output of the stage.
	Artifact Artifact

	// Params describes parameters the artifact depends on (search term,
	// limits, URLs). It is stored as a fingerprint next to the artifact
	// and a mismatch is reported as a stale artifact.
	Params string

	// Description is a one-line summary for listings.
	Description string

	Run RunFunc
}

// Store persists artifacts.
type Store interface {
	// Exists reports if the artifact was committed.
	Exists(a Artifact) (bool, error)

	// Path returns the location of a committed artifact.
	Path(a Artifact) string

	// TempPath returns a fresh location for writing the artifact.
	TempPath(a Artifact) (string, error)

	// Commit atomically moves a temporary file to the artifact location.
	Commit(a Artifact, tmp string) error

	// Discard removes a temporary file.
	Discard(tmp string) error

	// Remove deletes a committed artifact and its fingerprint.
	Remove(a Artifact) error

	// Fingerprint returns the stored fingerprint or an empty string.
	Fingerprint(a Artifact) (string, error)

	// SetFingerprint stores a fingerprint of a committed artifact.
	SetFingerprint(a Artifact, fp string) error
}

// State is the outcome of a stage in one run.
type State int

const (
	// Pending stages were not reached.
	Pending State = iota
	// Cached stages had their artifact already.
	Cached
	// Completed stages ran successfully.
	Completed
	// Failed stages returned an error.
	Failed
	// Blocked stages were not run because a requirement failed.
	Blocked
)

var stateNames = map[State]string{
	Pending:   "pending",
	Cached:    "cached",
	Completed: "completed",
	Failed:    "failed",
	Blocked:   "blocked",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// StageResult describes what happened to a stage during a run.
type StageResult struct {
	Name     string
	State    State
	Duration time.Duration
	// Stale is true for cached artifacts built with different Params.
	Stale bool
	Err   error
}

// Result collects stage results in the order they were resolved.
type Result struct {
	Stages []StageResult
}

// Count returns the number of stages in the given state.
func (r *Result) Count(s State) int {
	var res int
	for _, v := range r.Stages {
		if v.State == s {
			res++
		}
	}
	return res
}

// Status is the completion state of a stage derived from its artifact.
type Status struct {
	Stage Stage
	Done  bool
	Path  string
}
