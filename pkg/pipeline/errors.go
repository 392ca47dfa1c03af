package pipeline

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

// GraphError is returned when stage declarations do not form a valid
// acyclic graph.
func GraphError(reason string) error {
	msg := `Invalid stage graph: %s`
	vars := []any{reason}

	return &gn.Error{
		Code: errcode.PipelineGraphError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("invalid stage graph: %s", reason),
	}
}

// UnknownStageError is returned for targets that are neither stages nor
// aliases.
func UnknownStageError(name string) error {
	msg := `Unknown stage <em>%s</em>

<em>How to fix:</em>
  Run <em>'bioclim stages'</em> to see available stages`
	vars := []any{name}

	return &gn.Error{
		Code: errcode.PipelineUnknownStageError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("unknown stage %q", name),
	}
}

// StageError wraps an error returned by a stage.
func StageError(name string, err error) error {
	msg := `Stage <em>%s</em> failed`
	vars := []any{name}

	return &gn.Error{
		Code: errcode.PipelineStageError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("stage %s: %w", name, err),
	}
}

// BlockedError explains why a stage did not run.
func BlockedError(name, dep string) error {
	msg := `Stage <em>%s</em> is blocked by <em>%s</em>`
	vars := []any{name, dep}

	return &gn.Error{
		Code: errcode.PipelineBlockedError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("stage %s blocked by failed stage %s", name, dep),
	}
}

// CancelledError is returned when the context is cancelled before a
// stage starts.
func CancelledError(name string, err error) error {
	msg := "Pipeline was cancelled before stage <em>%s</em>"
	vars := []any{name}

	return &gn.Error{
		Code: errcode.PipelineCancelledError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("pipeline cancelled: %w", err),
	}
}
