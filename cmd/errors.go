package cmd

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

// ReadConfigError is returned when config.yaml cannot be read or decoded.
func ReadConfigError(path string, err error) error {
	msg := "Cannot read configuration from <em>%s</em>"
	vars := []any{path}
	return &gn.Error{
		Code: errcode.DecodeConfigError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("cannot read config %s: %w", path, err),
	}
}

// UnknownTargetError is returned for command arguments that are neither
// stages nor aliases.
func UnknownTargetError(name string) error {
	msg := "Unknown stage <em>%s</em>, run 'bioclim stages' to see them"
	vars := []any{name}
	return &gn.Error{
		Code: errcode.PipelineUnknownStageError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("unknown stage %s", name),
	}
}
