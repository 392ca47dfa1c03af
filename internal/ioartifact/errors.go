package ioartifact

import (
	"fmt"
	"runtime"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

func CommitError(name string, err error) error {
	msg := "Cannot save artifact <em>%s</em>"
	vars := []any{name}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ArtifactCommitError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: cannot commit artifact %s: %w",
			fn, name, err),
	}
}

func ReadError(path string, err error) error {
	msg := "Cannot read artifact <em>%s</em>"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ArtifactReadError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: cannot read artifact %s: %w",
			fn, path, err),
	}
}

func WriteError(path string, err error) error {
	msg := "Cannot write <em>%s</em>"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.ArtifactWriteError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: cannot write %s: %w",
			fn, path, err),
	}
}
