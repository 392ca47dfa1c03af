package iostages

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

// NotReadyError is returned when an export needs an artifact that was not
// built yet.
func NotReadyError(stage string) error {
	msg := `Stage <em>%s</em> is not complete, run "bioclim run %s" first`
	vars := []any{stage, stage}
	return &gn.Error{
		Code: errcode.ExportNotReadyError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("artifact of stage %s does not exist", stage),
	}
}

// NoTargetError is returned when export has no destination configured.
func NoTargetError() error {
	msg := `Set a PostgreSQL connection string or a bucket URL to export`
	return &gn.Error{
		Code: errcode.ExportNoTargetError,
		Msg:  msg,
		Err:  fmt.Errorf("no export destination"),
	}
}
