package ioarchive

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

// DownloadError is returned when an occurrence archive cannot be
// downloaded.
func DownloadError(link string, err error) error {
	msg := `Cannot download <em>%s</em>`
	vars := []any{link}
	return &gn.Error{
		Code: errcode.ArchiveDownloadError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("download %s: %w", link, err),
	}
}

// EmptyError is returned for a downloaded archive without entries.
func EmptyError(link string) error {
	msg := `Archive <em>%s</em> has no files`
	vars := []any{link}
	return &gn.Error{
		Code: errcode.ArchiveEmptyError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("archive %s is empty", link),
	}
}

// FormatError is returned for data that is not a valid archive or
// occurrence table.
func FormatError(name string, err error) error {
	msg := `Unexpected format of <em>%s</em>`
	vars := []any{name}
	return &gn.Error{
		Code: errcode.ArchiveFormatError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("bad format of %s: %w", name, err),
	}
}
