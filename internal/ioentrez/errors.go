package ioentrez

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
)

// SearchError is returned when ESearch does not produce a search context.
func SearchError(term string, err error) error {
	msg := `Entrez search for <em>%s</em> failed`
	vars := []any{term}
	return &gn.Error{
		Code: errcode.EntrezSearchError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("esearch %q: %w", term, err),
	}
}

// PostError is returned when EPost does not produce a search context.
func PostError(db string, n int, err error) error {
	msg := `Cannot post %d IDs to Entrez database <em>%s</em>`
	vars := []any{n, db}
	return &gn.Error{
		Code: errcode.EntrezPostError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("epost %d ids to %s: %w", n, db, err),
	}
}

// ResponseError is returned for a response that cannot be understood.
func ResponseError(utility, reason string) error {
	msg := `Unexpected response from Entrez <em>%s</em>: %s`
	vars := []any{utility, reason}
	return &gn.Error{
		Code: errcode.EntrezResponseError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("unexpected %s response: %s", utility, reason),
	}
}
