package iogbif

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
	"github.com/gnames/gnlib"
)

// CredentialsError is returned when a download is requested without
// GBIF credentials.
func CredentialsError() error {
	msg := `GBIF user and password are required for occurrence downloads

<em>How to fix:</em>
  Set <em>BIOCLIM_GBIF_USER</em> and <em>BIOCLIM_GBIF_PASSWORD</em>
  or the gbif section of the config file`
	return &gn.Error{
		Code: errcode.GBIFCredentialsError,
		Msg:  msg,
		Err:  fmt.Errorf("gbif credentials are not set"),
	}
}

// SubmitError is returned when a download request is not accepted.
func SubmitError(chunk, chunks int, err error) error {
	msg := `Cannot submit GBIF download request %d of %d`
	vars := []any{chunk, chunks}
	return &gn.Error{
		Code: errcode.GBIFSubmitError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("download request %d/%d: %w", chunk, chunks, err),
	}
}

// JobFailedError is returned when a download job ends with a status
// other than SUCCEEDED.
type JobFailedError struct {
	error
	gnlib.MessageBase
	JobID  string
	Status string
}

// NewJobFailedError creates a JobFailedError.
func NewJobFailedError(id, status string) error {
	msgBase := gnlib.MessageBase{
		Msg: `<title>GBIF Download Failed</title>
<warn>Download <em>%s</em> finished with status <em>%s</em>.</warn>

<em>How to fix:</em>
  Remove <em>download-IDs.txt</em> from the data directory to submit new requests
`,
		Vars: []any{id, status},
	}
	return &JobFailedError{
		error:       fmt.Errorf("download %s failed with status %s", id, status),
		MessageBase: msgBase,
		JobID:       id,
		Status:      status,
	}
}

// PollExhaustedError is returned when a job does not finish within the
// allowed number of status checks.
type PollExhaustedError struct {
	error
	gnlib.MessageBase
	JobID    string
	Attempts int
}

// NewPollExhaustedError creates a PollExhaustedError.
func NewPollExhaustedError(id string, attempts int) error {
	msgBase := gnlib.MessageBase{
		Msg: `<title>GBIF Download Is Not Ready</title>
<warn>Download <em>%s</em> did not finish after %d status checks.</warn>

<em>How to fix:</em>
  Run the pipeline again later, or increase <em>gbif.poll_attempts</em>
`,
		Vars: []any{id, attempts},
	}
	return &PollExhaustedError{
		error: fmt.Errorf(
			"download %s not ready after %d attempts", id, attempts,
		),
		MessageBase: msgBase,
		JobID:       id,
		Attempts:    attempts,
	}
}
