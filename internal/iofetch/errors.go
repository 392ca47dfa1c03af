package iofetch

import (
	"fmt"

	"github.com/gnames/gnlib"
)

// StatusError is returned for a response with a non-2xx status.
type StatusError struct {
	error
	gnlib.MessageBase
	URL    string
	Status int
	Body   string
}

// NewStatusError creates a StatusError. Only the beginning of the
// response body is kept.
func NewStatusError(url string, status int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	msgBase := gnlib.MessageBase{
		Msg: `<title>Remote Service Error</title>
<warn>Request to <em>%s</em> returned status %d.</warn>
`,
		Vars: []any{url, status},
	}
	return &StatusError{
		error:       fmt.Errorf("request to %s: unexpected status %d", url, status),
		MessageBase: msgBase,
		URL:         url,
		Status:      status,
		Body:        string(body),
	}
}

// RequestError is returned when a request could not be completed after
// all retries.
type RequestError struct {
	error
	gnlib.MessageBase
	URL string
}

// NewRequestError creates a RequestError.
func NewRequestError(url string, err error) error {
	msgBase := gnlib.MessageBase{
		Msg: `<title>Cannot Reach Remote Service</title>
<warn>Request to <em>%s</em> failed.</warn>

<em>How to fix:</em>
  1. Check the network connection
  2. Increase <em>http.timeout</em> or <em>http.max_retries</em> in the config file
`,
		Vars: []any{url},
	}
	return &RequestError{
		error:       fmt.Errorf("request to %s failed: %w", url, err),
		MessageBase: msgBase,
		URL:         url,
	}
}

func (e *RequestError) Unwrap() error {
	return e.error
}
