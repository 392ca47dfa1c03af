// Package iogbif matches names against the GBIF backbone and drives
// asynchronous GBIF occurrence downloads.
package iogbif

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/bioclim/pkg/parserpool"
)

// Client is a GBIF API client.
type Client struct {
	cfg  config.GBIFConfig
	jobs int

	// fetcher is used for lookups, submitter for download requests that
	// need a more patient retry policy.
	fetcher   *iofetch.Fetcher
	submitter *iofetch.Fetcher

	parser   parserpool.Pool
	progress bool
}

// Option configures a Client.
type Option func(*Client)

// OptParser makes the Client match canonical forms of names.
func OptParser(p parserpool.Pool) Option {
	return func(c *Client) {
		c.parser = p
	}
}

// OptProgress shows progress bars on the terminal.
func OptProgress(b bool) Option {
	return func(c *Client) {
		c.progress = b
	}
}

// New creates a Client. If submitter is nil, fetcher is used for
// download requests too.
func New(
	cfg config.GBIFConfig,
	jobs int,
	fetcher, submitter *iofetch.Fetcher,
	opts ...Option,
) *Client {
	if submitter == nil {
		submitter = fetcher
	}
	res := &Client{
		cfg:       cfg,
		jobs:      max(jobs, 1),
		fetcher:   fetcher,
		submitter: submitter,
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// newProgressBar returns nil when progress is off; pb methods are not
// nil-safe, so callers use bar helpers below.
func (c *Client) newProgressBar(total int, prefix string) *pb.ProgressBar {
	if !c.progress {
		return nil
	}
	bar := pb.Full.Start(total)
	bar.Set("prefix", prefix)
	bar.Set(pb.CleanOnFinish, true)
	return bar
}

func increment(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Increment()
	}
}

func finish(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}
