package iogbif

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
)

// Status of a GBIF download job.
const (
	Preparing = "PREPARING"
	Running   = "RUNNING"
	Suspended = "SUSPENDED"
	Succeeded = "SUCCEEDED"
	Failed    = "FAILED"
)

// Job is the state of a download request.
type Job struct {
	ID           string `json:"key"`
	Status       string `json:"status"`
	DownloadLink string `json:"downloadLink"`
	DOI          string `json:"doi"`
}

// Pending reports if the job may still change its status.
func (j Job) Pending() bool {
	return slices.Contains([]string{Preparing, Running, Suspended}, j.Status)
}

type predicate struct {
	Type       string      `json:"type"`
	Key        string      `json:"key,omitempty"`
	Value      string      `json:"value,omitempty"`
	Values     []string    `json:"values,omitempty"`
	Predicate  *predicate  `json:"predicate,omitempty"`
	Predicates []predicate `json:"predicates,omitempty"`
}

type downloadRequest struct {
	Creator   string    `json:"creator"`
	Format    string    `json:"format"`
	Predicate predicate `json:"predicate"`
}

// newDownloadRequest selects georeferenced, non-fossil occurrences of the
// species.
func newDownloadRequest(creator string, keys []string) downloadRequest {
	return downloadRequest{
		Creator: creator,
		Format:  "SIMPLE_CSV",
		Predicate: predicate{
			Type: "and",
			Predicates: []predicate{
				{Type: "in", Key: "SPECIES_KEY", Values: keys},
				{Type: "equals", Key: "HAS_GEOSPATIAL_ISSUE", Value: "false"},
				{Type: "equals", Key: "HAS_COORDINATE", Value: "true"},
				{
					Type: "not",
					Predicate: &predicate{
						Type:  "equals",
						Key:   "BASIS_OF_RECORD",
						Value: "FOSSIL_SPECIMEN",
					},
				},
			},
		},
	}
}

// Chunks splits keys into consecutive chunks of at most size keys.
func Chunks(keys []string, size int) [][]string {
	if size <= 0 {
		size = len(keys)
	}
	var res [][]string
	for chunk := range slices.Chunk(keys, max(size, 1)) {
		res = append(res, chunk)
	}
	return res
}

// Submit requests downloads of occurrences of the species, one request
// per chunk of keys, and returns job IDs in the order of the chunks.
// Any rejected request aborts the submission.
func (c *Client) Submit(ctx context.Context, keys []string) ([]string, error) {
	if c.cfg.User == "" || c.cfg.Password == "" {
		return nil, CredentialsError()
	}

	chunks := Chunks(keys, c.cfg.ChunkSize)
	bar := c.newProgressBar(len(chunks), "Download requests: ")
	defer finish(bar)

	res := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		resp, err := c.submitter.Fetch(ctx, iofetch.Request{
			Method:   http.MethodPost,
			URL:      c.cfg.URL + "occurrence/download/request",
			JSON:     newDownloadRequest(c.cfg.User, chunk),
			User:     c.cfg.User,
			Password: c.cfg.Password,
		})
		if err != nil {
			return nil, SubmitError(i+1, len(chunks), err)
		}
		if resp.Status != http.StatusCreated {
			err = iofetch.NewStatusError(c.cfg.URL, resp.Status, resp.Body)
			return nil, SubmitError(i+1, len(chunks), err)
		}
		id := strings.TrimSpace(string(resp.Body))
		slog.Info("Download requested", "job", id, "species", len(chunk))
		res = append(res, id)
		increment(bar)
	}

	gn.Info("Submitted <em>%d</em> GBIF download requests", len(res))
	return res, nil
}

// Job fetches the state of a download job.
func (c *Client) Job(ctx context.Context, id string) (Job, error) {
	var res Job
	resp, err := c.fetcher.Fetch(ctx, iofetch.Request{
		URL: c.cfg.URL + "occurrence/download/" + id,
	})
	if err != nil {
		return res, err
	}
	enc := gnfmt.GNjson{}
	if err = enc.Decode(resp.Body, &res); err != nil {
		return res, err
	}
	if res.ID == "" {
		res.ID = id
	}
	return res, nil
}

// Poller waits for download jobs to finish.
type Poller struct {
	Client      *Client
	Interval    time.Duration
	MaxAttempts int
}

// NewPoller creates a Poller with interval and attempts from the
// client configuration.
func (c *Client) NewPoller() *Poller {
	return &Poller{
		Client:      c,
		Interval:    c.cfg.PollInterval,
		MaxAttempts: c.cfg.PollAttempts,
	}
}

// Wait checks the job status until it succeeds and returns its download
// link. A job that keeps a pending status, or whose status cannot be
// fetched, is checked again after Interval. A failed job and a job that
// is still pending after MaxAttempts checks return an error.
func (p *Poller) Wait(ctx context.Context, id string) (string, error) {
	attempts := max(p.MaxAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		job, err := p.Client.Job(ctx, id)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			slog.Warn("Cannot get download status",
				"job", id, "attempt", attempt, "error", err)
		case job.Status == Succeeded:
			if job.DownloadLink == "" {
				return "", NewJobFailedError(id, "SUCCEEDED without a link")
			}
			slog.Info("Download ready", "job", id, "attempt", attempt)
			return job.DownloadLink, nil
		case job.Pending():
			slog.Debug("Download pending",
				"job", id, "status", job.Status, "attempt", attempt)
		default:
			return "", NewJobFailedError(id, job.Status)
		}

		if attempt == attempts {
			break
		}
		t := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", NewPollExhaustedError(id, attempts)
}

// WaitAll waits for jobs one after another and returns their links in
// the same order. The first failure stops waiting.
func (p *Poller) WaitAll(ctx context.Context, ids []string) ([]string, error) {
	bar := p.Client.newProgressBar(len(ids), "Downloads ready: ")
	defer finish(bar)

	res := make([]string, 0, len(ids))
	for _, id := range ids {
		link, err := p.Wait(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, link)
		increment(bar)
	}
	return res, nil
}
