package iogbif_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gnames/bioclim/internal/ioentrez"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/bioclim/internal/iogbif"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.Handler, mod func(*config.GBIFConfig)) *iogbif.Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.New().GBIF
	cfg.URL = srv.URL + "/"
	cfg.User = "user"
	cfg.Password = "pass"
	cfg.PollInterval = time.Millisecond
	if mod != nil {
		mod(&cfg)
	}

	f := iofetch.New(iofetch.Options{
		Timeout:       time.Second,
		BackoffFactor: time.Millisecond,
		MaxInterval:   time.Millisecond,
		MaxRetries:    1,
		RetryStatus:   []int{503},
	})
	return iogbif.New(cfg, 4, f, nil)
}

var matches = map[string]string{
	"Arabidopsis thaliana": `{"usageKey":3052436,"matchType":"EXACT",
		"rank":"SPECIES","speciesKey":3052436,"phylum":"Tracheophyta",
		"order":"Brassicales","family":"Brassicaceae","genus":"Arabidopsis",
		"species":"Arabidopsis thaliana"}`,
	"Oryza sativa": `{"matchType":"EXACT","rank":"SPECIES",
		"speciesKey":2703459,"phylum":"Tracheophyta","order":"Poales",
		"family":"Poaceae","genus":"Oryza","species":"Oryza sativa"}`,
	"Oryza": `{"matchType":"EXACT","rank":"GENUS","genusKey":2703455}`,
	"Rosa acicularis var. sayi": `{"matchType":"FUZZY","rank":"VARIETY",
		"speciesKey":8395064,"phylum":"Tracheophyta","order":"Rosales",
		"family":"Rosaceae","genus":"Rosa","species":"Rosa acicularis"}`,
	"Nothing here": `{"matchType":"NONE","confidence":100}`,
}

func matchHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/species/match", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "plantae", q.Get("kingdom"))
		assert.Equal(t, "true", q.Get("strict"))
		body, ok := matches[q.Get("name")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, body)
	}
}

func TestMatch(t *testing.T) {
	c := newClient(t, matchHandler(t), nil)
	ctx := context.Background()

	m, ok, err := c.Match(ctx, "Arabidopsis thaliana")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, iogbif.SpeciesMatch{
		SpeciesKey: "3052436",
		Phylum:     "Tracheophyta",
		Order:      "Brassicales",
		Family:     "Brassicaceae",
		Genus:      "Arabidopsis",
		Species:    "Arabidopsis thaliana",
	}, m)

	_, ok, err = c.Match(ctx, "Oryza")
	require.NoError(t, err)
	assert.False(t, ok, "genus rank is dropped")

	_, ok, err = c.Match(ctx, "Nothing here")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Match(ctx, "bad request")
	assert.Error(t, err)
}

func TestMatchAll(t *testing.T) {
	c := newClient(t, matchHandler(t), nil)
	taxa := []ioentrez.TaxonRecord{
		{TaxID: "4530", Name: "Oryza sativa"},
		{TaxID: "4527", Name: "Oryza"},
		{TaxID: "1", Name: "bad request"},
		{TaxID: "3702", Name: "Arabidopsis thaliana"},
		{TaxID: "2", Name: "Nothing here"},
		{TaxID: "74649", Name: "Rosa acicularis var. sayi"},
	}

	res, err := c.MatchAll(context.Background(), taxa)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "4530", res[0].TaxID)
	assert.Equal(t, "2703459", res[0].SpeciesKey)
	assert.Equal(t, "3702", res[1].TaxID)
	assert.Equal(t, "74649", res[2].TaxID)
	assert.Equal(t, "Rosa acicularis", res[2].Species)
}

func TestChunks(t *testing.T) {
	keys := make([]string, 160)
	for i := range keys {
		keys[i] = fmt.Sprint(i)
	}
	res := iogbif.Chunks(keys, 75)
	require.Len(t, res, 3)
	assert.Len(t, res[0], 75)
	assert.Len(t, res[1], 75)
	assert.Len(t, res[2], 10)
	assert.Equal(t, "150", res[2][0])

	assert.Empty(t, iogbif.Chunks(nil, 75))
}

func TestSubmit(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/occurrence/download/request", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)

		bs, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(bs, &body))
		mu.Lock()
		bodies = append(bodies, body)
		n := len(bodies)
		mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "0000%d-200101000000000", n)
	})
	c := newClient(t, h, func(cfg *config.GBIFConfig) { cfg.ChunkSize = 2 })

	ids, err := c.Submit(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"00001-200101000000000", "00002-200101000000000"}, ids)

	require.Len(t, bodies, 2)
	assert.Equal(t, "SIMPLE_CSV", bodies[0]["format"])
	assert.Equal(t, "user", bodies[0]["creator"])
	pred := bodies[1]["predicate"].(map[string]any)
	assert.Equal(t, "and", pred["type"])
	preds := pred["predicates"].([]any)
	require.Len(t, preds, 4)
	in := preds[0].(map[string]any)
	assert.Equal(t, "SPECIES_KEY", in["key"])
	assert.Equal(t, []any{"3"}, in["values"])
	not := preds[3].(map[string]any)
	assert.Equal(t, "not", not["type"])
	assert.Equal(t, "FOSSIL_SPECIMEN",
		not["predicate"].(map[string]any)["value"])
}

func TestSubmitRejected(t *testing.T) {
	var calls int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, "id1")
			return
		}
		// accepted status that is not 201
		w.WriteHeader(http.StatusOK)
	})
	c := newClient(t, h, func(cfg *config.GBIFConfig) { cfg.ChunkSize = 1 })

	_, err := c.Submit(context.Background(), []string{"1", "2", "3"})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls, "submission stops at first rejection")
}

func TestSubmitNoCredentials(t *testing.T) {
	h := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})
	c := newClient(t, h, func(cfg *config.GBIFConfig) { cfg.Password = "" })
	_, err := c.Submit(context.Background(), []string{"1"})
	assert.Error(t, err)
}

// jobHandler reports RUNNING until the given attempt and then the final
// status. A negative succeedAt keeps the job running forever.
func jobHandler(calls *int32, succeedAt int32, final string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/occurrence/download/")
		n := atomic.AddInt32(calls, 1)
		status := iogbif.Running
		if succeedAt > 0 && n >= succeedAt {
			status = final
		}
		if n == 2 {
			// a transient failure counts as not ready
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"key":%q,"status":%q,
		"downloadLink":"https://api.gbif.org/v1/occurrence/download/request/%s.zip",
		"doi":"10.15468/dl.abc"}`, id, status, id)
	}
}

func TestPollerSucceeds(t *testing.T) {
	var calls int32
	c := newClient(t, jobHandler(&calls, 4, iogbif.Succeeded), nil)
	p := c.NewPoller()
	p.MaxAttempts = 10

	link, err := p.Wait(context.Background(), "job1")
	require.NoError(t, err)
	assert.Equal(t,
		"https://api.gbif.org/v1/occurrence/download/request/job1.zip", link)
	assert.Equal(t, int32(4), calls, "polling stops at the first success")
}

func TestPollerExhausted(t *testing.T) {
	var calls int32
	c := newClient(t, jobHandler(&calls, -1, ""), nil)
	p := c.NewPoller()
	p.MaxAttempts = 5

	_, err := p.Wait(context.Background(), "job2")
	require.Error(t, err)
	var pe *iogbif.PollExhaustedError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "job2", pe.JobID)
	assert.Equal(t, 5, pe.Attempts)
	assert.Contains(t, err.Error(), "job2")
	assert.Equal(t, int32(5), calls)
}

func TestPollerJobFailed(t *testing.T) {
	var calls int32
	c := newClient(t, jobHandler(&calls, 3, iogbif.Failed), nil)
	p := c.NewPoller()

	_, err := p.Wait(context.Background(), "job3")
	require.Error(t, err)
	var fe *iogbif.JobFailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "FAILED", fe.Status)
	assert.Equal(t, int32(3), calls)
}

func TestPollerCancelled(t *testing.T) {
	var calls int32
	c := newClient(t, jobHandler(&calls, -1, ""), func(cfg *config.GBIFConfig) {
		cfg.PollInterval = time.Hour
	})
	p := c.NewPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx, "job4")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls)
}

func TestWaitAllAndJob(t *testing.T) {
	var calls int32
	c := newClient(t, jobHandler(&calls, 1, iogbif.Succeeded), nil)

	links, err := c.NewPoller().WaitAll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.True(t, strings.HasSuffix(links[1], "/b.zip"))

	job, err := c.Job(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "10.15468/dl.abc", job.DOI)
	assert.False(t, job.Pending())
}
