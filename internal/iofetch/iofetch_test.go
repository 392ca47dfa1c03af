package iofetch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() iofetch.Options {
	return iofetch.Options{
		Timeout:       time.Second,
		BackoffFactor: time.Millisecond,
		MaxInterval:   5 * time.Millisecond,
		MaxRetries:    3,
		RetryStatus:   []int{429, 503},
	}
}

func TestFetchRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, r.URL.Query().Get("q"))
		},
	))
	defer srv.Close()

	f := iofetch.New(testOptions())
	res, err := f.Fetch(context.Background(), iofetch.Request{
		URL:   srv.URL,
		Query: url.Values{"q": {"abc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "abc", string(res.Body))
	assert.Equal(t, int32(3), calls)
}

func TestFetchRetryExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		},
	))
	defer srv.Close()

	f := iofetch.New(testOptions())
	_, err := f.Fetch(context.Background(), iofetch.Request{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, int32(4), calls, "first attempt and three retries")
}

func TestFetchPermanentStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "no such thing")
		},
	))
	defer srv.Close()

	f := iofetch.New(testOptions())
	_, err := f.Fetch(context.Background(), iofetch.Request{URL: srv.URL})
	require.Error(t, err)

	var se *iofetch.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "no such thing", se.Body)
	assert.Equal(t, int32(1), calls)
}

func TestFetchBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			user, pass, _ := r.BasicAuth()
			body, _ := io.ReadAll(r.Body)
			fmt.Fprintf(w, "%s|%s|%s|%s|%s",
				r.Method, r.Header.Get("Content-Type"), user, pass, body)
		},
	))
	defer srv.Close()

	f := iofetch.New(testOptions())
	res, err := f.Fetch(context.Background(), iofetch.Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Form:   url.Values{"id": {"1,2"}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"POST|application/x-www-form-urlencoded|||id=1%2C2", string(res.Body))

	res, err = f.Fetch(context.Background(), iofetch.Request{
		Method:   http.MethodPost,
		URL:      srv.URL,
		JSON:     map[string]string{"a": "b"},
		User:     "u",
		Password: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, `POST|application/json|u|p|{"a":"b"}`, string(res.Body))
}

func TestFetchRateLimit(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		},
	))
	defer srv.Close()

	opts := testOptions()
	opts.MinDelay = 20 * time.Millisecond
	f := iofetch.New(opts)

	start := time.Now()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), iofetch.Request{URL: srv.URL})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, stamps, 4)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := iofetch.New(testOptions())
	_, err := f.Fetch(ctx, iofetch.Request{URL: srv.URL})
	assert.Error(t, err)
}

func TestPaginate(t *testing.T) {
	var mu sync.Mutex
	var offsets []int
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			off, _ := strconv.Atoi(r.URL.Query().Get("retstart"))
			size, _ := strconv.Atoi(r.URL.Query().Get("retmax"))
			mu.Lock()
			offsets = append(offsets, off)
			mu.Unlock()
			for i := off; i < min(off+size, 130); i++ {
				fmt.Fprintln(w, i)
			}
		},
	))
	defer srv.Close()

	f := iofetch.New(testOptions())
	page := func(ctx context.Context, offset, size int) ([]int, error) {
		res, err := f.Fetch(ctx, iofetch.Request{
			URL: srv.URL,
			Query: url.Values{
				"retstart": {strconv.Itoa(offset)},
				"retmax":   {strconv.Itoa(size)},
			},
		})
		if err != nil {
			return nil, err
		}
		var ids []int
		for _, l := range strings.Fields(string(res.Body)) {
			id, err := strconv.Atoi(l)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	var progress []int
	var ids []int
	seq := iofetch.Paginate(context.Background(), 130, 50, page,
		iofetch.WithProgress(func(done, _ int) { progress = append(progress, done) }),
	)
	for id, err := range seq {
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, []int{0, 50, 100}, offsets)
	assert.Equal(t, []int{50, 100, 130}, progress)
	require.Len(t, ids, 130)
	for i, id := range ids {
		assert.Equal(t, i, id)
	}
}

func TestPaginateSkipsFailedPage(t *testing.T) {
	page := func(_ context.Context, offset, _ int) ([]int, error) {
		if offset == 2 {
			return nil, errors.New("bad page")
		}
		return []int{offset, offset + 1}, nil
	}

	var res []int
	for v, err := range iofetch.Paginate(context.Background(), 6, 2, page) {
		require.NoError(t, err)
		res = append(res, v)
	}
	assert.Equal(t, []int{0, 1, 4, 5}, res)
}

func TestPaginateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := func(_ context.Context, offset, _ int) ([]int, error) {
		cancel()
		return []int{offset}, nil
	}

	var res []int
	var lastErr error
	for v, err := range iofetch.Paginate(ctx, 10, 2, page) {
		if err != nil {
			lastErr = err
			break
		}
		res = append(res, v)
	}
	assert.Equal(t, []int{0}, res)
	assert.ErrorIs(t, lastErr, context.Canceled)
}
