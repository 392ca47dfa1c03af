package ioarchive_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gnames/bioclim/internal/ioarchive"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "gbifID\tdatasetKey\tdecimalLatitude\tdecimalLongitude\t" +
	"coordinateUncertaintyInMeters\tspeciesKey\n"

func zipOf(t *testing.T, files map[string]string, order ...string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func server(t *testing.T, payloads map[string][]byte) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			bs, ok := payloads[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(bs)
		},
	))
	t.Cleanup(srv.Close)
	return srv
}

func fetcher() *iofetch.Fetcher {
	return iofetch.New(iofetch.Options{
		Timeout:       time.Second,
		BackoffFactor: time.Millisecond,
		MaxInterval:   time.Millisecond,
	})
}

func TestConsolidate(t *testing.T) {
	a := header + "1\td\t10\t20\t\t100\n"
	b := header + "2\td\t-5\t7.5\t30\t200\n3\td\tx\t1\t\t200\n"
	srv := server(t, map[string][]byte{
		"/a.zip": zipOf(t, map[string]string{
			"0001-a.csv": a, "metadata.xml": "<xml/>",
		}, "0001-a.csv", "metadata.xml"),
		"/b.zip": zipOf(t, map[string]string{"0002-b.csv": b}, "0002-b.csv"),
	})

	out := filepath.Join(t.TempDir(), "occurrences.zip")
	f, err := os.Create(out)
	require.NoError(t, err)
	err = ioarchive.Consolidate(context.Background(), fetcher(),
		[]string{srv.URL + "/a.zip", srv.URL + "/b.zip"}, f, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var names []string
	var occs []ioarchive.Occurrence
	err = ioarchive.Entries(out, func(name string, r io.Reader) error {
		names = append(names, name)
		return ioarchive.ReadOccurrences(r, func(o ioarchive.Occurrence) error {
			occs = append(occs, o)
			return nil
		})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"0001-a.csv", "0002-b.csv"}, names,
		"only the first entry of every archive is kept")
	require.Len(t, occs, 3)
	assert.Equal(t, ioarchive.Occurrence{
		SpeciesKey: "100", X: "20", Y: "10", Uncertainty: "",
	}, occs[0])
	assert.Equal(t, "30", occs[1].Uncertainty)
	assert.Equal(t, "x", occs[2].Y, "values are not validated")
}

func TestConsolidateFailures(t *testing.T) {
	srv := server(t, map[string][]byte{
		"/empty.zip": zipOf(t, nil),
		"/junk.zip":  []byte("not a zip"),
	})

	tests := []struct {
		msg  string
		link string
	}{
		{msg: "missing download", link: srv.URL + "/none.zip"},
		{msg: "empty archive", link: srv.URL + "/empty.zip"},
		{msg: "not an archive", link: srv.URL + "/junk.zip"},
	}

	for _, v := range tests {
		var buf bytes.Buffer
		err := ioarchive.Consolidate(context.Background(), fetcher(),
			[]string{v.link}, &buf, false)
		assert.Error(t, err, v.msg)
	}
}

func TestReadOccurrences(t *testing.T) {
	t.Run("columns by name", func(t *testing.T) {
		data := "speciesKey\tfoo\tcoordinateUncertaintyInMeters\t" +
			"decimalLongitude\tdecimalLatitude\r\n" +
			"5\tx\t10\t1.5\t2.5\r\n" +
			"\tx\t10\t1.5\t2.5\n" +
			"6\tshort\n" +
			"\n" +
			"7\t\"quoted\t\t3\t4\n"
		var res []ioarchive.Occurrence
		err := ioarchive.ReadOccurrences(strings.NewReader(data),
			func(o ioarchive.Occurrence) error {
				res = append(res, o)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, []ioarchive.Occurrence{
			{SpeciesKey: "5", X: "1.5", Y: "2.5", Uncertainty: "10"},
			{SpeciesKey: "7", X: "3", Y: "4", Uncertainty: ""},
		}, res)
	})

	t.Run("missing column", func(t *testing.T) {
		data := "speciesKey\tdecimalLongitude\tdecimalLatitude\n1\t2\t3\n"
		err := ioarchive.ReadOccurrences(strings.NewReader(data),
			func(ioarchive.Occurrence) error { return nil })
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		err := ioarchive.ReadOccurrences(strings.NewReader(""),
			func(ioarchive.Occurrence) error { return nil })
		assert.NoError(t, err)
	})
}
