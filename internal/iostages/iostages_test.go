package iostages_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/internal/ioexport"
	"github.com/gnames/bioclim/internal/ioraster"
	"github.com/gnames/bioclim/internal/iostages"
	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/bioclim/pkg/geo"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const occurrenceTable = "gbifID\tspeciesKey\tdecimalLatitude\tdecimalLongitude\tcoordinateUncertaintyInMeters\n" +
	"1\t3052436\t0.5\t0.5\t10\n" +
	"2\t3052436\t-1.0\t-1.5\t\n" +
	"3\t2930137\t1.0\t1.5\t100\n" +
	"4\t2930137\t5\t5\t1\n" +
	"5\t3052436\t0.5\t0.5\t10000\n" +
	"6\t9999999\t0.2\t0.2\t1\n"

// fakeAPI serves Entrez, GBIF and download endpoints.
type fakeAPI struct {
	*httptest.Server
	searches atomic.Int32
	polls    atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	res := &fakeAPI{}
	payload := occurrenceZip(t)
	mux := http.NewServeMux()

	mux.HandleFunc("/entrez/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		res.searches.Add(1)
		fmt.Fprint(w, `{"esearchresult":{"count":"3","querykey":"1","webenv":"W1"}}`)
	})
	mux.HandleFunc("/entrez/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("db") {
		case "protein":
			fmt.Fprint(w, `{"result":{"uids":["11","12","13"],
				"11":{"uid":"11","taxid":3702},
				"12":{"uid":"12","taxid":3702},
				"13":{"uid":"13","taxid":4081}}}`)
		case "taxonomy":
			fmt.Fprint(w, `{"result":{"uids":["3702","4081"],
				"3702":{"taxid":3702,"scientificname":"Arabidopsis thaliana"},
				"4081":{"taxid":4081,"scientificname":"Solanum lycopersicum"}}}`)
		default:
			http.Error(w, "unknown db", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/entrez/epost.fcgi", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("id") != "3702,4081" {
			http.Error(w, "unexpected ids", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0" ?>
<ePostResult><QueryKey>1</QueryKey><WebEnv>W2</WebEnv></ePostResult>`)
	})

	mux.HandleFunc("/gbif/species/match", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("name") {
		case "Arabidopsis thaliana":
			fmt.Fprint(w, `{"matchType":"EXACT","rank":"SPECIES","speciesKey":3052436,
				"phylum":"Tracheophyta","order":"Brassicales","family":"Brassicaceae",
				"genus":"Arabidopsis","species":"Arabidopsis thaliana"}`)
		case "Solanum lycopersicum":
			fmt.Fprint(w, `{"matchType":"EXACT","rank":"SPECIES","speciesKey":2930137,
				"phylum":"Tracheophyta","order":"Solanales","family":"Solanaceae",
				"genus":"Solanum","species":"Solanum lycopersicum"}`)
		default:
			fmt.Fprint(w, `{"matchType":"NONE"}`)
		}
	})
	mux.HandleFunc("/gbif/occurrence/download/request", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "0001-job")
	})
	mux.HandleFunc("/gbif/occurrence/download/0001-job", func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		if res.polls.Add(1) > 1 {
			status = "SUCCEEDED"
		}
		fmt.Fprintf(w, `{"key":"0001-job","status":%q,"downloadLink":%q,"doi":"10.15468/dl.test"}`,
			status, res.URL+"/files/0001-job.zip")
	})
	mux.HandleFunc("/files/0001-job.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})

	res.Server = httptest.NewServer(mux)
	t.Cleanup(res.Close)
	return res
}

func occurrenceZip(t *testing.T) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("0001-job.csv")
	require.NoError(t, err)
	_, err = f.Write([]byte(occurrenceTable))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// rasterDir writes two 4x3 bands covering x -2..2, y -1.5..1.5. Band 1
// holds cell indexes, band 2 ten times that with no data at cell 8.
func rasterDir(t *testing.T) string {
	dir := t.TempDir()
	nd := -9999.0
	meta := ioraster.Meta{
		Width:     4,
		Height:    3,
		Count:     1,
		Transform: geo.NorthUp(-2, 1.5, 1, 1),
		NoData:    &nd,
	}
	for band := 1; band <= 2; band++ {
		g := &ioraster.Grid{Meta: meta, Data: make([]float32, 12)}
		for i := range g.Data {
			g.Data[i] = float32(i)
			if band == 2 {
				g.Data[i] *= 10
			}
		}
		if band == 2 {
			g.Data[8] = -9999
		}
		path := filepath.Join(dir, fmt.Sprintf("bio_%d.asc", band))
		require.NoError(t, ioraster.WriteASCII(path, g))
	}
	return dir
}

func testConfig(t *testing.T, api *fakeAPI, user string) *config.Config {
	cfg := config.New()
	cfg.Update([]config.Option{
		config.OptEntrezURL(api.URL + "/entrez/"),
		config.OptGBIFURL(api.URL + "/gbif/"),
		config.OptGBIFUser(user),
		config.OptGBIFPassword("pass"),
		config.OptGBIFPollInterval(time.Millisecond),
		config.OptGBIFPollAttempts(5),
		config.OptGBIFSubmitBackoff(time.Millisecond),
		config.OptGBIFSubmitRetries(1),
		config.OptHTTPMinDelay(time.Millisecond),
		config.OptHTTPBackoffFactor(time.Millisecond),
		config.OptHTTPMaxRetries(1),
		config.OptRasterDir(rasterDir(t)),
		config.OptJobsNumber(2),
	})
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, dir string) *pipeline.Engine {
	store, err := ioartifact.New(dir)
	require.NoError(t, err)
	bld := iostages.New(cfg)
	t.Cleanup(bld.Close)
	eng, err := bld.Engine(store)
	require.NoError(t, err)
	return eng
}

func readRows(t *testing.T, path string) ([]climate.Row, int) {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, bands, err := climate.ReadRows(f)
	require.NoError(t, err)
	return rows, bands
}

func TestRunAll(t *testing.T) {
	api := newFakeAPI(t)
	cfg := testConfig(t, api, "user")
	dir := t.TempDir()
	eng := newEngine(t, cfg, dir)
	ctx := context.Background()

	res, err := eng.Run(ctx, iostages.All)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count(pipeline.Failed))
	assert.Equal(t, int32(2), api.polls.Load(), "DOI read once, link polled until ready")

	rows, bands := readRows(t, filepath.Join(dir, "joined-data.txt"))
	assert.Equal(t, 2, bands)
	require.Len(t, rows, 3)
	assert.Equal(t, "11", rows[0].UID)
	assert.Equal(t, "12", rows[1].UID)
	assert.Equal(t, "13", rows[2].UID)
	assert.Equal(t, "3052436", rows[0].SpeciesKey)
	assert.Equal(t, "Brassicaceae", rows[0].Family)
	assert.Equal(t, []float64{7, 60}, rows[0].Values)
	assert.Equal(t, []float64{3, 30}, rows[2].Values)

	dois, err := ioartifact.ReadLines(filepath.Join(dir, "DOIs.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.15468/dl.test"}, dois)

	filtered, err := os.ReadFile(filepath.Join(dir, "consolidated-filtered-occurrences.txt"))
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(filtered), "\n"))

	samples, err := os.ReadFile(filepath.Join(dir, "occurrences-climate-data.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(samples), "Species Key,BIO1,BIO2\n")
	assert.Contains(t, string(samples), "3052436,8,\n", "no data is an empty field")

	f, err := os.Open(filepath.Join(dir, "aggregated-occurrences.txt"))
	require.NoError(t, err)
	means, _, err := climate.ReadMeans(f)
	f.Close()
	require.NoError(t, err)
	assert.Len(t, means, 3, "species without a match are aggregated")

	// everything is cached now
	res, err = eng.Run(ctx, iostages.All)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count(pipeline.Completed))
	assert.Equal(t, int32(1), api.searches.Load())
}

func TestJoinedExports(t *testing.T) {
	api := newFakeAPI(t)
	cfg := testConfig(t, api, "user")
	cfg.Update([]config.Option{
		config.OptExportPostgresTable("remote_climate"),
		config.OptExportSQLiteTable("local_climate"),
	})
	dir := t.TempDir()
	eng := newEngine(t, cfg, dir)
	ctx := context.Background()

	_, err := eng.Run(ctx, iostages.JoinedParquet, iostages.JoinedSQLite)
	require.NoError(t, err)

	rows, err := ioexport.ReadParquet(filepath.Join(dir, "joined-data.parquet"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Solanum lycopersicum", rows[2].Species)

	db, err := sql.Open("sqlite", filepath.Join(dir, "joined-data.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	var n int
	err = db.QueryRow("SELECT count(*) FROM local_climate").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	bucket := t.TempDir()
	err = iostages.Export(ctx, config.ExportConfig{BucketURL: "file://" + bucket}, eng, "")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(bucket, "joined-data.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(bucket, "DOIs.txt"))
	assert.True(t, os.IsNotExist(err), "only complete artifacts are published")

	err = iostages.Export(ctx, config.ExportConfig{}, eng, "")
	var gnErr *gn.Error
	require.True(t, errors.As(err, &gnErr))
	assert.Equal(t, errcode.ExportNoTargetError, gnErr.Code)
}

func TestRunRejectedDownload(t *testing.T) {
	api := newFakeAPI(t)
	cfg := testConfig(t, api, "intruder")
	dir := t.TempDir()
	eng := newEngine(t, cfg, dir)

	res, err := eng.Run(context.Background(), iostages.All)
	require.Error(t, err)

	states := make(map[string]pipeline.State)
	for _, v := range res.Stages {
		states[v.Name] = v.State
	}
	assert.Equal(t, pipeline.Completed, states[iostages.SpeciesMatches])
	assert.Equal(t, pipeline.Failed, states[iostages.DownloadIDs])
	assert.Equal(t, pipeline.Blocked, states[iostages.DOIs])
	assert.Equal(t, pipeline.Blocked, states[iostages.Joined])
	assert.Equal(t, pipeline.Completed, states[iostages.StackedRaster])

	_, err = os.Stat(filepath.Join(dir, "download-IDs.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestStageNames(t *testing.T) {
	names := iostages.StageNames()
	assert.Equal(t, iostages.Search, names[0])
	assert.Equal(t, iostages.All, names[len(names)-1])
	assert.True(t, iostages.IsStage("joined-parquet"))
	assert.False(t, iostages.IsStage("nope"))
}

func TestRasterMetadata(t *testing.T) {
	cfg := config.New()
	cfg.Update([]config.Option{config.OptRasterDir(rasterDir(t))})
	dir := t.TempDir()
	eng := newEngine(t, cfg, dir)

	_, err := eng.Run(context.Background(), iostages.StackedRaster)
	require.NoError(t, err)

	st, err := ioraster.Open(filepath.Join(dir, "stacked-raster-data.bcs"), 3)
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, 2, st.Count)
	for vals, err := range st.Sample([]geo.Point{{X: -1.5, Y: -1}}, []int{1, 2}) {
		require.NoError(t, err)
		assert.Equal(t, 8.0, vals[0])
		assert.True(t, math.IsNaN(vals[1]))
	}
}
