package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gnames/gn"
)

// Update applies a slice of Option functions to the Config.
// This is the only way to modify a Config after creation.
// Invalid options are rejected with warnings - config remains in valid state.
func (c *Config) Update(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// ToOptions converts the Config to a slice of Option functions.
// Only includes persistent fields appropriate for config.yaml.
// Excludes runtime-only fields (HomeDir, Pipeline.Rebuild).
// Used for round-tripping config.yaml ↔ Config conversions.
func (c *Config) ToOptions() []Option {
	var res []Option
	var s string
	var i int
	var d time.Duration

	s = c.Entrez.URL
	if s != "" {
		res = append(res, OptEntrezURL(s))
	}
	s = c.Entrez.DB
	if s != "" {
		res = append(res, OptEntrezDB(s))
	}
	s = c.Entrez.SearchTerm
	if s != "" {
		res = append(res, OptEntrezSearchTerm(s))
	}
	s = c.Entrez.APIKey
	if s != "" {
		res = append(res, OptEntrezAPIKey(s))
	}
	i = c.Entrez.PageSize
	if i > 0 {
		res = append(res, OptEntrezPageSize(i))
	}

	s = c.GBIF.URL
	if s != "" {
		res = append(res, OptGBIFURL(s))
	}
	s = c.GBIF.User
	if s != "" {
		res = append(res, OptGBIFUser(s))
	}
	s = c.GBIF.Password
	if s != "" {
		res = append(res, OptGBIFPassword(s))
	}
	s = c.GBIF.Kingdom
	if s != "" {
		res = append(res, OptGBIFKingdom(s))
	}
	res = append(res, OptGBIFStrict(c.GBIF.Strict))
	i = c.GBIF.ChunkSize
	if i > 0 {
		res = append(res, OptGBIFChunkSize(i))
	}
	d = c.GBIF.PollInterval
	if d > 0 {
		res = append(res, OptGBIFPollInterval(d))
	}
	i = c.GBIF.PollAttempts
	if i > 0 {
		res = append(res, OptGBIFPollAttempts(i))
	}
	d = c.GBIF.SubmitBackoff
	if d > 0 {
		res = append(res, OptGBIFSubmitBackoff(d))
	}
	i = c.GBIF.SubmitRetries
	if i > 0 {
		res = append(res, OptGBIFSubmitRetries(i))
	}
	res = append(res, OptGBIFUseCanonical(c.GBIF.UseCanonical))

	d = c.HTTP.Timeout
	if d > 0 {
		res = append(res, OptHTTPTimeout(d))
	}
	d = c.HTTP.DownloadTimeout
	if d > 0 {
		res = append(res, OptHTTPDownloadTimeout(d))
	}
	d = c.HTTP.MinDelay
	if d > 0 {
		res = append(res, OptHTTPMinDelay(d))
	}
	d = c.HTTP.BackoffFactor
	if d > 0 {
		res = append(res, OptHTTPBackoffFactor(d))
	}
	d = c.HTTP.MaxInterval
	if d > 0 {
		res = append(res, OptHTTPMaxInterval(d))
	}
	i = c.HTTP.MaxRetries
	if i > 0 {
		res = append(res, OptHTTPMaxRetries(i))
	}
	if len(c.HTTP.RetryStatus) > 0 {
		res = append(res, OptHTTPRetryStatus(c.HTTP.RetryStatus))
	}

	s = c.Raster.Dir
	if s != "" {
		res = append(res, OptRasterDir(s))
	}
	if len(c.Raster.Bands) > 0 {
		res = append(res, OptRasterBands(c.Raster.Bands))
	}
	i = c.Raster.Precision
	if i > 0 {
		res = append(res, OptRasterPrecision(i))
	}

	if c.Occurrence.UncertaintyLimit > 0 {
		res = append(res,
			OptOccurrenceUncertaintyLimit(c.Occurrence.UncertaintyLimit))
	}

	s = c.Pipeline.DataDir
	if s != "" {
		res = append(res, OptPipelineDataDir(s))
	}

	s = c.Export.PostgresDSN
	if s != "" {
		res = append(res, OptExportPostgresDSN(s))
	}
	s = c.Export.PostgresTable
	if s != "" {
		res = append(res, OptExportPostgresTable(s))
	}
	s = c.Export.SQLiteTable
	if s != "" {
		res = append(res, OptExportSQLiteTable(s))
	}
	s = c.Export.BucketURL
	if s != "" {
		res = append(res, OptExportBucketURL(s))
	}

	s = c.Log.Format
	if s != "" {
		res = append(res, OptLogFormat(s))
	}
	s = c.Log.Level
	if s != "" {
		res = append(res, OptLogLevel(s))
	}
	s = c.Log.Destination
	if s != "" {
		res = append(res, OptLogDestination(s))
	}

	i = c.JobsNumber
	if i > 0 {
		res = append(res, OptJobsNumber(i))
	}
	return res
}

func isValidString(name, s string) bool {
	res := s != ""
	if !res {
		gn.Warn("<em>%s</em> cannot be empty, ignoring", name)
	}
	return res
}

func isValidInt(name string, i int) bool {
	res := i > 0
	if !res {
		gn.Warn("<em>%s</em> has to be positive number, ignoring %d", name, i)
	}
	return res
}

func isValidIntRange(name string, i, lo, hi int) bool {
	res := i >= lo && i <= hi
	if !res {
		gn.Warn(
			"<em>%s</em> has to be between %d and %d, ignoring %d",
			name, lo, hi, i,
		)
	}
	return res
}

func isValidDuration(name string, d time.Duration) bool {
	res := d > 0
	if !res {
		gn.Warn("<em>%s</em> has to be a positive duration, ignoring %s", name, d)
	}
	return res
}

func isValidURL(name, s string) bool {
	u, err := url.Parse(s)
	res := err == nil && (u.Scheme == "http" || u.Scheme == "https") &&
		u.Host != ""
	if !res {
		gn.Warn("<em>%s</em> is not a valid http(s) URL, ignoring '%s'", name, s)
	}
	return res
}

func isValidBands(bb []BandSource) bool {
	seen := make(map[int]struct{}, len(bb))
	for _, b := range bb {
		if b.Band < 1 || strings.TrimSpace(b.File) == "" {
			gn.Warn(
				"<em>Raster Bands</em> entry %d -> '%s' is invalid, ignoring bands",
				b.Band, b.File,
			)
			return false
		}
		if _, ok := seen[b.Band]; ok {
			gn.Warn("<em>Raster Bands</em> band %d is repeated, ignoring bands", b.Band)
			return false
		}
		seen[b.Band] = struct{}{}
	}
	return true
}

func isValidEnum(name, val string) bool {
	s := struct{}{}
	data := map[string]map[string]struct{}{
		"Log.Level":       {"debug": s, "info": s, "warn": s, "error": s},
		"Log.Format":      {"json": s, "text": s, "tint": s},
		"Log.Destination": {"file": s, "stderr": s, "stdout": s},
	}
	vals := slices.Sorted(maps.Keys(data[name]))
	var lines []string
	for _, v := range vals {
		line := fmt.Sprintf("  * %s", v)
		lines = append(lines, line)
	}
	if _, ok := data[name][val]; ok {
		return true
	}
	gn.Warn(
		"<em>%s</em> does not support '%s' as a value. "+
			"Valid values are: \n%s\nIgnoring...",
		name, val, strings.Join(lines, "\n"),
	)
	return false
}
