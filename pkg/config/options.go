package config

import (
	"strings"
	"time"
)

// Option is a function that modifies a Config.
// Options validate inputs and reject invalid values with warnings.
type Option func(*Config)

// OptEntrezURL sets the base URL of NCBI E-utilities.
func OptEntrezURL(s string) Option {
	s = normalizeURL(s)
	return func(c *Config) {
		if isValidURL("Entrez URL", s) {
			c.Entrez.URL = s
		}
	}
}

// OptEntrezDB sets the Entrez database used by the search stage.
func OptEntrezDB(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Entrez DB", s) {
			c.Entrez.DB = s
		}
	}
}

// OptEntrezSearchTerm sets the Entrez query.
func OptEntrezSearchTerm(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Entrez Search Term", s) {
			c.Entrez.SearchTerm = s
		}
	}
}

// OptEntrezAPIKey sets the NCBI API key.
func OptEntrezAPIKey(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Entrez API Key", s) {
			c.Entrez.APIKey = s
		}
	}
}

// OptEntrezPageSize sets ESummary page size (retmax).
// Values above 500 are rejected, the JSON API does not allow them.
func OptEntrezPageSize(i int) Option {
	return func(c *Config) {
		if isValidIntRange("Entrez Page Size", i, 1, MaxEntrezPageSize) {
			c.Entrez.PageSize = i
		}
	}
}

// OptGBIFURL sets the base URL of the GBIF API.
func OptGBIFURL(s string) Option {
	s = normalizeURL(s)
	return func(c *Config) {
		if isValidURL("GBIF URL", s) {
			c.GBIF.URL = s
		}
	}
}

// OptGBIFUser sets the GBIF account name.
func OptGBIFUser(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("GBIF User", s) {
			c.GBIF.User = s
		}
	}
}

// OptGBIFPassword sets the GBIF account password.
func OptGBIFPassword(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("GBIF Password", s) {
			c.GBIF.Password = s
		}
	}
}

// OptGBIFKingdom sets the kingdom used to narrow species matching.
func OptGBIFKingdom(s string) Option {
	s = strings.ToLower(strings.TrimSpace(s))
	return func(c *Config) {
		if isValidString("GBIF Kingdom", s) {
			c.GBIF.Kingdom = s
		}
	}
}

// OptGBIFStrict toggles strict species matching.
func OptGBIFStrict(b bool) Option {
	return func(c *Config) {
		c.GBIF.Strict = b
	}
}

// OptGBIFChunkSize sets the number of species keys per download request.
func OptGBIFChunkSize(i int) Option {
	return func(c *Config) {
		if isValidIntRange("GBIF Chunk Size", i, 1, MaxChunkSize) {
			c.GBIF.ChunkSize = i
		}
	}
}

// OptGBIFPollInterval sets the pause between download status checks.
func OptGBIFPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("GBIF Poll Interval", d) {
			c.GBIF.PollInterval = d
		}
	}
}

// OptGBIFPollAttempts sets the number of status checks per job.
func OptGBIFPollAttempts(i int) Option {
	return func(c *Config) {
		if isValidInt("GBIF Poll Attempts", i) {
			c.GBIF.PollAttempts = i
		}
	}
}

// OptGBIFSubmitBackoff sets the first retry pause of download requests.
func OptGBIFSubmitBackoff(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("GBIF Submit Backoff", d) {
			c.GBIF.SubmitBackoff = d
		}
	}
}

// OptGBIFSubmitRetries sets the number of retries of a download request.
func OptGBIFSubmitRetries(i int) Option {
	return func(c *Config) {
		if isValidInt("GBIF Submit Retries", i) {
			c.GBIF.SubmitRetries = i
		}
	}
}

// OptGBIFUseCanonical toggles canonical-name matching.
func OptGBIFUseCanonical(b bool) Option {
	return func(c *Config) {
		c.GBIF.UseCanonical = b
	}
}

// OptHTTPTimeout sets the timeout of one API request attempt.
func OptHTTPTimeout(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("HTTP Timeout", d) {
			c.HTTP.Timeout = d
		}
	}
}

// OptHTTPDownloadTimeout sets the timeout of one archive download.
func OptHTTPDownloadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("HTTP Download Timeout", d) {
			c.HTTP.DownloadTimeout = d
		}
	}
}

// OptHTTPMinDelay sets the minimal pause between requests.
// Zero disables rate limiting.
func OptHTTPMinDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.HTTP.MinDelay = d
		}
	}
}

// OptHTTPBackoffFactor sets the first retry pause.
func OptHTTPBackoffFactor(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("HTTP Backoff Factor", d) {
			c.HTTP.BackoffFactor = d
		}
	}
}

// OptHTTPMaxInterval caps retry pauses.
func OptHTTPMaxInterval(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("HTTP Max Interval", d) {
			c.HTTP.MaxInterval = d
		}
	}
}

// OptHTTPMaxRetries sets the number of retries. Zero disables retries.
func OptHTTPMaxRetries(i int) Option {
	return func(c *Config) {
		if i >= 0 {
			c.HTTP.MaxRetries = i
		}
	}
}

// OptHTTPRetryStatus sets HTTP statuses that are retried.
func OptHTTPRetryStatus(ii []int) Option {
	return func(c *Config) {
		for _, i := range ii {
			if !isValidIntRange("HTTP Retry Status", i, 100, 599) {
				return
			}
		}
		if len(ii) > 0 {
			c.HTTP.RetryStatus = ii
		}
	}
}

// OptRasterDir sets the directory of bioclimatic rasters.
func OptRasterDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Raster Dir", s) {
			c.Raster.Dir = s
		}
	}
}

// OptRasterBands sets an explicit band to file mapping.
// Mappings with duplicate or non-positive bands are rejected.
func OptRasterBands(bb []BandSource) Option {
	return func(c *Config) {
		if isValidBands(bb) {
			c.Raster.Bands = bb
		}
	}
}

// OptRasterPrecision sets the number of decimal digits kept in values.
func OptRasterPrecision(i int) Option {
	return func(c *Config) {
		if isValidIntRange("Raster Precision", i, 0, 15) {
			c.Raster.Precision = i
		}
	}
}

// OptOccurrenceUncertaintyLimit sets the largest accepted coordinate
// uncertainty in meters.
func OptOccurrenceUncertaintyLimit(f float64) Option {
	return func(c *Config) {
		if f >= 0 {
			c.Occurrence.UncertaintyLimit = f
		}
	}
}

// OptPipelineDataDir sets the directory for artifacts.
func OptPipelineDataDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Pipeline Data Dir", s) {
			c.Pipeline.DataDir = s
		}
	}
}

// OptPipelineRebuild sets stages to rebuild.
// Runtime-only field - not in ToOptions().
func OptPipelineRebuild(ss []string) Option {
	return func(c *Config) {
		if len(ss) > 0 {
			c.Pipeline.Rebuild = ss
		}
	}
}

// OptExportPostgresDSN sets the PostgreSQL connection string.
func OptExportPostgresDSN(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Export Postgres DSN", s) {
			c.Export.PostgresDSN = s
		}
	}
}

// OptExportPostgresTable sets the PostgreSQL table name.
func OptExportPostgresTable(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Export Postgres Table", s) {
			c.Export.PostgresTable = s
		}
	}
}

// OptExportSQLiteTable sets the table name inside the SQLite artifact.
func OptExportSQLiteTable(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Export SQLite Table", s) {
			c.Export.SQLiteTable = s
		}
	}
}

// OptExportBucketURL sets the bucket for published artifacts.
func OptExportBucketURL(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Export Bucket URL", s) {
			c.Export.BucketURL = s
		}
	}
}

// OptLogLevel sets the logging level.
// Valid values: "debug", "info", "warn", "error".
func OptLogLevel(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Level", s) {
			c.Log.Level = s
		}
	}
}

// OptLogFormat sets the log output format.
// Valid values: "json", "text", "tint".
func OptLogFormat(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Format", s) {
			c.Log.Format = s
		}
	}
}

// OptLogDestination sets where logs are written.
// Valid values: "file", "stderr", "stdout".
func OptLogDestination(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Destination", s) {
			c.Log.Destination = s
		}
	}
}

// OptJobsNumber sets the number of concurrent workers.
// Default is runtime.NumCPU().
func OptJobsNumber(i int) Option {
	return func(c *Config) {
		if isValidInt("Jobs Number", i) {
			c.JobsNumber = i
		}
	}
}

// OptHomeDir sets the home directory for config, cache, and log locations.
// Set once at startup from os.UserHomeDir().
// Runtime-only field - not in ToOptions().
func OptHomeDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Home Directory", s) {
			c.HomeDir = s
		}
	}
}

func normalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s
}
