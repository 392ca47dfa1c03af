/*
Copyright © 2025 Dmitry Mozzherin <dmozzherin@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gnames/bioclim/internal/iofs"
	"github.com/gnames/bioclim/internal/iologger"
	app "github.com/gnames/bioclim/pkg"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/gn"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	homeDir string
	opts    []config.Option
	cfg     *config.Config
	runID   string
)

// getRootCmd returns the root command with all subcommands attached.
func getRootCmd() *cobra.Command {
	var dataDir string

	rootCmd := &cobra.Command{
		Version: fmt.Sprintf("version: %s\nbuild:   %s", app.Version, app.Build),
		Use:     "bioclim",
		Short:   "Bioclimatic profiles of species found in NCBI Entrez",
		Long: `bioclim searches NCBI Entrez, matches taxa of found records to GBIF
species, downloads their occurrences and samples bioclimatic rasters at
occurrence points. The result is a table of mean climate values per
species joined to the original Entrez UIDs.

Every step is a pipeline stage that writes one artifact file. A stage
runs only if its artifact is missing, so an interrupted run resumes
where it stopped.

Configuration precedence (highest to lowest):
  1. CLI flags
  2. Environment variables (BIOCLIM_*)
  3. Config file (~/.config/bioclim/config.yaml)
  4. Built-in defaults

Environment Variables:
  Nested fields use underscores (gbif.user → BIOCLIM_GBIF_USER).

  Examples:
    BIOCLIM_ENTREZ_API_KEY        NCBI API key
    BIOCLIM_GBIF_USER             GBIF account
    BIOCLIM_GBIF_PASSWORD         GBIF password
    BIOCLIM_PIPELINE_DATA_DIR     Artifacts directory
    BIOCLIM_EXPORT_POSTGRES_DSN   PostgreSQL connection string`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := bootstrap(cmd, dataDir)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Remove the automatic "bioclim version" prefix
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Override version flag to use -V (consistent with other gn projects)
	rootCmd.Flags().BoolP("version", "V", false, "version for bioclim")

	rootCmd.PersistentFlags().StringVarP(
		&dataDir, "data-dir", "d", "",
		"directory with stage artifacts",
	)

	rootCmd.AddCommand(
		getRunCmd(),
		getStagesCmd(),
		getExportCmd(),
		getConfigCmd(),
	)

	return rootCmd
}

func bootstrap(cmd *cobra.Command, dataDir string) error {
	var err error
	homeDir, err = os.UserHomeDir()
	if err != nil {
		return err
	}

	if err = iofs.EnsureDirs(homeDir); err != nil {
		return err
	}

	runID = uuid.NewString()

	// Initialize logging with hardcoded defaults
	// Will be reconfigured later with user's config settings
	defaultLog := config.LogConfig{
		Format:      "json",
		Level:       "info",
		Destination: "file",
	}
	logDir := config.LogDir(homeDir)
	if err = iologger.Init(logDir, defaultLog, true, runID); err != nil {
		return err
	}

	if err = iofs.EnsureConfigFile(homeDir); err != nil {
		return err
	}

	var cfgViper *config.Config
	if cfgViper, err = initConfig(homeDir); err != nil {
		return err
	}

	cfg = config.New()
	opts = cfgViper.ToOptions()
	cfg.Update(opts)

	// Set HomeDir after config is loaded
	cfg.Update([]config.Option{config.OptHomeDir(homeDir)})

	if cmd.Flags().Changed("data-dir") {
		cfg.Update([]config.Option{config.OptPipelineDataDir(dataDir)})
	}

	// Reconfigure logging with user's settings
	if err = iologger.Init(logDir, cfg.Log, true, runID); err != nil {
		return err
	}

	slog.Info("Configuration loaded",
		"config_file", config.ConfigFilePath(homeDir),
		"command", cmd.Name(),
	)

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It exits with a non-zero status on error.
func Execute() {
	err := getRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig(home string) (*config.Config, error) {
	var err error
	cfgPath := config.ConfigFilePath(home)
	v := viper.New()
	v.SetConfigFile(cfgPath)

	initEnvVars(v)

	if err = v.ReadInConfig(); err != nil {
		return nil, ReadConfigError(cfgPath, err)
	}

	var res config.Config
	if err = v.Unmarshal(&res); err != nil {
		return nil, ReadConfigError(cfgPath, err)
	}

	return &res, nil
}

func initEnvVars(v *viper.Viper) {
	// Set environment variables we want.
	// We set them manually so we can see clearly which env variables are allowed.
	// These match the fields included in config.ToOptions() - i.e., persistent
	// configuration that can be stored in config.yaml.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// explicit names are not prefixed by viper
	for _, key := range envKeys {
		v.BindEnv(key, envName(key))
	}

	v.AutomaticEnv()
}

const envPrefix = "BIOCLIM"

// envName converts a configuration key to its environment variable,
// "gbif.user" becomes BIOCLIM_GBIF_USER.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// envKeys lists configuration keys that can be set by BIOCLIM_ variables.
var envKeys = []string{
	// Entrez configuration
	"entrez.url",
	"entrez.db",
	"entrez.search_term",
	"entrez.api_key",
	"entrez.page_size",

	// GBIF configuration
	"gbif.url",
	"gbif.user",
	"gbif.password",
	"gbif.kingdom",
	"gbif.strict",
	"gbif.chunk_size",
	"gbif.poll_interval",
	"gbif.poll_attempts",
	"gbif.submit_backoff",
	"gbif.submit_retries",
	"gbif.use_canonical",

	// HTTP configuration
	"http.timeout",
	"http.download_timeout",
	"http.min_delay",
	"http.backoff_factor",
	"http.max_interval",
	"http.max_retries",
	"http.retry_status",

	// Raster configuration
	"raster.dir",
	"raster.precision",

	"occurrence.uncertainty_limit",
	"pipeline.data_dir",

	// Export configuration
	"export.postgres_dsn",
	"export.postgres_table",
	"export.sqlite_table",
	"export.bucket_url",

	// Log configuration
	"log.level",
	"log.format",
	"log.destination",

	// General configuration
	"jobs_number",
}
