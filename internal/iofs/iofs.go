// Package iofs prepares the file system layout of bioclim: config, cache
// and log directories and the default configuration file.
package iofs

import (
	_ "embed"
	"os"

	"github.com/gnames/bioclim/pkg/config"
	"gopkg.in/yaml.v3"
)

// ConfigYAML is the template of config.yaml written on the first run.
//
//go:embed config.yaml
var ConfigYAML string

// EnsureDirs creates config, cache and log directories under homeDir.
func EnsureDirs(homeDir string) error {
	dirs := []string{
		config.ConfigDir(homeDir),
		config.CacheDir(homeDir),
		config.LogDir(homeDir),
	}
	for _, v := range dirs {
		if err := touchDir(v); err != nil {
			return err
		}
	}
	return nil
}

func touchDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return CreateDirError(dir, err)
	}

	return nil
}

// EnsureConfigFile writes the config template unless config.yaml exists.
func EnsureConfigFile(homeDir string) error {
	configPath := config.ConfigFilePath(homeDir)

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	if err := os.WriteFile(configPath, []byte(ConfigYAML), 0644); err != nil {
		return CopyFileError(configPath, err)
	}

	return nil
}

// DecodeConfig reads YAML settings on top of the defaults. Keys absent
// from data keep their default values.
func DecodeConfig(data []byte) (*config.Config, error) {
	cfg := config.New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, DecodeConfigError(err)
	}
	return cfg, nil
}

// EncodeConfig renders persistent settings as YAML. Credentials are
// masked.
func EncodeConfig(cfg *config.Config) ([]byte, error) {
	res := *cfg
	res.HomeDir = ""
	res.Pipeline.Rebuild = nil
	res.GBIF.Password = mask(res.GBIF.Password)
	res.Entrez.APIKey = mask(res.Entrez.APIKey)
	res.Export.PostgresDSN = mask(res.Export.PostgresDSN)
	return yaml.Marshal(&res)
}

func mask(s string) string {
	if s == "" {
		return s
	}
	return "*****"
}
