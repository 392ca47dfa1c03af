package config

import (
	"path/filepath"
)

const (
	// MaxChunkSize is the largest number of species keys GBIF accepts in
	// one occurrence download request.
	MaxChunkSize = 300

	// MaxEntrezPageSize is the ESummary retmax limit for JSON output.
	MaxEntrezPageSize = 500
)

var (
	// AppName is used in generating file system paths.
	AppName = "bioclim"
)

// ConfigDir returns the directory path for configuration files.
// Returns ~/.config/bioclim by default.
func ConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config", AppName)
}

// CacheDir returns the directory path for cache files.
// Returns ~/.cache/bioclim by default.
func CacheDir(homeDir string) string {
	return filepath.Join(homeDir, ".cache", AppName)
}

// LogDir returns the directory path for log files.
// Returns ~/.local/share/bioclim/logs by default.
func LogDir(homeDir string) string {
	return filepath.Join(homeDir, ".local", "share", AppName, "logs")
}

// ConfigFilePath returns the full path to the config.yaml file.
// Returns ~/.config/bioclim/config.yaml by default.
func ConfigFilePath(homeDir string) string {
	return filepath.Join(ConfigDir(homeDir), "config.yaml")
}
