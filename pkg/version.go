// Package bioclim keeps version information of the application.
package bioclim

var (
	// Version of bioclim, set by build flags.
	Version = "v0.1.0"

	// Build is the build timestamp, set by build flags.
	Build = "n/a"
)
