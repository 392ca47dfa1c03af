// Package iotesting provides shared test utilities.
// This is an internal package for test infrastructure only.
package iotesting

import (
	"math"
	"os"
	"testing"

	"github.com/gnames/bioclim/pkg/climate"
)

const (
	// TestTable is the table name used by integration tests.
	// This ensures tests never accidentally replace production tables.
	TestTable = "bioclim_test"

	// DSNEnv names the environment variable with a PostgreSQL connection
	// string for integration tests.
	DSNEnv = "BIOCLIM_TEST_POSTGRES_DSN"
)

// PostgresDSN returns the connection string of the test database. It
// skips the test in short mode or when DSNEnv is not set.
//
// Usage in integration tests:
//
//	func TestSomething(t *testing.T) {
//	    dsn := iotesting.PostgresDSN(t)
//	    // ... use dsn for database operations
//	}
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("Skipping integration test, %s is not set", DSNEnv)
	}
	return dsn
}

// JoinedRows returns two rows of the final table with two bands. The
// second band of the second row is missing.
func JoinedRows() []climate.Row {
	return []climate.Row{
		{
			UID: "1002",
			Taxon: climate.Taxon{
				TaxID:      "3702",
				SpeciesKey: "3052436",
				Phylum:     "Tracheophyta",
				Order:      "Brassicales",
				Family:     "Brassicaceae",
				Genus:      "Arabidopsis",
				Species:    "Arabidopsis thaliana",
			},
			Values: []float64{9.125, 412.5},
		},
		{
			UID: "1001",
			Taxon: climate.Taxon{
				TaxID:      "4081",
				SpeciesKey: "2930137",
				Phylum:     "Tracheophyta",
				Order:      "Solanales",
				Family:     "Solanaceae",
				Genus:      "Solanum",
				Species:    "Solanum lycopersicum",
			},
			Values: []float64{21.3, math.NaN()},
		},
	}
}
