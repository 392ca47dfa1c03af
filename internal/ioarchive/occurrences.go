package ioarchive

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Occurrence holds the raw fields of an occurrence row that are needed
// for filtering. Values are not validated.
type Occurrence struct {
	SpeciesKey  string
	X           string
	Y           string
	Uncertainty string
}

// Column names of the GBIF simple occurrence table.
const (
	ColSpeciesKey  = "speciesKey"
	ColLongitude   = "decimalLongitude"
	ColLatitude    = "decimalLatitude"
	ColUncertainty = "coordinateUncertaintyInMeters"
)

// ReadOccurrences parses a tab-delimited GBIF simple occurrence table.
// Columns are found by their header names. Fields are not quoted. Rows
// with fewer fields than required, or without a species key, are
// skipped.
func ReadOccurrences(r io.Reader, fn func(Occurrence) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256*1024), 64*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return FormatError("occurrence table", err)
		}
		return nil
	}
	cols, err := columns(sc.Text())
	if err != nil {
		return err
	}
	last := max(cols[0], cols[1], cols[2], cols[3])

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= last {
			continue
		}
		occ := Occurrence{
			SpeciesKey:  strings.TrimSpace(fields[cols[0]]),
			X:           fields[cols[1]],
			Y:           fields[cols[2]],
			Uncertainty: fields[cols[3]],
		}
		if occ.SpeciesKey == "" {
			continue
		}
		if err = fn(occ); err != nil {
			return err
		}
	}
	if err = sc.Err(); err != nil {
		return FormatError("occurrence table", err)
	}
	return nil
}

func columns(header string) ([4]int, error) {
	var res [4]int
	idx := make(map[string]int)
	for i, v := range strings.Split(strings.TrimRight(header, "\r"), "\t") {
		idx[strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))] = i
	}
	names := []string{ColSpeciesKey, ColLongitude, ColLatitude, ColUncertainty}
	for i, n := range names {
		j, ok := idx[n]
		if !ok {
			return res, FormatError("occurrence table",
				fmt.Errorf("no %s column", n))
		}
		res[i] = j
	}
	return res, nil
}
