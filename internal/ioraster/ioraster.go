// Package ioraster reads single-band ESRI ASCII grids, stacks them into
// one multi-band file, and samples the stack at points.
package ioraster

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gnames/bioclim/pkg/geo"
)

// Meta describes the grid shared by all bands.
type Meta struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Count     int        `json:"count"`
	Transform geo.Affine `json:"transform"`
	NoData    *float64   `json:"nodata,omitempty"`
}

// Bounds returns the extent of the grid.
func (m Meta) Bounds() geo.Bounds {
	return geo.BoundsOf(m.Transform, m.Width, m.Height)
}

// IsNoData reports if v is the no-data value of the grid. Values are
// compared as stored, in float32.
func (m Meta) IsNoData(v float32) bool {
	if math.IsNaN(float64(v)) {
		return true
	}
	return m.NoData != nil && v == float32(*m.NoData)
}

// Grid is a single band held in memory, row by row from the top.
type Grid struct {
	Meta
	Data []float32
}

// ReadMeta reads the header of an ASCII grid.
func ReadMeta(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, FormatError(path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	m, _, err := readHeader(sc)
	if err != nil {
		return m, FormatError(path, err)
	}
	return m, nil
}

// ReadGrid reads an ASCII grid.
func ReadGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FormatError(path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	m, first, err := readHeader(sc)
	if err != nil {
		return nil, FormatError(path, err)
	}

	n := m.Width * m.Height
	res := &Grid{Meta: m, Data: make([]float32, 0, n)}
	word := first
	for {
		if word != "" {
			v, err := strconv.ParseFloat(word, 32)
			if err != nil {
				return nil, FormatError(path, err)
			}
			res.Data = append(res.Data, float32(v))
		}
		if !sc.Scan() {
			break
		}
		word = sc.Text()
	}
	if err = sc.Err(); err != nil {
		return nil, FormatError(path, err)
	}
	if len(res.Data) != n {
		return nil, FormatError(path,
			fmt.Errorf("%d values for a %dx%d grid", len(res.Data), m.Width, m.Height))
	}
	return res, nil
}

// readHeader reads header lines and returns the first value word.
func readHeader(sc *bufio.Scanner) (Meta, string, error) {
	var res Meta
	vals := make(map[string]float64)
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return res, "", fmt.Errorf("no value for %s", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return res, "", fmt.Errorf("bad value for %s: %w", key, err)
		}
		vals[key] = v
	}
	if err := sc.Err(); err != nil {
		return res, "", err
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := vals[k]; !ok {
			return res, "", fmt.Errorf("no %s in header", k)
		}
	}
	cell := vals["cellsize"]
	res.Width = int(vals["ncols"])
	res.Height = int(vals["nrows"])
	res.Count = 1
	if res.Width <= 0 || res.Height <= 0 || cell <= 0 {
		return res, "", fmt.Errorf("bad grid size")
	}

	var xll, yll float64
	switch {
	case has(vals, "xllcorner") && has(vals, "yllcorner"):
		xll, yll = vals["xllcorner"], vals["yllcorner"]
	case has(vals, "xllcenter") && has(vals, "yllcenter"):
		xll, yll = vals["xllcenter"]-cell/2, vals["yllcenter"]-cell/2
	default:
		return res, "", fmt.Errorf("no lower left corner in header")
	}
	res.Transform = geo.NorthUp(xll, yll+cell*float64(res.Height), cell, cell)

	if nd, ok := vals["nodata_value"]; ok {
		res.NoData = &nd
	}
	return res, first, nil
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// WriteASCII writes a grid in ESRI ASCII format. The transform must be
// north-up with square cells.
func WriteASCII(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return FormatError(path, err)
	}
	w := bufio.NewWriter(f)

	b := g.Bounds()
	fmt.Fprintf(w, "ncols %d\nnrows %d\n", g.Width, g.Height)
	fmt.Fprintf(w, "xllcorner %v\nyllcorner %v\n", b.XMin, b.YMin)
	fmt.Fprintf(w, "cellsize %v\n", g.Transform.A)
	if g.NoData != nil {
		fmt.Fprintf(w, "NODATA_value %v\n", *g.NoData)
	}
	for row := range g.Height {
		for col := range g.Width {
			if col > 0 {
				w.WriteByte(' ')
			}
			v := g.Data[row*g.Width+col]
			w.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		w.WriteByte('\n')
	}

	if err = w.Flush(); err != nil {
		f.Close()
		return FormatError(path, err)
	}
	if err = f.Close(); err != nil {
		return FormatError(path, err)
	}
	return nil
}
