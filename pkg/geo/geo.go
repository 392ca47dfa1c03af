// Package geo validates occurrence coordinates against a raster extent.
// This is a pure package.
package geo

import (
	"strconv"
	"strings"
)

// Point is a location in raster coordinates (longitude, latitude for
// geographic rasters).
type Point struct {
	X float64
	Y float64
}

// Bounds is a rectangular extent.
type Bounds struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// Contains reports if p lies strictly inside the bounds. Points on the
// edges are outside.
func (b Bounds) Contains(p Point) bool {
	return b.XMin < p.X && p.X < b.XMax &&
		b.YMin < p.Y && p.Y < b.YMax
}

// Validate parses a coordinate record and keeps it if its uncertainty is
// within limit and the point is strictly inside the bounds. A blank
// uncertainty counts as zero. Records with values that are not numbers
// are rejected.
func Validate(uncertainty, x, y string, limit float64, b Bounds) (Point, bool) {
	var res Point
	u := 0.0
	if s := strings.TrimSpace(uncertainty); s != "" {
		var err error
		if u, err = strconv.ParseFloat(s, 64); err != nil {
			return res, false
		}
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
	if err != nil {
		return res, false
	}
	py, err := strconv.ParseFloat(strings.TrimSpace(y), 64)
	if err != nil {
		return res, false
	}

	res = Point{X: px, Y: py}
	// NaN fails every comparison and is rejected here as well.
	if !(u <= limit) || !b.Contains(res) {
		return res, false
	}
	return res, true
}
