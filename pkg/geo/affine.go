package geo

import "math"

// Affine maps pixel coordinates (col, row) to raster coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// NorthUp creates a transform without rotation for a grid whose upper
// left corner is at (xmin, ymax).
func NorthUp(xmin, ymax, cellX, cellY float64) Affine {
	return Affine{A: cellX, C: xmin, E: -cellY, F: ymax}
}

// Apply converts pixel coordinates to raster coordinates.
func (a Affine) Apply(col, row float64) (float64, float64) {
	return a.A*col + a.B*row + a.C, a.D*col + a.E*row + a.F
}

// Invert converts raster coordinates to fractional pixel coordinates.
// The second value is false for a degenerate transform.
func (a Affine) Invert(x, y float64) (col, row float64, ok bool) {
	det := a.A*a.E - a.B*a.D
	if det == 0 || math.IsNaN(det) {
		return 0, 0, false
	}
	dx, dy := x-a.C, y-a.F
	col = (a.E*dx - a.B*dy) / det
	row = (a.A*dy - a.D*dx) / det
	return col, row, true
}

// BoundsOf returns the extent of a grid of width columns and height rows.
func BoundsOf(a Affine, width, height int) Bounds {
	w, h := float64(width), float64(height)
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := a.Apply(c[0], c[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return Bounds{
		XMin: minOf(xs), XMax: maxOf(xs),
		YMin: minOf(ys), YMax: maxOf(ys),
	}
}

func minOf(vs []float64) float64 {
	res := vs[0]
	for _, v := range vs[1:] {
		res = math.Min(res, v)
	}
	return res
}

func maxOf(vs []float64) float64 {
	res := vs[0]
	for _, v := range vs[1:] {
		res = math.Max(res, v)
	}
	return res
}
