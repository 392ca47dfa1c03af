package ioraster

import (
	"fmt"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/bioclim/pkg/geo"
	"github.com/gnames/gn"
)

// BandMapError is returned when raster files cannot be mapped to bands.
func BandMapError(dir string, err error) error {
	msg := `Cannot map raster files in <em>%s</em> to bands

<em>How to fix:</em>
  List band files in <em>raster.bands</em> of the config file`
	vars := []any{dir}
	return &gn.Error{
		Code: errcode.RasterBandMapError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("band map of %s: %w", dir, err),
	}
}

// FormatError is returned for a file that is not a valid grid or stack.
func FormatError(path string, err error) error {
	msg := `Cannot read raster <em>%s</em>`
	vars := []any{path}
	return &gn.Error{
		Code: errcode.RasterFormatError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("raster %s: %w", path, err),
	}
}

// ShapeError is returned when a band does not match the template grid.
func ShapeError(path string, w, h, tw, th int) error {
	msg := `Raster <em>%s</em> is %dx%d, expected %dx%d`
	vars := []any{path, w, h, tw, th}
	return &gn.Error{
		Code: errcode.RasterShapeError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("raster %s is %dx%d, expected %dx%d",
			path, w, h, tw, th),
	}
}

// AlignError is returned when a band has the shape of the template grid
// but a different origin or cell size.
func AlignError(path string, got, want geo.Affine) error {
	msg := `Raster <em>%s</em> is not aligned with the first band

<em>How to fix:</em>
  Resample bands to the same origin and cell size`
	vars := []any{path}
	return &gn.Error{
		Code: errcode.RasterAlignError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("raster %s transform %+v, expected %+v",
			path, got, want),
	}
}
