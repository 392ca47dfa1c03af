package ioraster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"

	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/bioclim/pkg/geo"
	"github.com/gnames/gnfmt"
)

// magic starts every stack file. It is followed by the length of a JSON
// header (uint32, little endian), the header with Meta, and Count planes
// of Width*Height float32 little-endian values.
const magic = "BCSTACK1"

// WriteStack writes bands to w as one stack. Every source must have the
// shape of meta; the band count is set to the number of sources. No-data
// values of every source are stored as NaN.
func WriteStack(w io.Writer, meta Meta, bands []config.BandSource) error {
	meta.Count = len(bands)
	enc := gnfmt.GNjson{}
	hdr, err := enc.Encode(meta)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err = bw.WriteString(magic); err != nil {
		return err
	}
	if err = binary.Write(bw, binary.LittleEndian, uint32(len(hdr))); err != nil {
		return err
	}
	if _, err = bw.Write(hdr); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, b := range bands {
		g, err := ReadGrid(b.File)
		if err != nil {
			return err
		}
		if g.Width != meta.Width || g.Height != meta.Height {
			return ShapeError(b.File, g.Width, g.Height, meta.Width, meta.Height)
		}
		if !aligned(g.Transform, meta.Transform) {
			return AlignError(b.File, g.Transform, meta.Transform)
		}
		for _, v := range g.Data {
			if g.IsNoData(v) {
				v = float32(math.NaN())
			}
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err = bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// aligned compares transforms with a tolerance of a millionth of a cell.
func aligned(a, b geo.Affine) bool {
	tol := 1e-6 * max(math.Abs(b.A), math.Abs(b.E), 1e-12)
	pa := []float64{a.A, a.B, a.C, a.D, a.E, a.F}
	pb := []float64{b.A, b.B, b.C, b.D, b.E, b.F}
	for i := range pa {
		if math.Abs(pa[i]-pb[i]) > tol {
			return false
		}
	}
	return true
}

// Stack is an open stack file.
type Stack struct {
	Meta
	f         *os.File
	dataStart int64
	precision int
}

// Open opens a stack file. Sampled values are rounded to precision
// decimal digits.
func Open(path string, precision int) (*Stack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FormatError(path, err)
	}
	st, err := readStackHeader(f, precision)
	if err != nil {
		f.Close()
		return nil, FormatError(path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, FormatError(path, err)
	}
	size := st.dataStart + 4*int64(st.Width)*int64(st.Height)*int64(st.Count)
	if info.Size() != size {
		f.Close()
		return nil, FormatError(path,
			fmt.Errorf("size %d, expected %d", info.Size(), size))
	}
	return st, nil
}

func readStackHeader(f *os.File, precision int) (*Stack, error) {
	head := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, err
	}
	if string(head[:len(magic)]) != magic {
		return nil, errors.New("not a stack file")
	}
	n := binary.LittleEndian.Uint32(head[len(magic):])
	if n > 1<<20 {
		return nil, errors.New("header is too large")
	}
	hdr := make([]byte, n)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return nil, err
	}

	res := &Stack{f: f, precision: precision}
	enc := gnfmt.GNjson{}
	if err := enc.Decode(hdr, &res.Meta); err != nil {
		return nil, err
	}
	if res.Width <= 0 || res.Height <= 0 || res.Count <= 0 {
		return nil, errors.New("bad stack shape")
	}
	res.dataStart = int64(len(head)) + int64(n)
	return res, nil
}

// Close closes the stack file.
func (s *Stack) Close() error {
	return s.f.Close()
}

// Sample yields one vector per point with a value for every requested
// band (1-based). No-data values and points outside the grid are NaN.
func (s *Stack) Sample(points []geo.Point, indexes []int) iter.Seq2[[]float64, error] {
	return func(yield func([]float64, error) bool) {
		for _, idx := range indexes {
			if idx < 1 || idx > s.Count {
				yield(nil, fmt.Errorf("band %d is out of 1..%d", idx, s.Count))
				return
			}
		}

		buf := make([]byte, 4)
		plane := int64(s.Width) * int64(s.Height) * 4
		for _, p := range points {
			res := make([]float64, len(indexes))
			col, row, ok := s.cell(p)
			for i, idx := range indexes {
				if !ok {
					res[i] = math.NaN()
					continue
				}
				off := s.dataStart + int64(idx-1)*plane +
					(int64(row)*int64(s.Width)+int64(col))*4
				if _, err := s.f.ReadAt(buf, off); err != nil {
					yield(nil, err)
					return
				}
				v := math.Float32frombits(binary.LittleEndian.Uint32(buf))
				res[i] = s.clean(v)
			}
			if !yield(res, nil) {
				return
			}
		}
	}
}

func (s *Stack) cell(p geo.Point) (int, int, bool) {
	colF, rowF, ok := s.Transform.Invert(p.X, p.Y)
	if !ok {
		return 0, 0, false
	}
	col, row := int(math.Floor(colF)), int(math.Floor(rowF))
	if col < 0 || row < 0 || col >= s.Width || row >= s.Height {
		return 0, 0, false
	}
	return col, row, true
}

func (s *Stack) clean(v float32) float64 {
	if s.IsNoData(v) {
		return math.NaN()
	}
	return Round(float64(v), s.precision)
}

// Round rounds v to precision decimal digits.
func Round(v float64, precision int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
