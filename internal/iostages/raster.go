package iostages

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gnames/bioclim/internal/ioarchive"
	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/internal/ioraster"
	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/bioclim/pkg/geo"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
)

// sampleBatch is the number of locations sampled at once.
const sampleBatch = 10_000

// rasterMetadata uses the file of the lowest band as the template of the
// stack.
func (b *Builder) rasterMetadata(_ context.Context, sio pipeline.StageIO) error {
	bands, err := ioraster.ResolveBands(b.cfg.Raster)
	if err != nil {
		return err
	}
	meta, err := ioraster.ReadMeta(bands[0].File)
	if err != nil {
		return err
	}
	meta.Count = len(bands)
	slog.Info("Raster metadata",
		"template", bands[0].File, "width", meta.Width, "height", meta.Height,
		"bands", meta.Count)
	return writeJSON(sio.Output, meta)
}

func (b *Builder) stackedRaster(_ context.Context, sio pipeline.StageIO) error {
	var meta ioraster.Meta
	if err := readJSON(sio.Input(RasterMetadata), &meta); err != nil {
		return err
	}
	bands, err := ioraster.ResolveBands(b.cfg.Raster)
	if err != nil {
		return err
	}
	return writeFile(sio.Output, func(w io.Writer) error {
		return ioraster.WriteStack(w, meta, bands)
	})
}

func (b *Builder) filteredOccurrences(ctx context.Context, sio pipeline.StageIO) error {
	var meta ioraster.Meta
	if err := readJSON(sio.Input(RasterMetadata), &meta); err != nil {
		return err
	}
	bounds := meta.Bounds()
	limit := b.cfg.Occurrence.UncertaintyLimit

	var total, kept int64
	err := writeFile(sio.Output, func(w io.Writer) error {
		lw := climate.NewLocationWriter(w)
		err := ioarchive.Entries(sio.Input(Occurrences), func(name string, r io.Reader) error {
			slog.Info("Filtering occurrences", "file", name)
			return ioarchive.ReadOccurrences(r, func(o ioarchive.Occurrence) error {
				total++
				if total%100_000 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				p, ok := geo.Validate(o.Uncertainty, o.X, o.Y, limit, bounds)
				if !ok {
					return nil
				}
				kept++
				return lw.Write(climate.Location{SpeciesKey: o.SpeciesKey, X: p.X, Y: p.Y})
			})
		})
		if err != nil {
			return err
		}
		return lw.Flush()
	})
	if err != nil {
		return err
	}

	gn.Info("Kept <em>%s</em> of %s occurrences",
		humanize.Comma(kept), humanize.Comma(total))
	return nil
}

func (b *Builder) climateSamples(ctx context.Context, sio pipeline.StageIO) error {
	st, err := ioraster.Open(sio.Input(StackedRaster), b.cfg.Raster.Precision)
	if err != nil {
		return err
	}
	defer st.Close()

	indexes := make([]int, st.Count)
	for i := range indexes {
		indexes[i] = i + 1
	}

	in, err := os.Open(sio.Input(FilteredOccurrences))
	if err != nil {
		return ioartifact.ReadError(sio.Input(FilteredOccurrences), err)
	}
	defer in.Close()

	var count int64
	err = writeFile(sio.Output, func(w io.Writer) error {
		sw, err := climate.NewSampleWriter(w, st.Count)
		if err != nil {
			return err
		}

		batch := make([]climate.Location, 0, sampleBatch)
		flush := func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			points := make([]geo.Point, len(batch))
			for i, l := range batch {
				points[i] = geo.Point{X: l.X, Y: l.Y}
			}
			var i int
			for vals, err := range st.Sample(points, indexes) {
				if err != nil {
					return err
				}
				if err = sw.Write(batch[i].SpeciesKey, vals); err != nil {
					return err
				}
				i++
			}
			count += int64(len(batch))
			batch = batch[:0]
			return nil
		}

		err = climate.ReadLocations(in, func(l climate.Location) error {
			batch = append(batch, l)
			if len(batch) == sampleBatch {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err = flush(); err != nil {
			return err
		}
		return sw.Flush()
	})
	if err != nil {
		return err
	}

	gn.Info("Sampled <em>%d</em> bands at %s occurrences",
		st.Count, humanize.Comma(count))
	return nil
}
