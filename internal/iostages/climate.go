package iostages

import (
	"context"
	"io"
	"log/slog"

	"github.com/gnames/bioclim/internal/ioexport"
	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
)

func (b *Builder) aggregated(_ context.Context, sio pipeline.StageIO) error {
	var agg *climate.Aggregator
	var bands int
	err := readFile(sio.Input(ClimateSamples), func(r io.Reader) error {
		var err error
		bands, err = climate.ReadSamples(r, func(s climate.Sample) error {
			if agg == nil {
				agg = climate.NewAggregator(len(s.Values))
			}
			agg.Add(s)
			return nil
		})
		return err
	})
	if err != nil {
		return err
	}

	var means []climate.SpeciesMean
	if agg != nil {
		means = agg.Means(b.cfg.Raster.Precision)
	}
	slog.Info("Aggregated climate samples", "species", len(means))
	return writeFile(sio.Output, func(w io.Writer) error {
		return climate.WriteMeans(w, means, bands)
	})
}

func joined(_ context.Context, sio pipeline.StageIO) error {
	var links []climate.Link
	var taxa []climate.Taxon
	var means []climate.SpeciesMean
	var bands int

	err := readFile(sio.Input(DocSummaries), func(r io.Reader) error {
		var err error
		links, err = climate.ReadLinks(r)
		return err
	})
	if err != nil {
		return err
	}
	err = readFile(sio.Input(SpeciesMatches), func(r io.Reader) error {
		var err error
		taxa, err = climate.ReadTaxa(r)
		return err
	})
	if err != nil {
		return err
	}
	err = readFile(sio.Input(Aggregated), func(r io.Reader) error {
		var err error
		means, bands, err = climate.ReadMeans(r)
		return err
	})
	if err != nil {
		return err
	}

	rows := climate.Join(links, taxa, means)
	gn.Info("Joined table has <em>%d</em> rows", len(rows))
	return writeFile(sio.Output, func(w io.Writer) error {
		return climate.WriteRows(w, rows, bands)
	})
}

func readJoined(path string) ([]climate.Row, int, error) {
	var rows []climate.Row
	var bands int
	err := readFile(path, func(r io.Reader) error {
		var err error
		rows, bands, err = climate.ReadRows(r)
		return err
	})
	return rows, bands, err
}

func joinedParquet(_ context.Context, sio pipeline.StageIO) error {
	rows, _, err := readJoined(sio.Input(Joined))
	if err != nil {
		return err
	}
	return writeFile(sio.Output, func(w io.Writer) error {
		if err := ioexport.WriteParquet(w, rows); err != nil {
			return ioexport.ParquetError(sio.Output, err)
		}
		return nil
	})
}

func (b *Builder) joinedSQLite(ctx context.Context, sio pipeline.StageIO) error {
	rows, bands, err := readJoined(sio.Input(Joined))
	if err != nil {
		return err
	}
	return ioexport.WriteSQLite(ctx, sio.Output, b.cfg.Export.SQLiteTable, rows, bands)
}
