package iostages

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/gnames/bioclim/internal/ioarchive"
	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
)

func (b *Builder) speciesMatches(ctx context.Context, sio pipeline.StageIO) error {
	var taxa []climate.TaxonName
	err := readFile(sio.Input(TaxonomySummaries), func(r io.Reader) error {
		var err error
		taxa, err = climate.ReadTaxonNames(r)
		return err
	})
	if err != nil {
		return err
	}

	matches, err := b.gbif.MatchAll(ctx, taxa)
	if err != nil {
		return err
	}
	return writeFile(sio.Output, func(w io.Writer) error {
		return climate.WriteTaxa(w, matches)
	})
}

func uniqueSpeciesKeys(_ context.Context, sio pipeline.StageIO) error {
	var taxa []climate.Taxon
	err := readFile(sio.Input(SpeciesMatches), func(r io.Reader) error {
		var err error
		taxa, err = climate.ReadTaxa(r)
		return err
	})
	if err != nil {
		return err
	}
	keys := climate.UniqueSpeciesKeys(taxa)
	slog.Info("Unique species keys", "matches", len(taxa), "species", len(keys))
	return ioartifact.WriteLines(sio.Output, keys)
}

func (b *Builder) downloadIDs(ctx context.Context, sio pipeline.StageIO) error {
	keys, err := ioartifact.ReadLines(sio.Input(UniqueSpeciesKeys))
	if err != nil {
		return err
	}
	ids, err := b.gbif.Submit(ctx, keys)
	if err != nil {
		return err
	}
	return ioartifact.WriteLines(sio.Output, ids)
}

// dois fetches every job once. Jobs without a DOI are skipped.
func (b *Builder) dois(ctx context.Context, sio pipeline.StageIO) error {
	ids, err := ioartifact.ReadLines(sio.Input(DownloadIDs))
	if err != nil {
		return err
	}

	res := make([]string, 0, len(ids))
	for _, id := range ids {
		job, err := b.gbif.Job(ctx, id)
		if err != nil {
			return err
		}
		if job.DOI == "" {
			slog.Warn("Download job has no DOI", "job", id, "status", job.Status)
			continue
		}
		res = append(res, job.DOI)
	}

	gn.Info("Collected <em>%d</em> DOIs of %d downloads", len(res), len(ids))
	return ioartifact.WriteLines(sio.Output, res)
}

func (b *Builder) downloadLinks(ctx context.Context, sio pipeline.StageIO) error {
	ids, err := ioartifact.ReadLines(sio.Input(DownloadIDs))
	if err != nil {
		return err
	}
	links, err := b.gbif.NewPoller().WaitAll(ctx, ids)
	if err != nil {
		return err
	}
	return ioartifact.WriteLines(sio.Output, links)
}

func (b *Builder) occurrences(ctx context.Context, sio pipeline.StageIO) error {
	links, err := ioartifact.ReadLines(sio.Input(DownloadLinks))
	if err != nil {
		return err
	}

	f, err := os.Create(sio.Output)
	if err != nil {
		return ioartifact.WriteError(sio.Output, err)
	}
	if err = ioarchive.Consolidate(ctx, b.download, links, f, b.progress); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return ioartifact.WriteError(sio.Output, err)
	}
	return nil
}
