package iostages

import (
	"context"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/internal/ioentrez"
	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
)

func (b *Builder) search(ctx context.Context, sio pipeline.StageIO) error {
	db, term := b.cfg.Entrez.DB, b.cfg.Entrez.SearchTerm
	sc, err := b.entrez.Search(ctx, db, term)
	if err != nil {
		return err
	}
	gn.Info("Found <em>%s</em> %s records",
		humanize.Comma(int64(sc.Count)), db)
	return writeJSON(sio.Output, sc)
}

func (b *Builder) docSummaries(ctx context.Context, sio pipeline.StageIO) error {
	var sc ioentrez.SearchContext
	if err := readJSON(sio.Input(Search), &sc); err != nil {
		return err
	}

	opts, finish := b.pageProgress("Doc summaries: ")
	defer finish()

	var links []climate.Link
	seq := ioentrez.Summaries(
		ctx, b.entrez, sc, b.cfg.Entrez.DB, ioentrez.ExtractDocSummary, opts...,
	)
	for l, err := range seq {
		if err != nil {
			return err
		}
		links = append(links, l)
	}

	slog.Info("Collected doc summaries", "expected", sc.Count, "found", len(links))
	return writeFile(sio.Output, func(w io.Writer) error {
		return climate.WriteLinks(w, links)
	})
}

func uniqueTaxIDs(_ context.Context, sio pipeline.StageIO) error {
	var links []climate.Link
	err := readFile(sio.Input(DocSummaries), func(r io.Reader) error {
		var err error
		links, err = climate.ReadLinks(r)
		return err
	})
	if err != nil {
		return err
	}
	ids := climate.UniqueTaxIDs(links)
	slog.Info("Unique taxonomy IDs", "links", len(links), "taxa", len(ids))
	return ioartifact.WriteLines(sio.Output, ids)
}

func (b *Builder) taxonomyPost(ctx context.Context, sio pipeline.StageIO) error {
	ids, err := ioartifact.ReadLines(sio.Input(UniqueTaxIDs))
	if err != nil {
		return err
	}

	// nothing to post, the empty context yields no summaries
	var sc ioentrez.SearchContext
	if len(ids) > 0 {
		if sc, err = b.entrez.Post(ctx, TaxonomyDB, ids); err != nil {
			return err
		}
	}
	return writeJSON(sio.Output, sc)
}

func (b *Builder) taxonomySummaries(ctx context.Context, sio pipeline.StageIO) error {
	var sc ioentrez.SearchContext
	if err := readJSON(sio.Input(TaxonomyPost), &sc); err != nil {
		return err
	}

	opts, finish := b.pageProgress("Taxonomy summaries: ")
	defer finish()

	var taxa []climate.TaxonName
	seq := ioentrez.Summaries(
		ctx, b.entrez, sc, TaxonomyDB, ioentrez.ExtractTaxon, opts...,
	)
	for t, err := range seq {
		if err != nil {
			return err
		}
		taxa = append(taxa, t)
	}

	slog.Info("Collected taxonomy summaries", "expected", sc.Count, "found", len(taxa))
	return writeFile(sio.Output, func(w io.Writer) error {
		return climate.WriteTaxonNames(w, taxa)
	})
}
