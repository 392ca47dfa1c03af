// Package iostages declares the stages of the bioclim pipeline and wires
// them to Entrez, GBIF, raster and export packages. Stage functions read
// their inputs from committed artifacts and write a single output file.
package iostages

import (
	"fmt"
	"slices"

	"github.com/gnames/bioclim/internal/ioentrez"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/bioclim/internal/iogbif"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/bioclim/pkg/parserpool"
	"github.com/gnames/bioclim/pkg/pipeline"
)

// Names of stages.
const (
	Search              = "search"
	DocSummaries        = "docsummaries"
	UniqueTaxIDs        = "unique-taxids"
	TaxonomyPost        = "taxonomy-post"
	TaxonomySummaries   = "taxonomy-summaries"
	SpeciesMatches      = "species-matches"
	UniqueSpeciesKeys   = "unique-species-keys"
	DownloadIDs         = "download-ids"
	DOIs                = "dois"
	DownloadLinks       = "download-links"
	Occurrences         = "occurrences"
	RasterMetadata      = "raster-metadata"
	StackedRaster       = "stacked-raster"
	FilteredOccurrences = "filtered-occurrences"
	ClimateSamples      = "climate-samples"
	Aggregated          = "aggregated"
	Joined              = "joined"
	JoinedParquet       = "joined-parquet"
	JoinedSQLite        = "joined-sqlite"

	// All is an alias for the final stages.
	All = "all"
)

// TaxonomyDB is the Entrez database of taxa.
const TaxonomyDB = "taxonomy"

// submitRetryStatus lists statuses GBIF uses to throttle download
// requests.
var submitRetryStatus = []int{420, 503}

// Builder creates pipeline stages from configuration.
type Builder struct {
	cfg *config.Config

	entrez   *ioentrez.Client
	gbif     *iogbif.Client
	download *iofetch.Fetcher
	parser   parserpool.Pool

	progress bool
}

// Option configures a Builder.
type Option func(*Builder)

// OptProgress shows progress bars on the terminal.
func OptProgress(b bool) Option {
	return func(bld *Builder) {
		bld.progress = b
	}
}

// New creates a Builder. Entrez and GBIF get separate fetchers, so each
// service has its own rate limit. Call Close when done.
func New(cfg *config.Config, opts ...Option) *Builder {
	res := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(res)
	}

	api := iofetch.OptionsFromConfig(cfg.HTTP)

	submit := api
	submit.BackoffFactor = cfg.GBIF.SubmitBackoff
	submit.MaxRetries = cfg.GBIF.SubmitRetries
	submit.RetryStatus = submitRetryStatus

	download := api
	download.Timeout = cfg.HTTP.DownloadTimeout

	var gbifOpts []iogbif.Option
	gbifOpts = append(gbifOpts, iogbif.OptProgress(res.progress))
	if cfg.GBIF.UseCanonical {
		code := parserpool.CodeForKingdom(cfg.GBIF.Kingdom)
		res.parser = parserpool.NewPool(cfg.JobsNumber, code)
		gbifOpts = append(gbifOpts, iogbif.OptParser(res.parser))
	}

	res.entrez = ioentrez.New(iofetch.New(api), cfg.Entrez)
	res.gbif = iogbif.New(
		cfg.GBIF, cfg.JobsNumber,
		iofetch.New(api), iofetch.New(submit),
		gbifOpts...,
	)
	res.download = iofetch.New(download)
	return res
}

// Close releases the name parser pool.
func (b *Builder) Close() {
	if b.parser != nil {
		b.parser.Close()
	}
}

// Engine creates a pipeline engine over store with all stages and the
// All alias.
func (b *Builder) Engine(store pipeline.Store) (*pipeline.Engine, error) {
	eng, err := pipeline.New(store, b.Stages()...)
	if err != nil {
		return nil, err
	}
	if err = eng.Alias(All, DOIs, Joined); err != nil {
		return nil, err
	}
	return eng, nil
}

// Stages returns declarations of all stages.
func (b *Builder) Stages() []pipeline.Stage {
	cfg := b.cfg
	db := cfg.Entrez.DB
	return []pipeline.Stage{
		{
			Name:        Search,
			Artifact:    record(db + "-esearch-params.json"),
			Params:      params("db", db, "term", cfg.Entrez.SearchTerm),
			Description: "search Entrez and keep results on the history server",
			Run:         b.search,
		},
		{
			Name:        DocSummaries,
			Requires:    []string{Search},
			Artifact:    table(db + "-docsummaries.txt"),
			Params:      params("db", db),
			Description: "collect UID and taxonomy ID of found records",
			Run:         b.docSummaries,
		},
		{
			Name:        UniqueTaxIDs,
			Requires:    []string{DocSummaries},
			Artifact:    text("unique-taxids.txt"),
			Description: "remove duplicate taxonomy IDs",
			Run:         uniqueTaxIDs,
		},
		{
			Name:        TaxonomyPost,
			Requires:    []string{UniqueTaxIDs},
			Artifact:    record("taxonomy-epost-params.json"),
			Description: "post taxonomy IDs to the history server",
			Run:         b.taxonomyPost,
		},
		{
			Name:        TaxonomySummaries,
			Requires:    []string{TaxonomyPost},
			Artifact:    table("taxonomy-docsummaries.txt"),
			Description: "collect scientific names of taxa",
			Run:         b.taxonomySummaries,
		},
		{
			Name:     SpeciesMatches,
			Requires: []string{TaxonomySummaries},
			Artifact: table("gbif-species-matches.txt"),
			Params: params(
				"kingdom", cfg.GBIF.Kingdom,
				"strict", cfg.GBIF.Strict,
				"canonical", cfg.GBIF.UseCanonical,
			),
			Description: "match scientific names to GBIF species",
			Run:         b.speciesMatches,
		},
		{
			Name:        UniqueSpeciesKeys,
			Requires:    []string{SpeciesMatches},
			Artifact:    text("unique-species-keys.txt"),
			Description: "remove duplicate species keys",
			Run:         uniqueSpeciesKeys,
		},
		{
			Name:        DownloadIDs,
			Requires:    []string{UniqueSpeciesKeys},
			Artifact:    text("download-IDs.txt"),
			Params:      params("chunk", cfg.GBIF.ChunkSize),
			Description: "request GBIF occurrence downloads",
			Run:         b.downloadIDs,
		},
		{
			Name:        DOIs,
			Requires:    []string{DownloadIDs},
			Artifact:    text("DOIs.txt"),
			Description: "collect DOIs of download jobs",
			Run:         b.dois,
		},
		{
			Name:        DownloadLinks,
			Requires:    []string{DownloadIDs},
			Artifact:    text("download-links.txt"),
			Description: "wait for download jobs and collect their links",
			Run:         b.downloadLinks,
		},
		{
			Name:        Occurrences,
			Requires:    []string{DownloadLinks},
			Artifact:    pipeline.Artifact{Name: "occurrences.zip", Kind: pipeline.Archive},
			Description: "download and consolidate occurrence archives",
			Run:         b.occurrences,
		},
		{
			Name:        RasterMetadata,
			Artifact:    record("raster-metadata.json"),
			Params:      b.rasterParams(),
			Description: "read raster metadata of the first band",
			Run:         b.rasterMetadata,
		},
		{
			Name:        StackedRaster,
			Requires:    []string{RasterMetadata},
			Artifact:    pipeline.Artifact{Name: "stacked-raster-data.bcs", Kind: pipeline.Raster},
			Params:      b.rasterParams(),
			Description: "stack raster bands into one file",
			Run:         b.stackedRaster,
		},
		{
			Name:        FilteredOccurrences,
			Requires:    []string{Occurrences, RasterMetadata},
			Artifact:    table("consolidated-filtered-occurrences.txt"),
			Params:      params("uncertainty", cfg.Occurrence.UncertaintyLimit),
			Description: "keep occurrences with precise coordinates inside rasters",
			Run:         b.filteredOccurrences,
		},
		{
			Name:        ClimateSamples,
			Requires:    []string{FilteredOccurrences, StackedRaster},
			Artifact:    table("occurrences-climate-data.txt"),
			Params:      params("precision", cfg.Raster.Precision),
			Description: "sample raster bands at occurrences",
			Run:         b.climateSamples,
		},
		{
			Name:        Aggregated,
			Requires:    []string{ClimateSamples},
			Artifact:    table("aggregated-occurrences.txt"),
			Params:      params("precision", cfg.Raster.Precision),
			Description: "average climate values per species",
			Run:         b.aggregated,
		},
		{
			Name:        Joined,
			Requires:    []string{DocSummaries, SpeciesMatches, Aggregated},
			Artifact:    table("joined-data.txt"),
			Description: "join UIDs, taxa and species climate",
			Run:         joined,
		},
		{
			Name:        JoinedParquet,
			Requires:    []string{Joined},
			Artifact:    pipeline.Artifact{Name: "joined-data.parquet", Kind: pipeline.Table},
			Description: "convert the joined table to Parquet",
			Run:         joinedParquet,
		},
		{
			Name:        JoinedSQLite,
			Requires:    []string{Joined},
			Artifact:    pipeline.Artifact{Name: "joined-data.sqlite", Kind: pipeline.Database},
			Params:      params("table", cfg.Export.SQLiteTable),
			Description: "load the joined table into SQLite",
			Run:         b.joinedSQLite,
		},
	}
}

// StageNames returns names of all stages and the All alias.
func StageNames() []string {
	var b Builder
	b.cfg = config.New()
	var res []string
	for _, v := range b.Stages() {
		res = append(res, v.Name)
	}
	return append(res, All)
}

// IsStage reports if name is a stage or the All alias.
func IsStage(name string) bool {
	return slices.Contains(StageNames(), name)
}

func (b *Builder) rasterParams() string {
	r := b.cfg.Raster
	res := params("dir", r.Dir)
	for _, v := range r.Bands {
		res += params(v.Band, v.File)
	}
	return res
}

func record(name string) pipeline.Artifact {
	return pipeline.Artifact{Name: name, Kind: pipeline.Record}
}

func table(name string) pipeline.Artifact {
	return pipeline.Artifact{Name: name, Kind: pipeline.Table}
}

func text(name string) pipeline.Artifact {
	return pipeline.Artifact{Name: name, Kind: pipeline.Text}
}

// params formats key-value pairs for fingerprints.
func params(kv ...any) string {
	var res string
	for i := 0; i+1 < len(kv); i += 2 {
		res += fmt.Sprintf("%v=%v;", kv[i], kv[i+1])
	}
	return res
}
