package iogbif

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gnames/bioclim/internal/ioentrez"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/bioclim/pkg/climate"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
	"golang.org/x/sync/errgroup"
)

// Ranks lists ranks of matches that are kept.
var Ranks = []string{
	"SPECIES",
	"SUBSPECIES",
	"VARIETY",
	"SUBVARIETY",
	"FORM",
	"SUBFORM",
	"CULTIVAR_GROUP",
	"CULTIVAR",
}

// SpeciesMatch links an NCBI taxon to a GBIF species.
type SpeciesMatch = climate.Taxon

type matchResponse struct {
	MatchType  string `json:"matchType"`
	Rank       string `json:"rank"`
	SpeciesKey int    `json:"speciesKey"`
	Phylum     string `json:"phylum"`
	Order      string `json:"order"`
	Family     string `json:"family"`
	Genus      string `json:"genus"`
	Species    string `json:"species"`
}

// Match looks a name up in the GBIF backbone. The second value is false
// when there is no match or the match is above species level.
func (c *Client) Match(ctx context.Context, name string) (SpeciesMatch, bool, error) {
	var res SpeciesMatch
	q := url.Values{
		"name":    {name},
		"kingdom": {c.cfg.Kingdom},
		"strict":  {strconv.FormatBool(c.cfg.Strict)},
	}
	resp, err := c.fetcher.Fetch(ctx, iofetch.Request{
		URL:   c.cfg.URL + "species/match",
		Query: q,
	})
	if err != nil {
		return res, false, err
	}

	var mr matchResponse
	enc := gnfmt.GNjson{}
	if err = enc.Decode(resp.Body, &mr); err != nil {
		return res, false, err
	}
	if mr.MatchType == "" || mr.MatchType == "NONE" {
		return res, false, nil
	}
	if !slices.Contains(Ranks, strings.ToUpper(mr.Rank)) || mr.SpeciesKey == 0 {
		return res, false, nil
	}

	res = SpeciesMatch{
		SpeciesKey: strconv.Itoa(mr.SpeciesKey),
		Phylum:     mr.Phylum,
		Order:      mr.Order,
		Family:     mr.Family,
		Genus:      mr.Genus,
		Species:    mr.Species,
	}
	return res, true, nil
}

// MatchAll matches taxa concurrently and returns the matches in the
// order of the taxa. Taxa whose lookup fails are logged and skipped.
func (c *Client) MatchAll(
	ctx context.Context,
	taxa []ioentrez.TaxonRecord,
) ([]SpeciesMatch, error) {
	found := make([]*SpeciesMatch, len(taxa))
	var failed atomic.Int64
	bar := c.newProgressBar(len(taxa), "GBIF matches: ")
	defer finish(bar)

	g, ctx := errgroup.WithContext(ctx)
	chIdx := make(chan int)

	g.Go(func() error {
		defer close(chIdx)
		for i := range taxa {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case chIdx <- i:
			}
		}
		return nil
	})

	for range c.jobs {
		g.Go(func() error {
			for i := range chIdx {
				t := taxa[i]
				m, ok, err := c.Match(ctx, c.matchName(t.Name))
				increment(bar)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed.Add(1)
					slog.Warn("Cannot match name",
						"taxid", t.TaxID, "name", t.Name, "error", err)
					continue
				}
				if ok {
					m.TaxID = t.TaxID
					found[i] = &m
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := make([]SpeciesMatch, 0, len(taxa))
	for _, m := range found {
		if m != nil {
			res = append(res, *m)
		}
	}

	slog.Info("Species matched",
		"taxa", len(taxa), "matches", len(res), "failed", failed.Load())
	gn.Info("Matched <em>%s</em> of %s taxa to GBIF species",
		humanize.Comma(int64(len(res))), humanize.Comma(int64(len(taxa))))
	return res, nil
}

func (c *Client) matchName(name string) string {
	if c.parser == nil {
		return name
	}
	if can, ok := c.parser.Canonical(name); ok {
		return can
	}
	return name
}
