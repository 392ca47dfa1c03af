// Package climate aggregates climate samples per species and joins them
// with NCBI and GBIF records into the final table. This is a pure
// package; missing values are NaN.
package climate

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

// Link ties an NCBI sequence UID to its taxonomy ID.
type Link struct {
	UID   string
	TaxID string
}

// TaxonName is an NCBI taxon with its scientific name.
type TaxonName struct {
	TaxID string
	Name  string
}

// Taxon is an NCBI taxon matched to a GBIF species.
type Taxon struct {
	TaxID      string
	SpeciesKey string
	Phylum     string
	Order      string
	Family     string
	Genus      string
	Species    string
}

// Sample holds band values at one occurrence of a species.
type Sample struct {
	SpeciesKey string
	Values     []float64
}

// SpeciesMean holds mean band values of a species.
type SpeciesMean struct {
	SpeciesKey string
	Values     []float64
}

// Row is a row of the final table.
type Row struct {
	UID string
	Taxon
	Values []float64
}

// Aggregator accumulates samples for per-species means.
type Aggregator struct {
	bands int
	sums  map[string][]float64
	ns    map[string][]int
}

// NewAggregator creates an Aggregator for samples with the given number
// of bands.
func NewAggregator(bands int) *Aggregator {
	return &Aggregator{
		bands: bands,
		sums:  make(map[string][]float64),
		ns:    make(map[string][]int),
	}
}

// Add adds a sample. Missing values are ignored, extra values beyond the
// number of bands are dropped.
func (a *Aggregator) Add(s Sample) {
	sum, ok := a.sums[s.SpeciesKey]
	if !ok {
		sum = make([]float64, a.bands)
		a.sums[s.SpeciesKey] = sum
		a.ns[s.SpeciesKey] = make([]int, a.bands)
	}
	n := a.ns[s.SpeciesKey]
	for i, v := range s.Values {
		if i >= a.bands || math.IsNaN(v) {
			continue
		}
		sum[i] += v
		n[i]++
	}
}

// Means returns mean values per species rounded to precision digits,
// sorted by species key. A band without values stays missing.
func (a *Aggregator) Means(precision int) []SpeciesMean {
	res := make([]SpeciesMean, 0, len(a.sums))
	p := math.Pow(10, float64(precision))
	for key, sum := range a.sums {
		n := a.ns[key]
		vals := make([]float64, a.bands)
		for i := range vals {
			if n[i] == 0 {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = math.Round(sum[i]/float64(n[i])*p) / p
		}
		res = append(res, SpeciesMean{SpeciesKey: key, Values: vals})
	}
	slices.SortFunc(res, func(x, y SpeciesMean) int {
		return CompareKeys(x.SpeciesKey, y.SpeciesKey)
	})
	return res
}

// Aggregate returns per-species means of samples.
func Aggregate(samples []Sample, precision int) []SpeciesMean {
	var bands int
	for _, s := range samples {
		bands = max(bands, len(s.Values))
	}
	a := NewAggregator(bands)
	for _, s := range samples {
		a.Add(s)
	}
	return a.Means(precision)
}

// CompareKeys orders numeric keys by value and puts them before other
// keys, which are ordered as strings.
func CompareKeys(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

// Join links UIDs to taxa by taxonomy ID and taxa to climate means by
// species key. Both joins are inner: UIDs of unmatched taxa and taxa of
// species without means are dropped. The order of links is kept.
func Join(links []Link, taxa []Taxon, means []SpeciesMean) []Row {
	byTax := make(map[string][]Taxon, len(taxa))
	for _, t := range taxa {
		byTax[t.TaxID] = append(byTax[t.TaxID], t)
	}
	bySpecies := make(map[string]SpeciesMean, len(means))
	for _, m := range means {
		bySpecies[m.SpeciesKey] = m
	}

	var res []Row
	for _, l := range links {
		for _, t := range byTax[l.TaxID] {
			m, ok := bySpecies[t.SpeciesKey]
			if !ok {
				continue
			}
			res = append(res, Row{
				UID:    l.UID,
				Taxon:  t,
				Values: slices.Clone(m.Values),
			})
		}
	}
	return res
}

// UniqueTaxIDs returns distinct taxonomy IDs of links in the order of
// their first appearance.
func UniqueTaxIDs(links []Link) []string {
	seen := make(map[string]struct{}, len(links))
	var res []string
	for _, l := range links {
		if _, ok := seen[l.TaxID]; ok {
			continue
		}
		seen[l.TaxID] = struct{}{}
		res = append(res, l.TaxID)
	}
	return res
}

// UniqueSpeciesKeys returns distinct species keys of taxa in the order
// of their first appearance.
func UniqueSpeciesKeys(taxa []Taxon) []string {
	seen := make(map[string]struct{}, len(taxa))
	var res []string
	for _, t := range taxa {
		if _, ok := seen[t.SpeciesKey]; ok {
			continue
		}
		seen[t.SpeciesKey] = struct{}{}
		res = append(res, t.SpeciesKey)
	}
	return res
}
