package ioraster

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gnames/bioclim/pkg/config"
)

var trailingNum = regexp.MustCompile(`(\d+)$`)

// BandsFromDir maps ASCII grids in dir to bands by the number at the end
// of their names ("wc2.1_10m_bio_12.asc" is band 12). Bands must be
// numbered 1..n without gaps or repeats.
func BandsFromDir(dir string) ([]config.BandSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, BandMapError(dir, err)
	}

	var res []config.BandSource
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".asc") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		m := trailingNum.FindString(base)
		if m == "" {
			return nil, BandMapError(dir,
				fmt.Errorf("no band number in %s", e.Name()))
		}
		band, _ := strconv.Atoi(m)
		res = append(res, config.BandSource{Band: band, File: e.Name()})
	}
	if err = checkBands(res); err != nil {
		return nil, BandMapError(dir, err)
	}
	return res, nil
}

// ResolveBands returns band sources with paths joined to the raster
// directory, ordered by band. Configured bands take precedence over
// file names.
func ResolveBands(cfg config.RasterConfig) ([]config.BandSource, error) {
	bands := slices.Clone(cfg.Bands)
	if len(bands) == 0 {
		var err error
		if bands, err = BandsFromDir(cfg.Dir); err != nil {
			return nil, err
		}
	}
	if err := checkBands(bands); err != nil {
		return nil, BandMapError(cfg.Dir, err)
	}
	for i := range bands {
		if !filepath.IsAbs(bands[i].File) {
			bands[i].File = filepath.Join(cfg.Dir, bands[i].File)
		}
	}
	return bands, nil
}

// checkBands sorts bands and makes sure they are numbered 1..n.
func checkBands(bands []config.BandSource) error {
	if len(bands) == 0 {
		return fmt.Errorf("no raster files")
	}
	slices.SortFunc(bands, func(a, b config.BandSource) int {
		return a.Band - b.Band
	})
	for i, b := range bands {
		if i > 0 && b.Band == bands[i-1].Band {
			return fmt.Errorf("band %d is given by %s and %s",
				b.Band, bands[i-1].File, b.File)
		}
		if b.Band != i+1 {
			return fmt.Errorf("band %d is missing", i+1)
		}
	}
	return nil
}
