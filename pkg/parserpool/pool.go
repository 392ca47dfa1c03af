// Package parserpool keeps a pool of gnparser instances that turn NCBI
// scientific names into canonical forms before they are matched against
// GBIF. This is a pure package.
package parserpool

import (
	"runtime"
	"strings"

	"github.com/gnames/gnlib/ent/nomcode"
	"github.com/gnames/gnparser"
)

// Pool converts name-strings to canonical forms concurrently.
type Pool interface {
	// Canonical returns the canonical form of a name with infraspecific
	// ranks kept ("Rosa acicularis var. sayi"). The second value is false
	// when the name cannot be parsed.
	Canonical(name string) (string, bool)

	// Close releases the parsers. The pool must not be used after Close.
	Close()
}

type pool struct {
	ch chan gnparser.GNparser
}

// NewPool creates a pool of jobsNum parsers for the nomenclatural code.
// If jobsNum is 0, it defaults to runtime.NumCPU().
func NewPool(jobsNum int, code nomcode.Code) Pool {
	size := jobsNum
	if size <= 0 {
		size = runtime.NumCPU()
	}
	cfg := gnparser.NewConfig(gnparser.OptCode(code))
	return &pool{ch: gnparser.NewPool(cfg, size)}
}

// CodeForKingdom returns the nomenclatural code that governs names of a
// GBIF kingdom.
func CodeForKingdom(kingdom string) nomcode.Code {
	switch strings.ToLower(strings.TrimSpace(kingdom)) {
	case "plantae", "fungi", "chromista":
		return nomcode.Botanical
	case "bacteria", "archaea":
		return nomcode.Bacterial
	default:
		return nomcode.Zoological
	}
}

func (p *pool) Canonical(name string) (string, bool) {
	parser := <-p.ch
	res := parser.ParseName(name)
	p.ch <- parser

	if !res.Parsed || res.Canonical == nil || res.Canonical.Full == "" {
		return "", false
	}
	return res.Canonical.Full, true
}

func (p *pool) Close() {
	if p.ch == nil {
		return
	}
	close(p.ch)
	for range p.ch {
	}
}
