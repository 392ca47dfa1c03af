package iostages

import (
	"bufio"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/gnfmt"
)

// writeFile creates path and passes a buffered writer to fn.
func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return ioartifact.WriteError(path, err)
	}
	w := bufio.NewWriter(f)
	if err = fn(w); err != nil {
		f.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return ioartifact.WriteError(path, err)
	}
	if err = f.Close(); err != nil {
		return ioartifact.WriteError(path, err)
	}
	return nil
}

// readFile opens path and passes a buffered reader to fn.
func readFile(path string, fn func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return ioartifact.ReadError(path, err)
	}
	defer f.Close()
	return fn(bufio.NewReader(f))
}

func writeJSON(path string, v any) error {
	enc := gnfmt.GNjson{Pretty: true}
	data, err := enc.Encode(v)
	if err != nil {
		return ioartifact.WriteError(path, err)
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		return ioartifact.WriteError(path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ioartifact.ReadError(path, err)
	}
	enc := gnfmt.GNjson{}
	if err = enc.Decode(data, v); err != nil {
		return ioartifact.ReadError(path, err)
	}
	return nil
}

// pageProgress returns a page option that drives a progress bar and a
// function that finishes the bar.
func (b *Builder) pageProgress(prefix string) ([]iofetch.PageOption, func()) {
	if !b.progress {
		return nil, func() {}
	}
	var bar *pb.ProgressBar
	opt := iofetch.WithProgress(func(done, total int) {
		if bar == nil {
			bar = b.newProgressBar(total, prefix)
		}
		bar.SetCurrent(int64(done))
	})
	finish := func() {
		if bar != nil {
			bar.Finish()
		}
	}
	return []iofetch.PageOption{opt}, finish
}

// newProgressBar returns nil when progress is off.
func (b *Builder) newProgressBar(total int, prefix string) *pb.ProgressBar {
	if !b.progress {
		return nil
	}
	bar := pb.Full.Start(total)
	bar.Set("prefix", prefix)
	bar.Set(pb.CleanOnFinish, true)
	return bar
}
