// Package ioarchive merges GBIF download archives into one zip file and
// reads occurrence tables from it.
//
// Every downloaded archive is held in memory while its first entry is
// streamed into the output, so memory use is bounded by the largest
// single download, not by the consolidated size.
package ioarchive

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/gnames/bioclim/internal/iofetch"
	"github.com/gnames/gn"
	"github.com/klauspost/compress/zip"
)

// Consolidate downloads every link and copies the first entry of each
// archive into a same-named entry of a zip written to w. A failed
// download or an archive without entries stops consolidation.
func Consolidate(
	ctx context.Context,
	f *iofetch.Fetcher,
	links []string,
	w io.Writer,
	progress bool,
) error {
	zw := zip.NewWriter(w)

	var bar *pb.ProgressBar
	if progress {
		bar = pb.Full.Start(len(links))
		bar.Set("prefix", "Occurrence archives: ")
		bar.Set(pb.CleanOnFinish, true)
		defer bar.Finish()
	}

	var total int64
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := f.Fetch(ctx, iofetch.Request{URL: link})
		if err != nil {
			return DownloadError(link, err)
		}
		n, err := copyFirst(zw, link, resp.Body)
		if err != nil {
			return err
		}
		total += n
		if bar != nil {
			bar.Increment()
		}
	}

	if err := zw.Close(); err != nil {
		return FormatError("consolidated archive", err)
	}

	slog.Info("Occurrence archives consolidated",
		"archives", len(links), "bytes", total)
	gn.Info("Consolidated <em>%d</em> archives (%s uncompressed)",
		len(links), humanize.Bytes(uint64(total)))
	return nil
}

func copyFirst(zw *zip.Writer, link string, payload []byte) (int64, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return 0, FormatError(link, err)
	}
	if len(zr.File) == 0 {
		return 0, EmptyError(link)
	}
	src := zr.File[0]

	rc, err := src.Open()
	if err != nil {
		return 0, FormatError(link, err)
	}
	defer rc.Close()

	hdr := &zip.FileHeader{
		Name:     src.Name,
		Method:   zip.Deflate,
		Modified: src.Modified,
	}
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, FormatError(src.Name, err)
	}
	n, err := io.Copy(dst, rc)
	if err != nil {
		return n, FormatError(src.Name, err)
	}
	return n, nil
}

// Entries calls fn for every entry of the zip file at path.
func Entries(path string, fn func(name string, r io.Reader) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return FormatError(path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err = entry(f, fn); err != nil {
			return err
		}
	}
	return nil
}

func entry(f *zip.File, fn func(string, io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return FormatError(f.Name, err)
	}
	defer rc.Close()
	return fn(f.Name, rc)
}
