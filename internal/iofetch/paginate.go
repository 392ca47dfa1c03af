package iofetch

import (
	"context"
	"iter"
	"log/slog"
)

// PageFunc fetches and parses the page that starts at offset.
type PageFunc[T any] func(ctx context.Context, offset, size int) ([]T, error)

type pageOpts struct {
	progress func(done, total int)
}

// PageOption configures Paginate.
type PageOption func(*pageOpts)

// WithProgress sets a callback called after every page with the number
// of offsets covered so far.
func WithProgress(fn func(done, total int)) PageOption {
	return func(o *pageOpts) {
		o.progress = fn
	}
}

// Paginate walks offsets 0, size, 2*size... while offset < total and
// yields the records of every page. A page that cannot be fetched is
// logged and skipped. The sequence ends with the context error if the
// context is cancelled.
func Paginate[T any](
	ctx context.Context,
	total, size int,
	fetch PageFunc[T],
	opts ...PageOption,
) iter.Seq2[T, error] {
	var po pageOpts
	for _, opt := range opts {
		opt(&po)
	}

	return func(yield func(T, error) bool) {
		if size <= 0 {
			return
		}
		for offset := 0; offset < total; offset += size {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}

			recs, err := fetch(ctx, offset, size)
			if err != nil {
				if ctx.Err() != nil {
					var zero T
					yield(zero, ctx.Err())
					return
				}
				slog.Warn("Skipping page",
					"offset", offset,
					"size", size,
					"error", err,
				)
			}
			for _, r := range recs {
				if !yield(r, nil) {
					return
				}
			}

			if po.progress != nil {
				po.progress(min(offset+size, total), total)
			}
		}
	}
}
