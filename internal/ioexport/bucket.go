package ioexport

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
)

// Publish uploads files to a bucket under prefix, keyed by their base
// names. Each file is written to a temporary key first and copied to its
// final key, so a reader never sees a partial object.
func Publish(ctx context.Context, url, prefix string, paths []string) error {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return BucketError(url, prefix, err)
	}
	defer bucket.Close()

	for _, path := range paths {
		key := filepath.Base(path)
		if prefix != "" {
			key = prefix + "/" + key
		}
		if err = upload(ctx, bucket, path, key); err != nil {
			return BucketError(url, key, err)
		}
		slog.Info("Published artifact", "bucket", url, "key", key)
	}
	return nil
}

func upload(ctx context.Context, bucket *blob.Bucket, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tmp := key + ".tmp." + uuid.New().String()
	w, err := bucket.NewWriter(ctx, tmp, nil)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}

	if err = bucket.Copy(ctx, key, tmp, nil); err != nil {
		_ = bucket.Delete(ctx, tmp)
		return err
	}
	return bucket.Delete(ctx, tmp)
}
