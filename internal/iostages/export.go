package iostages

import (
	"context"

	"github.com/gnames/bioclim/internal/ioexport"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
)

// Export copies the joined table to PostgreSQL and publishes every
// complete artifact to a bucket under prefix. Destinations that are not
// configured are skipped.
func Export(
	ctx context.Context,
	cfg config.ExportConfig,
	eng *pipeline.Engine,
	prefix string,
) error {
	if cfg.PostgresDSN == "" && cfg.BucketURL == "" {
		return NoTargetError()
	}

	st, err := eng.Status()
	if err != nil {
		return err
	}
	var joinedPath string
	var paths []string
	for _, v := range st {
		if !v.Done {
			continue
		}
		paths = append(paths, v.Path)
		if v.Stage.Name == Joined {
			joinedPath = v.Path
		}
	}

	if cfg.PostgresDSN != "" {
		if joinedPath == "" {
			return NotReadyError(Joined)
		}
		rows, bands, err := readJoined(joinedPath)
		if err != nil {
			return err
		}
		n, err := ioexport.ToPostgres(ctx, cfg.PostgresDSN, cfg.PostgresTable, rows, bands)
		if err != nil {
			return err
		}
		gn.Info("Copied <em>%d</em> rows to PostgreSQL table %s", n, cfg.PostgresTable)
	}

	if cfg.BucketURL != "" {
		if len(paths) == 0 {
			return NotReadyError(Search)
		}
		if err = ioexport.Publish(ctx, cfg.BucketURL, prefix, paths); err != nil {
			return err
		}
		gn.Info("Published <em>%d</em> artifacts to %s", len(paths), cfg.BucketURL)
	}
	return nil
}
