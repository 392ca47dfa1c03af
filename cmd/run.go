/*
Copyright © 2025 Dmitry Mozzherin <dmozzherin@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/internal/iostages"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
	"github.com/spf13/cobra"
)

// getRunCmd returns the run command.
func getRunCmd() *cobra.Command {
	var (
		rebuild []string
		jobs    int
	)

	runCmd := &cobra.Command{
		Use:   "run [stages...]",
		Short: "Run pipeline stages and their requirements",
		Long: `Run pipeline stages. Every stage runs after its requirements and only
if its artifact does not exist yet. Without arguments the "all" target is
built: DOIs of GBIF downloads and the joined climate table.

A failed stage blocks stages depending on it, independent stages still
run. The command exits with an error if any stage failed.

Examples:
  # Build everything
  bioclim run

  # Only download GBIF occurrences
  bioclim run occurrences

  # Sample rasters again after replacing them
  bioclim run --rebuild raster-metadata,stacked-raster,climate-samples

  # Keep artifacts in another directory
  bioclim run -d /data/nbs-lrr`,
		Args: stageArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runPipeline(cmd, args, rebuild, jobs)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
	}

	runCmd.Flags().StringSliceVarP(
		&rebuild, "rebuild", "r", []string{},
		"stages to rebuild even if their artifacts exist",
	)
	runCmd.Flags().IntVarP(
		&jobs, "jobs", "j", 0,
		"number of concurrent species match workers",
	)

	return runCmd
}

func runPipeline(
	cmd *cobra.Command,
	targets []string,
	rebuild []string,
	jobs int,
) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	var runOpts []config.Option
	if cmd.Flags().Changed("jobs") {
		runOpts = append(runOpts, config.OptJobsNumber(jobs))
	}
	if cmd.Flags().Changed("rebuild") {
		runOpts = append(runOpts, config.OptPipelineRebuild(rebuild))
	}
	cfg.Update(runOpts)

	if len(targets) == 0 {
		targets = []string{iostages.All}
	}

	store, err := ioartifact.New(cfg.Pipeline.DataDir)
	if err != nil {
		return err
	}

	bld := iostages.New(cfg, iostages.OptProgress(true))
	defer bld.Close()

	eng, err := bld.Engine(store)
	if err != nil {
		return err
	}

	if len(cfg.Pipeline.Rebuild) > 0 {
		if err = eng.Invalidate(expandAll(cfg.Pipeline.Rebuild)...); err != nil {
			return err
		}
	}

	gn.Info("Artifacts are kept in <em>%s</em>", cfg.Pipeline.DataDir)
	start := time.Now()
	res, err := eng.Run(ctx, targets...)
	if res != nil {
		printSummary(cmd, res)
	}
	if err != nil {
		if ctx.Err() != nil {
			gn.Warn("<warn>Run interrupted, rerun the command to resume</warn>")
		}
		return err
	}

	gn.Info("Pipeline finished in %s",
		gnfmt.TimeString(time.Since(start).Seconds()))
	return nil
}

func printSummary(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	for _, v := range res.Stages {
		var note string
		switch {
		case v.State == pipeline.Completed:
			note = gnfmt.TimeString(v.Duration.Seconds())
		case v.Stale:
			note = "stale parameters"
		}
		fmt.Fprintf(out, "%-22s %-10s %s\n", v.Name, v.State, note)
	}
	gn.Message(
		"Stages: <em>%s</em> completed, %s cached, %s failed, %s blocked",
		humanize.Comma(int64(res.Count(pipeline.Completed))),
		humanize.Comma(int64(res.Count(pipeline.Cached))),
		humanize.Comma(int64(res.Count(pipeline.Failed))),
		humanize.Comma(int64(res.Count(pipeline.Blocked))),
	)
}
