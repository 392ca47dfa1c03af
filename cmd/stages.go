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
	"fmt"
	"io"
	"strings"

	"github.com/gnames/bioclim/internal/ioartifact"
	"github.com/gnames/bioclim/internal/iostages"
	"github.com/gnames/bioclim/pkg/pipeline"
	"github.com/gnames/gn"
	"github.com/spf13/cobra"
)

// getStagesCmd returns the stages command.
func getStagesCmd() *cobra.Command {
	var verbose bool

	stagesCmd := &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages and their completion",
		Long: `List pipeline stages in execution order together with their
requirements and artifacts. A stage is done when its artifact exists
in the data directory.

Examples:
  bioclim stages
  bioclim stages -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runStages(cmd.OutOrStdout(), verbose)
			if err != nil {
				gn.PrintErrorMessage(err)
			}
			return err
		},
	}

	stagesCmd.Flags().BoolVarP(
		&verbose, "verbose", "v", false,
		"show descriptions and artifact paths",
	)

	return stagesCmd
}

func runStages(out io.Writer, verbose bool) error {
	store, err := ioartifact.New(cfg.Pipeline.DataDir)
	if err != nil {
		return err
	}

	bld := iostages.New(cfg)
	defer bld.Close()

	eng, err := bld.Engine(store)
	if err != nil {
		return err
	}

	st, err := eng.Status()
	if err != nil {
		return err
	}
	printStatus(out, st, verbose)
	return nil
}

func printStatus(out io.Writer, st []pipeline.Status, verbose bool) {
	var done int
	for _, v := range st {
		mark := " "
		if v.Done {
			mark = "x"
			done++
		}
		fmt.Fprintf(out, "[%s] %-22s %s\n",
			mark, v.Stage.Name, strings.Join(v.Stage.Requires, ", "))
		if verbose {
			fmt.Fprintf(out, "      %s\n      %s (%s)\n",
				v.Stage.Description, v.Path, v.Stage.Artifact.Kind)
		}
	}
	fmt.Fprintf(out, "\n%d of %d stages done\n", done, len(st))
}
