package cmd

import (
	"slices"

	"github.com/gnames/bioclim/internal/iostages"
	"github.com/spf13/cobra"
)

// stageArgs accepts stage names and the "all" alias as positional
// arguments.
func stageArgs(_ *cobra.Command, args []string) error {
	for _, v := range args {
		if !iostages.IsStage(v) {
			return UnknownTargetError(v)
		}
	}
	return nil
}

// expandAll replaces the "all" alias with every stage name.
func expandAll(names []string) []string {
	if !slices.Contains(names, iostages.All) {
		return names
	}
	all := iostages.StageNames()
	return slices.DeleteFunc(all, func(s string) bool {
		return s == iostages.All
	})
}
