package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gnames/bioclim/pkg/errcode"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rasterDir writes two tiny bands that do not need network access.
func rasterDir(t *testing.T) string {
	dir := t.TempDir()
	for i, vals := range []string{"1 2", "10 -9999"} {
		data := "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\n" +
			"cellsize 1\nNODATA_value -9999\n" + vals + "\n"
		name := filepath.Join(dir, "bio_"+string(rune('1'+i))+".asc")
		require.NoError(t, os.WriteFile(name, []byte(data), 0644))
	}
	return dir
}

func TestGetRunCmd_Flags(t *testing.T) {
	cmd := getRunCmd()
	assert.Equal(t, "run [stages...]", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	flag := cmd.Flags().Lookup("rebuild")
	require.NotNil(t, flag)
	assert.Equal(t, "r", flag.Shorthand)

	flag = cmd.Flags().Lookup("jobs")
	require.NotNil(t, flag)
	assert.Equal(t, "j", flag.Shorthand)
}

func TestRun_UnknownStage(t *testing.T) {
	setHome(t)
	_, err := execute(t, "run", "nowhere")
	require.Error(t, err)

	var gnErr *gn.Error
	require.True(t, errors.As(err, &gnErr))
	assert.Equal(t, errcode.PipelineUnknownStageError, gnErr.Code)
}

// TestRun_Raster builds raster stages, then rebuilds one of them.
func TestRun_Raster(t *testing.T) {
	_, data := setHome(t)
	t.Setenv("BIOCLIM_RASTER_DIR", rasterDir(t))

	out, err := execute(t, "run", "stacked-raster", "--jobs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "raster-metadata")
	assert.Contains(t, out, "completed")
	assert.Equal(t, 2, cfg.JobsNumber)

	meta := filepath.Join(data, "raster-metadata.json")
	stack := filepath.Join(data, "stacked-raster-data.bcs")
	assert.FileExists(t, meta)
	assert.FileExists(t, stack)

	info, err := os.Stat(meta)
	require.NoError(t, err)
	before := info.ModTime()

	out, err = execute(t, "run", "stacked-raster", "-r", "stacked-raster")
	require.NoError(t, err)
	assert.Contains(t, out, "cached")
	assert.FileExists(t, stack)

	info, err = os.Stat(meta)
	require.NoError(t, err)
	assert.Equal(t, before, info.ModTime(), "metadata is not rebuilt")
}

// TestRun_FailedStage verifies the command fails when rasters are
// missing.
func TestRun_FailedStage(t *testing.T) {
	setHome(t)
	t.Setenv("BIOCLIM_RASTER_DIR", filepath.Join(t.TempDir(), "none"))

	out, err := execute(t, "run", "stacked-raster")
	require.Error(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "blocked")
}

func TestExpandAll(t *testing.T) {
	assert.Equal(t, []string{"search"}, expandAll([]string{"search"}))
	all := expandAll([]string{"all"})
	assert.Contains(t, all, "search")
	assert.Contains(t, all, "joined-sqlite")
	assert.NotContains(t, all, "all")
}
