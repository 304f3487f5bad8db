package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/scanner"
)

var envKeys = []string{
	"DOCSCAN_BACKEND", "DOCSCAN_EDGE_LOW", "DOCSCAN_EDGE_HIGH", "DOCSCAN_HOUGH_THRESHOLD",
	"DOCSCAN_OUTPUT_WIDTH", "DOCSCAN_OUTPUT_HEIGHT", "DOCSCAN_AUTO_SIZE", "DOCSCAN_STYLE",
	"DOCSCAN_MAGAZINE_SATURATION", "DOCSCAN_MAX_INPUT_WIDTH", "DOCSCAN_JPEG_QUALITY",
	"DOCSCAN_LOG_LEVEL", "DOCSCAN_LOG_FORMAT", "DOCSCAN_LOG_TIME_FORMAT", "DOCSCAN_LOG_OUTPUT",
}

// clearEnv blanks every DOCSCAN_ variable for the test; getEnv treats empty
// values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, scanner.BackendReference, cfg.Backend)
	assert.Equal(t, 50.0, cfg.EdgeLow)
	assert.Equal(t, 150.0, cfg.EdgeHigh)
	assert.Equal(t, 80, cfg.HoughThreshold)
	assert.Equal(t, 800, cfg.OutputWidth)
	assert.Equal(t, 1000, cfg.OutputHeight)
	assert.Equal(t, enhance.Original, cfg.Style)
	assert.Equal(t, 90, cfg.JPEGQuality)
	assert.Equal(t, "stderr", cfg.LogOutput)
	assert.Equal(t, scanner.DefaultOptions(), cfg.ScanOptions())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCSCAN_BACKEND", "accelerated")
	t.Setenv("DOCSCAN_EDGE_LOW", "30")
	t.Setenv("DOCSCAN_EDGE_HIGH", "90.5")
	t.Setenv("DOCSCAN_HOUGH_THRESHOLD", "120")
	t.Setenv("DOCSCAN_AUTO_SIZE", "true")
	t.Setenv("DOCSCAN_STYLE", "Magazine")
	t.Setenv("DOCSCAN_MAGAZINE_SATURATION", "1")
	t.Setenv("DOCSCAN_MAX_INPUT_WIDTH", "1920")
	t.Setenv("DOCSCAN_JPEG_QUALITY", "75")
	t.Setenv("DOCSCAN_LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	opts := cfg.ScanOptions()
	assert.Equal(t, 30.0, opts.EdgeLow)
	assert.Equal(t, 90.5, opts.EdgeHigh)
	assert.Equal(t, 120, opts.HoughThreshold)
	assert.True(t, opts.AutoSize)
	assert.Equal(t, enhance.Magazine, opts.Style)
	assert.True(t, opts.MagazineSaturation)
	assert.Equal(t, 1920, opts.MaxInputWidth)
	assert.Equal(t, 75, cfg.JPEGQuality)
	assert.Equal(t, "accelerated", cfg.Backend)
	assert.Equal(t, "debug", cfg.GetLoggerConfig().Level)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DOCSCAN_BACKEND", "gpu"},
		{"DOCSCAN_EDGE_LOW", "low"},
		{"DOCSCAN_EDGE_LOW", "200"},
		{"DOCSCAN_HOUGH_THRESHOLD", "-1"},
		{"DOCSCAN_OUTPUT_WIDTH", "0"},
		{"DOCSCAN_AUTO_SIZE", "maybe"},
		{"DOCSCAN_STYLE", "sepia"},
		{"DOCSCAN_JPEG_QUALITY", "101"},
		{"DOCSCAN_MAX_INPUT_WIDTH", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config")
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCSCAN_STYLE=whiteboard\nDOCSCAN_OUTPUT_WIDTH=640\n"), 0o644))
	t.Chdir(dir)
	// godotenv never overrides variables that are set, even to "".
	require.NoError(t, os.Unsetenv("DOCSCAN_STYLE"))
	require.NoError(t, os.Unsetenv("DOCSCAN_OUTPUT_WIDTH"))
	t.Cleanup(func() {
		os.Unsetenv("DOCSCAN_STYLE")
		os.Unsetenv("DOCSCAN_OUTPUT_WIDTH")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, enhance.Whiteboard, cfg.Style)
	assert.Equal(t, 640, cfg.OutputWidth)
}

func TestLoad_NoDotEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	_, err := Load()
	assert.NoError(t, err)
}
