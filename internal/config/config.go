// Package config reads docscan settings from DOCSCAN_* environment
// variables. An optional .env file in the working directory is loaded
// first; variables already set in the environment take precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/logger"
	"github.com/ironsheep/docscan-mcp/internal/raster"
	"github.com/ironsheep/docscan-mcp/internal/scanner"
)

// Config holds the process configuration.
type Config struct {
	// Pipeline
	Backend            string
	EdgeLow            float64
	EdgeHigh           float64
	HoughThreshold     int
	OutputWidth        int
	OutputHeight       int
	AutoSize           bool
	Style              enhance.Style
	MagazineSaturation bool
	MaxInputWidth      int

	// Output
	JPEGQuality int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the .env file, if present, and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (*Config, error) {
	defaults := scanner.DefaultOptions()
	p := &envParser{}

	config := &Config{
		Backend:            getEnv("DOCSCAN_BACKEND", scanner.BackendReference),
		EdgeLow:            p.getFloat("DOCSCAN_EDGE_LOW", defaults.EdgeLow),
		EdgeHigh:           p.getFloat("DOCSCAN_EDGE_HIGH", defaults.EdgeHigh),
		HoughThreshold:     p.getInt("DOCSCAN_HOUGH_THRESHOLD", defaults.HoughThreshold),
		OutputWidth:        p.getInt("DOCSCAN_OUTPUT_WIDTH", defaults.OutputWidth),
		OutputHeight:       p.getInt("DOCSCAN_OUTPUT_HEIGHT", defaults.OutputHeight),
		AutoSize:           p.getBool("DOCSCAN_AUTO_SIZE", false),
		MagazineSaturation: p.getBool("DOCSCAN_MAGAZINE_SATURATION", false),
		MaxInputWidth:      p.getInt("DOCSCAN_MAX_INPUT_WIDTH", 0),
		JPEGQuality:        p.getInt("DOCSCAN_JPEG_QUALITY", raster.DefaultJPEGQuality),
		LogLevel:           getEnv("DOCSCAN_LOG_LEVEL", "info"),
		LogFormat:          getEnv("DOCSCAN_LOG_FORMAT", "console"),
		LogTimeFormat:      getEnv("DOCSCAN_LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:          getEnv("DOCSCAN_LOG_OUTPUT", "stderr"),
	}
	style, err := enhance.ParseStyle(getEnv("DOCSCAN_STYLE", enhance.Original.String()))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("DOCSCAN_STYLE: %w", err))
	}
	config.Style = style

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := scanner.NewBackend(c.Backend); err != nil {
		return fmt.Errorf("DOCSCAN_BACKEND: %w", err)
	}
	if c.EdgeLow < 0 || c.EdgeHigh < c.EdgeLow {
		return fmt.Errorf("edge thresholds must satisfy 0 <= low <= high, got %v and %v", c.EdgeLow, c.EdgeHigh)
	}
	if c.HoughThreshold < 0 {
		return fmt.Errorf("DOCSCAN_HOUGH_THRESHOLD must not be negative")
	}
	if c.OutputWidth < 1 || c.OutputHeight < 1 {
		return fmt.Errorf("output size must be positive, got %dx%d", c.OutputWidth, c.OutputHeight)
	}
	if c.MaxInputWidth < 0 {
		return fmt.Errorf("DOCSCAN_MAX_INPUT_WIDTH must not be negative")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("DOCSCAN_JPEG_QUALITY must be in 1..100, got %d", c.JPEGQuality)
	}
	return nil
}

// ScanOptions returns the configured pipeline options.
func (c *Config) ScanOptions() scanner.Options {
	return scanner.Options{
		EdgeLow:            c.EdgeLow,
		EdgeHigh:           c.EdgeHigh,
		HoughThreshold:     c.HoughThreshold,
		OutputWidth:        c.OutputWidth,
		OutputHeight:       c.OutputHeight,
		AutoSize:           c.AutoSize,
		Style:              c.Style,
		MagazineSaturation: c.MagazineSaturation,
		MaxInputWidth:      c.MaxInputWidth,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envParser collects parse errors so Load reports every bad variable at
// once.
type envParser struct {
	errs []error
}

func (p *envParser) getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func (p *envParser) getFloat(key string, defaultValue float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func (p *envParser) getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}
