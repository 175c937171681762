package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeStitch()
	if err := c.normalizeCompress(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = append([]string(nil), defaultExtensions...)
	} else {
		exts := make([]string, 0, len(c.Scan.Extensions))
		seen := make(map[string]struct{}, len(c.Scan.Extensions))
		for _, ext := range c.Scan.Extensions {
			normalized := strings.ToLower(strings.TrimSpace(ext))
			if normalized == "" {
				continue
			}
			if !strings.HasPrefix(normalized, ".") {
				normalized = "." + normalized
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			exts = append(exts, normalized)
		}
		if len(exts) == 0 {
			exts = append(exts, defaultExtensions...)
		}
		c.Scan.Extensions = exts
	}
	// the folder name is matched case-sensitively, so only surrounding space is trimmed
	c.Scan.AdditionalDataDir = strings.TrimSpace(c.Scan.AdditionalDataDir)
	if c.Scan.AdditionalDataDir == "" {
		c.Scan.AdditionalDataDir = defaultAdditionalDataDir
	}
	if c.Scan.ParseWorkers <= 0 {
		c.Scan.ParseWorkers = 1
	}
}

func (c *Config) normalizeStitch() {
	c.Stitch.FijiBinary = strings.TrimSpace(c.Stitch.FijiBinary)
	if value, ok := os.LookupEnv("FIJI_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Stitch.FijiBinary = strings.TrimSpace(value)
	}
	if c.Stitch.FijiBinary == "" {
		c.Stitch.FijiBinary = defaultFijiBinary
	}
	if c.Stitch.Workers <= 0 {
		c.Stitch.Workers = 1
	}
	c.Stitch.FusionMethod = strings.TrimSpace(c.Stitch.FusionMethod)
	if c.Stitch.FusionMethod == "" {
		c.Stitch.FusionMethod = defaultFusionMethod
	}
}

func (c *Config) normalizeCompress() error {
	var err error
	if c.Compress.Workers <= 0 {
		c.Compress.Workers = 1
	}
	if c.Compress.OutputDir, err = expandPath(strings.TrimSpace(c.Compress.OutputDir)); err != nil {
		return fmt.Errorf("compress.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
