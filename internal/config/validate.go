package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateStitch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	if len(c.Scan.Extensions) == 0 {
		return errors.New("scan.extensions must include at least one extension")
	}
	if strings.ContainsAny(c.Scan.AdditionalDataDir, `/\`) {
		return fmt.Errorf("scan.additional_data_dir must be a folder name, got %q", c.Scan.AdditionalDataDir)
	}
	return nil
}

func (c *Config) validateStitch() error {
	if err := ensurePositiveMap(map[string]int{
		"stitch.tile_width":      c.Stitch.TileWidth,
		"stitch.tile_height":     c.Stitch.TileHeight,
		"stitch.timeout_seconds": c.Stitch.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Stitch.Overlap < 0 || c.Stitch.Overlap >= 1 {
		return errors.New("stitch.overlap must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
