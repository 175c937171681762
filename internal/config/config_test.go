package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"

	"matrixscreen/internal/config"
	"matrixscreen/internal/services"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FIJI_BINARY", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "matrixscreen", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.OutputDir != "" {
		t.Fatalf("expected empty output dir, got %q", cfg.Paths.OutputDir)
	}
	if diff := cmp.Diff([]string{".tif", ".tiff", ".png", ".xml"}, cfg.Scan.Extensions); diff != "" {
		t.Fatalf("unexpected extensions (-want +got):\n%s", diff)
	}
	if cfg.Scan.AdditionalDataDir != "AdditionalData" {
		t.Fatalf("unexpected additional data dir: %q", cfg.Scan.AdditionalDataDir)
	}
	if cfg.Stitch.TileWidth != 512 || cfg.Stitch.TileHeight != 512 {
		t.Fatalf("unexpected tile size: %dx%d", cfg.Stitch.TileWidth, cfg.Stitch.TileHeight)
	}
	if cfg.Stitch.Overlap != 0.1 {
		t.Fatalf("unexpected overlap: %v", cfg.Stitch.Overlap)
	}
	if cfg.FijiBinary() != "ImageJ-linux64" {
		t.Fatalf("unexpected fiji binary: %q", cfg.FijiBinary())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.Paths.LogDir); err != nil || !info.IsDir() {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "matrixscreen.toml")
	t.Setenv("FIJI_BINARY", "")

	type payload struct {
		Scan struct {
			Extensions []string `toml:"extensions"`
		} `toml:"scan"`
		Stitch struct {
			TileWidth  int     `toml:"tile_width"`
			TileHeight int     `toml:"tile_height"`
			Overlap    float64 `toml:"overlap"`
			FijiBinary string  `toml:"fiji_binary"`
		} `toml:"stitch"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Scan.Extensions = []string{"TIF", ".Png", "tif", " "}
	custom.Stitch.TileWidth = 1024
	custom.Stitch.TileHeight = 768
	custom.Stitch.Overlap = 0.15
	custom.Stitch.FijiBinary = "/opt/fiji/ImageJ"
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if diff := cmp.Diff([]string{".tif", ".png"}, cfg.Scan.Extensions); diff != "" {
		t.Fatalf("unexpected extensions (-want +got):\n%s", diff)
	}
	if cfg.Stitch.TileWidth != 1024 || cfg.Stitch.TileHeight != 768 {
		t.Fatalf("unexpected tile size: %dx%d", cfg.Stitch.TileWidth, cfg.Stitch.TileHeight)
	}
	if cfg.Stitch.Overlap != 0.15 {
		t.Fatalf("unexpected overlap: %v", cfg.Stitch.Overlap)
	}
	if cfg.FijiBinary() != "/opt/fiji/ImageJ" {
		t.Fatalf("unexpected fiji binary: %q", cfg.FijiBinary())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Stitch.Workers != config.Default().Stitch.Workers {
		t.Fatalf("expected default stitch workers, got %d", cfg.Stitch.Workers)
	}
}

func TestEnvFijiBinaryOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "matrixscreen.toml")
	if err := os.WriteFile(configPath, []byte("[stitch]\nfiji_binary = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FIJI_BINARY", "from-env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FijiBinary() != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.FijiBinary())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "matrixscreen.toml")
	if err := os.WriteFile(configPath, []byte("[stitch]\ntile_widht = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected error for misspelled key")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "additional_data_dir") {
		t.Fatalf("sample config missing scan section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Stitch.TileWidth != 512 {
		t.Fatalf("expected sample tile width 512, got %d", cfg.Stitch.TileWidth)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero tile width", func(c *config.Config) { c.Stitch.TileWidth = 0 }},
		{"negative tile height", func(c *config.Config) { c.Stitch.TileHeight = -1 }},
		{"overlap of one", func(c *config.Config) { c.Stitch.Overlap = 1 }},
		{"negative overlap", func(c *config.Config) { c.Stitch.Overlap = -0.1 }},
		{"zero timeout", func(c *config.Config) { c.Stitch.TimeoutSeconds = 0 }},
		{"nested metadata dir", func(c *config.Config) { c.Scan.AdditionalDataDir = "a/b" }},
		{"no extensions", func(c *config.Config) { c.Scan.Extensions = nil }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
