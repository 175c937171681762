package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"matrixscreen/internal/config"
	"matrixscreen/internal/experiment"
	"matrixscreen/internal/logging"
	"matrixscreen/internal/scan"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	log        *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger returns the process logger, falling back to a console logger on
// stderr when the configured one cannot be opened.
func (c *commandContext) logger() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console"})
			logger.Warn("falling back to console logging", logging.Error(err))
		}
		c.log = logger
	})
	return c.log
}

// openExperiment indexes root with the configured scan settings.
func (c *commandContext) openExperiment(root string) (*experiment.Experiment, error) {
	cfg := c.configValue()
	if cfg == nil {
		return nil, fmt.Errorf("configuration unavailable")
	}
	root, err := config.ExpandPath(strings.TrimSpace(root))
	if err != nil {
		return nil, err
	}
	return experiment.Open(root, experiment.OpenOptions{
		Scan: scan.Options{
			Extensions: cfg.Scan.Extensions,
			ExcludeDir: cfg.Scan.AdditionalDataDir,
			Logger:     c.logger(),
		},
		Workers: cfg.Scan.ParseWorkers,
		Logger:  c.logger(),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
