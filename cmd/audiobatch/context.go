package main

import (
	"strings"
	"sync"

	"github.com/Skryldev/audiobatch/internal/config"
	"github.com/Skryldev/audiobatch/pkg/logger"
)

type commandContext struct {
	configFlag *string
	verbose    *bool
	logLevel   *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool, logLevel *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		logLevel:   logLevel,
	}
}

// ensureConfig loads the config file once. Flag overrides are applied by
// each command on the returned value.
func (c *commandContext) ensureConfig() (*config.Config, string, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configPath, _, c.configErr = config.Load(path)
	})
	return c.config, c.configPath, c.configErr
}

func (c *commandContext) newLogger(cfg *config.Config) (*logger.Logger, error) {
	opts := logger.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	}
	if c.verbose != nil && *c.verbose {
		opts.Development = true
		opts.Level = "debug"
	}
	if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
		opts.Level = strings.TrimSpace(*c.logLevel)
	}
	return logger.NewWithOptions(opts)
}
