package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/clipreel/clipreel/internal/config"
	"github.com/clipreel/clipreel/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.EnvConfig
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.EnvConfig, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.New(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		level := "info"
		if cfg, err := c.ensureConfig(); err == nil {
			level = cfg.LogLevel()
		}
		c.logger = logging.NewLogger(level)
	})
	return c.logger
}
