package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/audioslides/internal/config"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

// loadConfig reads file and environment settings, then applies the
// persistent logging flags. Command flags are applied by each command.
func (c *commandContext) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, err := config.Load(cmd.Context(), path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = *c.logLevelFlag
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = *c.logFormatFlag
	}
	return cfg, nil
}
