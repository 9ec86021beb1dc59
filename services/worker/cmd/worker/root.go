package main

import (
	"sync"

	"github.com/spf13/cobra"

	"yourarch/internal/util"
	"yourarch/services/worker/internal/config"
)

type commandContext struct {
	configPath *string

	once sync.Once
	cfg  config.FileConfig
	err  error
}

func (c *commandContext) config() (config.FileConfig, error) {
	c.once.Do(func() {
		c.cfg, c.err = config.Load(*c.configPath)
		if c.err == nil {
			util.InitLogger("caption-worker", c.cfg.LogLevel)
		}
	})
	return c.cfg, c.err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configPath: &configFlag}

	runCmd := newRunCommand(ctx)
	rootCmd := &cobra.Command{
		Use:           "worker",
		Short:         "Caption ingestion worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", config.ConfigPath, "Configuration file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newEnqueueCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	return rootCmd
}
