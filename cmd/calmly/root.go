package main

import (
	"context"

	"github.com/spf13/cobra"

	"calmly/internal/config"
)

type rootOptions struct {
	envFile   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "calmly",
		Short: "Real-time voice sessions with Hume EVI",
		Long: `Stream microphone audio to the Hume EVI voice service and speak its replies.

Configuration comes from the environment (HUME_API_KEY, HUME_CONFIG_ID,
CALMLY_* settings). Values in the env file are used only when the
variable is not already set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with fallback settings")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override CALMLY_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override CALMLY_LOG_FORMAT (console or json)")

	cmd.AddCommand(newRunCmd(opts), newSayCmd(opts))
	return cmd
}

func (o *rootOptions) load(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(ctx, o.envFile)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg, nil
}
