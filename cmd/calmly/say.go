package main

import (
	"strings"

	"github.com/spf13/cobra"

	"calmly/internal/speech"
)

func newSayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Speak text through the configured speech command",
		Long: `Speak text the same way session replies are spoken. Useful for checking
CALMLY_SPEECH_COMMAND and CALMLY_SPEECH_ARGS.

Example:
  calmly say "breathe in"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			speaker := speech.NewCommandSpeaker(cfg.Speech.Command, cfg.Speech.Args...)
			return speaker.Speak(cmd.Context(), strings.Join(args, " "))
		},
	}
}
