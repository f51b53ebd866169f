package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/config"
	"github.com/arnold/memories-api/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Shared memory boards",
		Long:  "Serve and administer the shared memories API: boards, feeds, likes and drafts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			config.LoadDotEnv()
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			logger.Init(cfg.Env, cfg.LogLevel)
			opts.Config = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewBoardsCommand(opts))
	cmd.AddCommand(NewDraftsCommand(opts))
	cmd.AddCommand(NewLikeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
