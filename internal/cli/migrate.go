package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/database"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to database", err)
			}
			if err := database.Migrate(db); err != nil {
				return WrapExitError(ExitCommandError, "failed to migrate database", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]bool{"migrated": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Schema is up to date.")
			})
		},
	}
}
