package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/models"
)

type BoardsOptions struct {
	*RootOptions
	User string
}

func NewBoardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BoardsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List, create and join boards",
	}
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "acting user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the user's boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app) error {
				boards, err := a.boards.ListForUser(commandContext(cmd), opts.User)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list boards", err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(boards, func(w io.Writer) {
					if len(boards) == 0 {
						fmt.Fprintln(w, "No boards yet.")
					}
					for _, b := range boards {
						printBoard(w, b)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a board owned by the user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app) error {
				board, err := a.boards.Create(commandContext(cmd), args[0], opts.User)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to create board", err)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(board, func(w io.Writer) { printBoard(w, board) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "join <share-code>",
		Short: "Join a board by its share code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app) error {
				result, err := a.boards.JoinByShareCode(commandContext(cmd), args[0], opts.User)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to join board", err)
				}
				if !result.Success {
					return NewExitError(ExitFailure, result.Message)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(result, func(w io.Writer) { fmt.Fprintln(w, result.Message) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "leave <board-id>",
		Short: "Leave a board; the last member leaving deletes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app) error {
				result, err := a.boards.RemoveMember(commandContext(cmd), args[0], opts.User)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to leave board", err)
				}
				if !result.Success {
					return NewExitError(ExitFailure, result.Message)
				}
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(result, func(w io.Writer) { fmt.Fprintln(w, result.Message) })
			})
		},
	})

	return cmd
}

func withApp(cmd *cobra.Command, opts *RootOptions, fn func(a *app) error) error {
	a, err := openApp(commandContext(cmd), opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to database", err)
	}
	defer a.Close()
	return fn(a)
}

func printBoard(w io.Writer, b models.Board) {
	fmt.Fprintf(w, "%s  %-24s access=%s share=%s members=%d\n", b.ID, b.Name, b.AccessCode, b.ShareCode, len(b.MemberIDs))
}
