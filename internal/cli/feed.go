package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/repository"
)

type FeedOptions struct {
	*RootOptions
	User  string
	Limit int
}

func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print a user's merged feed",
		Long: `Print the newest memories across every board the user belongs to.

Examples:
  memories feed --user 5f0c... --limit 20
  memories feed --user 5f0c... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "viewer user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum memories (defaults to config)")

	return cmd
}

func runFeed(cmd *cobra.Command, opts *FeedOptions) error {
	ctx := commandContext(cmd)

	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to database", err)
	}
	defer a.Close()

	memories, err := loadFeed(ctx, a, opts.User, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load feed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(memories, func(w io.Writer) {
		printMemories(w, memories)
	})
}

func loadFeed(ctx context.Context, a *app, userID string, limit int) ([]models.Memory, error) {
	boards, err := a.boards.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.memories.FetchByAccessCodes(ctx, repository.AccessCodes(boards), userID, limit)
}

func printMemories(w io.Writer, memories []models.Memory) {
	if len(memories) == 0 {
		fmt.Fprintln(w, "No memories yet.")
		return
	}
	for _, m := range memories {
		caption := ""
		if m.Caption != nil {
			caption = strings.TrimSpace(*m.Caption)
		}
		liked := " "
		if m.ViewerHasLiked {
			liked = "*"
		}
		fmt.Fprintf(w, "%s  %-8s %s%3d  %s  %s\n",
			m.EventDate.Format("2006-01-02"), m.Kind, liked, m.LikeCount, m.ID, caption)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
