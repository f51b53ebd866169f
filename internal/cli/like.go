package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/likes"
	"github.com/arnold/memories-api/internal/models"
)

type LikeOptions struct {
	*RootOptions
	User string
}

// LikeResult reports a toggle. Expected is what the user's own flip alone
// would give; Concurrent is set when other likes landed at the same time.
type LikeResult struct {
	MemoryID   string           `json:"memoryId"`
	Before     models.LikeState `json:"before"`
	Expected   models.LikeState `json:"expected"`
	State      models.LikeState `json:"state"`
	Concurrent bool             `json:"concurrent"`
}

func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LikeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "like <memory-id>",
		Short: "Toggle a user's like on a memory",
		Long: `Flip the user's like on a memory and print the resulting like state.

Examples:
  memories like 9a1e... --user 5f0c...
  memories like 9a1e... --user 5f0c... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app) error {
				return runLike(cmd, a, opts, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "acting user id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runLike(cmd *cobra.Command, a *app, opts *LikeOptions, memoryID string) error {
	ctx := commandContext(cmd)

	memory, err := a.memories.Get(ctx, memoryID, opts.User)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load memory", err)
	}
	before := models.LikeState{Count: memory.LikeCount, ViewerHasLiked: memory.ViewerHasLiked}
	expected := likes.Optimistic(before)

	server, err := a.memories.ToggleLike(ctx, memoryID, opts.User)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to toggle like", err)
	}

	result := LikeResult{
		MemoryID: memoryID,
		Before:   before,
		Expected: expected,
		State:    likes.Reconcile(expected, server),
	}
	result.Concurrent = result.State != expected

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result, func(w io.Writer) {
		verb := "Unliked"
		if result.State.ViewerHasLiked {
			verb = "Liked"
		}
		fmt.Fprintf(w, "%s %s (%d likes)\n", verb, memoryID, result.State.Count)
		if result.Concurrent {
			fmt.Fprintf(w, "Others liked at the same time; expected %d.\n", expected.Count)
		}
	})
}
