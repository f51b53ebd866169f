package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arnold/memories-api/internal/drafts"
	"github.com/arnold/memories-api/internal/models"
)

type DraftsOptions struct {
	*RootOptions
	User string
	Sync bool
}

func NewDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DraftsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and edit locally cached drafts",
		Long: `Drafts live in a local file under the drafts directory. With --sync
changes are also mirrored to the remote drafts table for --user.`,
	}
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "owner user id, required with --sync")
	cmd.PersistentFlags().BoolVar(&opts.Sync, "sync", false, "mirror changes to the remote store")

	cmd.AddCommand(newDraftsListCommand(opts))
	cmd.AddCommand(newDraftsSaveCommand(opts))
	cmd.AddCommand(newDraftsRemoveCommand(opts))
	cmd.AddCommand(newDraftsWatchCommand(opts))
	return cmd
}

// openDrafts returns the local draft store and, with --sync, a cleanup that
// waits for background syncs and closes the database.
func openDrafts(cmd *cobra.Command, opts *DraftsOptions) (*drafts.Store, *drafts.FileStorage, func(), error) {
	storage, err := drafts.NewFileStorage(opts.Config.DraftsDir)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open drafts directory", err)
	}
	if !opts.Sync {
		return drafts.NewStore(storage, nil, opts.User), storage, func() {}, nil
	}
	if opts.User == "" {
		return nil, nil, nil, NewExitError(ExitCommandError, "--user is required with --sync")
	}

	a, err := openApp(commandContext(cmd), opts.Config)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to connect to database", err)
	}
	s := drafts.NewStore(storage, a.drafts, opts.User)
	return s, storage, func() {
		s.Wait()
		a.Close()
	}, nil
}

func newDraftsListCommand(opts *DraftsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts, most recently edited first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, done, err := openDrafts(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			list, err := s.List()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read drafts", err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(list, func(w io.Writer) { printDrafts(w, list) })
		},
	}
}

func newDraftsSaveCommand(opts *DraftsOptions) *cobra.Command {
	var (
		id      string
		caption string
		boardID string
		kind    string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or replace a draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, done, err := openDrafts(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			if id == "" {
				id = uuid.NewString()
			}
			d := models.Draft{ID: id}
			if existing, found, err := s.Load(commandContext(cmd), id); err == nil && found {
				d = existing
			}
			if cmd.Flags().Changed("caption") {
				d.Memory.Caption = &caption
			}
			if cmd.Flags().Changed("kind") {
				k := models.MemoryKind(kind)
				if !k.Valid() {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q", kind))
				}
				d.Memory.Kind = &k
			}
			if cmd.Flags().Changed("board") {
				d.BoardID = &boardID
			}
			d.LastUpdated = time.Now().UTC()

			saved, err := s.Save(d)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to save draft", err)
			}
			s.SyncToRemote(commandContext(cmd), saved)

			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(saved, func(w io.Writer) { fmt.Fprintf(w, "Saved draft %s\n", saved.ID) })
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "draft id (generated when empty)")
	cmd.Flags().StringVar(&caption, "caption", "", "memory caption")
	cmd.Flags().StringVar(&boardID, "board", "", "target board id")
	cmd.Flags().StringVar(&kind, "kind", "", "memory kind (photo|video|note|carousel)")
	return cmd
}

func newDraftsRemoveCommand(opts *DraftsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Discard a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, done, err := openDrafts(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			if err := s.Discard(commandContext(cmd), args[0]); err != nil {
				return WrapExitError(ExitFailure, "failed to discard draft", err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]string{"discarded": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Discarded draft %s\n", args[0])
			})
		},
	}
}

func newDraftsWatchCommand(opts *DraftsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the draft list whenever another process changes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, storage, done, err := openDrafts(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			show := func() {
				list, err := s.List()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "read drafts: %v\n", err)
					return
				}
				_ = out.Success(list, func(w io.Writer) { printDrafts(w, list) })
			}

			changed := make(chan struct{}, 1)
			if err := storage.Watch(ctx, drafts.StorageKey, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			}); err != nil {
				return WrapExitError(ExitCommandError, "failed to watch drafts", err)
			}

			show()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changed:
					show()
				}
			}
		},
	}
}

func printDrafts(w io.Writer, list []models.Draft) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No drafts.")
		return
	}
	for _, d := range list {
		caption := ""
		if d.Memory.Caption != nil {
			caption = *d.Memory.Caption
		}
		fmt.Fprintf(w, "%s  %s  %s\n", d.LastUpdated.Local().Format("2006-01-02 15:04"), d.ID, caption)
	}
}
