package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/ics"
	"github.com/roach88/slotswap/internal/query"
	"github.com/roach88/slotswap/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Email  string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's slots as an iCalendar feed",
		Long: `Write every slot owned by the user as an iCalendar (RFC 5545) document.

Examples:
  slotswap export --user alice@example.com
  slotswap export --user alice@example.com -o alice.ics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "user", "", "email of the user to export (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	var user domain.User
	err = st.View(ctx, func(tx *store.Tx) error {
		var err error
		user, err = tx.Users.ByEmail(ctx, opts.Email)
		return err
	})
	if err != nil {
		return out.Refused("export failed", err)
	}

	events, err := query.New(st).MyEvents(ctx, user.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list events", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer f.Close()
		w = f
	}

	if err := ics.Encode(w, events, time.Now()); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode calendar", err)
	}
	if opts.Output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ wrote %d event(s) to %s\n", len(events), opts.Output)
	}
	return nil
}
