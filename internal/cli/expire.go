package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/engine"
)

// ExpireOptions holds flags for the expire command.
type ExpireOptions struct {
	*RootOptions
	OlderThan time.Duration
}

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpireOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Cancel abandoned PENDING swap requests once",
		Long: `Cancel every PENDING swap request older than --older-than and unlock
its slots. This is one sweep of the worker "serve" runs when PENDING_TTL is
set; use it from cron when the server runs without one. Expired requests
are published as swap.expired when AMQP_URL is set.

Example:
  slotswap expire --db ./slotswap.db --older-than 72h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpire(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.OlderThan, "older-than", 0, "age after which a PENDING request is cancelled (required)")
	_ = cmd.MarkFlagRequired("older-than")

	return cmd
}

func runExpire(opts *ExpireOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := openPublisher(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to broker", err)
	}
	defer publisher.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	expired, err := engine.New(st, engine.WithPublisher(publisher)).ExpirePending(cmd.Context(), opts.OlderThan)
	if err != nil {
		return out.Refused("expire failed", err)
	}

	text := fmt.Sprintf("✓ expired %d request(s)", len(expired))
	for _, req := range expired {
		text += fmt.Sprintf("\n  #%d event %d <-> event %d (created %s)",
			req.ID, req.RequesterEventID, req.ResponderEventID, req.CreatedAt.Format(time.RFC3339))
	}
	if expired == nil {
		expired = []domain.SwapRequest{}
	}
	return out.Success(map[string]any{"expired": expired}, text)
}
