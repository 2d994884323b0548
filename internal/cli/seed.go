package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.cue>",
		Short: "Load users, slots and swaps from a CUE fixture",
		Long: `Validate a CUE seed file against the #Seed schema and write it through
the negotiation engine: users first, then events, then swaps with their
optional response.

Example:
  slotswap seed --db ./dev.db internal/seed/testdata/demo.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			f, err := seed.LoadFile(args[0])
			if err != nil {
				_ = out.Error("E_SEED_INVALID", err.Error(), nil)
				return WrapExitError(ExitCommandError, "invalid seed file", err)
			}

			cfg, err := loadConfig(rootOpts)
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

			sum, err := seed.Apply(cmd.Context(), st, engine.New(st, engine.WithPublisher(publisher)), f)
			if err != nil {
				return out.Refused(fmt.Sprintf("seed stopped after %d user(s), %d event(s), %d swap(s)",
					sum.Users, sum.Events, sum.Swaps), err)
			}
			return out.Success(sum, fmt.Sprintf("✓ seeded %d user(s), %d event(s), %d swap(s)",
				sum.Users, sum.Events, sum.Swaps))
		},
	}
}
