package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Create the SQLite database if needed and apply pending schema migrations.

Opening the database always migrates it; this command does only that and
reports the resulting schema version.

Example:
  slotswap migrate --db ./slotswap.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer closeStore()

			version, err := st.SchemaVersion(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read schema version", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			return out.Success(
				map[string]any{"database": cfg.DatabasePath, "schema_version": version},
				fmt.Sprintf("✓ %s at schema version %d", cfg.DatabasePath, version),
			)
		},
	}
}
