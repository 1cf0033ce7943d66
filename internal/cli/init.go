package cli

import (
	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/db"
)

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration and create the database",
		Long: `Write a default configuration if none exists, otherwise open the
configured database, applying any pending schema migrations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				version, err := db.SchemaVersion(a.db)
				if err != nil {
					return err
				}
				return newPrinter(cmd, opts).messagef("database %s ready at schema version %d",
					a.settings.App.DatabaseFile, version)
			})
		},
	}
}
