package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/export"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions, inventory and customers to an Excel workbook",
		Long: `Write transactions, inventory and customers to an Excel workbook, one
sheet each. ID image paths are left out. Without --out the workbook is named
after the current time and written to app.export_dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				path := out
				if path == "" {
					name := fmt.Sprintf("cash_register_%s.xlsx", time.Now().Format("20060102_150405"))
					path = filepath.Join(a.settings.App.ExportDir, name)
				}
				if err := export.ToExcel(cmd.Context(), a.db, path); err != nil {
					a.logger.Error("export failed", "path", path, "error", err)
					return err
				}
				a.logger.Info("export written", "path", path)
				return newPrinter(cmd, opts).emit(map[string]string{"path": path}, func(w io.Writer) {
					fmt.Fprintf(w, "exported to %s\n", path)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "workbook path (.xlsx)")

	return cmd
}
