package main

import (
	"fmt"
	"os"

	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/spf13/cobra"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export [report-id]",
	Short: "Write a report, or the list of recent reports, as an XLSX workbook",
	Example: `  labreports export 5f0c1f6e-8a51-4a55-9d5e-3f3b3b0f6c2a -o cbc.xlsx
  labreports export --limit 100 -o recent.xlsx`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := stderrLogger(cfg)
		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var b []byte
		if len(args) == 1 {
			id, err := common.ParseID("report_id", args[0])
			if err != nil {
				return err
			}
			b, err = a.exporter.ExportReportXLSX(ctx, id)
			if err != nil {
				return err
			}
		} else {
			b, err = a.exporter.ExportReportsXLSX(ctx, exportLimit)
			if err != nil {
				return err
			}
		}

		if err := os.WriteFile(exportOut, b, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", exportOut, len(b))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "labreport.xlsx", "output file")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 50, "number of reports when exporting the list")
}
