package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/labreports/internal/common"
	"github.com/joseph-ayodele/labreports/internal/labs"
	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

var extractSummary bool

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "OCR a PDF or image and print the extracted records",
	Long: `Run OCR over a lab report and print the response envelope as JSON:

  {"success": true, "data": [{"parameter": "Hemoglobin", "value": "13.5", ...}], "report_id": "..."}

The report is stored like an upload, so it can be fetched or exported later.
The command exits non-zero when the envelope reports a failure.`,
	Args: cobra.ExactArgs(1),
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

		res, err := a.processor.ProcessFile(ctx, args[0])
		return printEnvelope(cmd.OutOrStdout(), processor.NewEnvelope(res, err))
	},
}

var extractTextCmd = &cobra.Command{
	Use:   "extract-text [file|-]",
	Short: "Parse already-extracted text into records (no OCR, no database)",
	Long: `Read OCR text from a file, or from stdin when the argument is "-" or
omitted, and print the records as JSON. Nothing is stored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		table := labs.DefaultTable()
		if cfg.Extract.ReferenceTable != "" {
			if table, err = labs.LoadTable(cfg.Extract.ReferenceTable); err != nil {
				return fmt.Errorf("load reference table: %w", err)
			}
		}

		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		text, err := io.ReadAll(r)
		if err != nil {
			return err
		}

		parse := processor.NewParseStage(stderrLogger(cfg), processor.Config{FailOnEmpty: cfg.Extract.FailOnEmpty}, nil, labs.NewExtractor(table))
		env := textEnvelope(parse, string(text))
		if extractSummary && env.Success {
			s := labs.Summarize(env.Data)
			fmt.Fprintf(cmd.ErrOrStderr(), "%d records: %d normal, %d needs attention, %d unknown\n", s.Total, s.Normal, s.NeedsAttention, s.Unknown)
		}
		return printEnvelope(cmd.OutOrStdout(), env)
	},
}

func init() {
	extractTextCmd.Flags().BoolVar(&extractSummary, "summary", false, "print a status summary to stderr")
}

// textEnvelope parses text without storing it, under the same empty-text and
// empty-result rules as the HTTP /extract endpoint.
func textEnvelope(parse *processor.ParseStage, text string) processor.Envelope {
	if strings.TrimSpace(text) == "" {
		return processor.NewEnvelope(processor.Result{}, common.NewAppError("NO_TEXT", common.MsgNoText, common.ErrNoText))
	}
	records, err := parse.Evaluate(text)
	return processor.NewEnvelope(processor.Result{Records: records}, err)
}

func printEnvelope(w io.Writer, env processor.Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	return nil
}
