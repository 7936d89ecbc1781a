package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentflare-ai/go-xsdfix"
	"github.com/agentflare-ai/go-xsdfix/errlog"
)

var (
	errorsOut      string
	errorsFormat   string
	errorsMaxFiles int
)

var errorsCmd = &cobra.Command{
	Use:   "errors <errors-dir>",
	Short: "Summarize validation reports",
	Long: `Summarize the validation reports (*.xml) in <errors-dir> by category,
element and message. The text format prints per-category totals followed by
one diagnostic per element; json and yaml export the full summary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := errlog.Summarize(args[0], nil)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		colored := errorsOut == "" && useColor()
		switch errorsFormat {
		case "text":
			writeText(&buf, summary, colored)
		case "json":
			err = summary.WriteJSON(&buf)
		case "yaml":
			err = summary.WriteYAML(&buf)
		default:
			return fmt.Errorf("unknown format %q, expected text, json or yaml", errorsFormat)
		}
		if err != nil {
			return err
		}

		if errorsOut == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		return xsdfix.WriteFileAtomic(errorsOut, buf.Bytes(), 0o644)
	},
}

func writeText(w io.Writer, summary *errlog.Summary, colored bool) {
	ef := &errlog.ErrorFormatter{Color: colored, MaxFiles: errorsMaxFiles}
	io.WriteString(w, ef.Report(summary))
	for _, diag := range errlog.Diagnostics(summary) {
		io.WriteString(w, ef.Format(diag))
		io.WriteString(w, "\n")
	}
}

func init() {
	errorsCmd.Flags().StringVarP(&errorsOut, "output", "o", "", "Write to a file instead of stdout")
	errorsCmd.Flags().StringVar(&errorsFormat, "format", "text", "Output format: text|json|yaml")
	errorsCmd.Flags().IntVar(&errorsMaxFiles, "max-files", 5, "Files listed per diagnostic (0 lists all)")
	rootCmd.AddCommand(errorsCmd)
}
