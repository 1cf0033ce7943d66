package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/payment"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected input or refused sale
	ExitCommandError = 2 // Broken configuration, database or device
)

// ExitCode maps a command error onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, domain.ErrConfig), errors.Is(err, domain.ErrStorage), errors.Is(err, domain.ErrDevice):
		return ExitCommandError
	case payment.OutcomeOf(err) == payment.OutcomeAuth:
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// printer renders command results as aligned text or JSON.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(cmd *cobra.Command, opts *RootOptions) *printer {
	return &printer{format: opts.Format, w: cmd.OutOrStdout()}
}

// emit writes v as JSON, or lets text render it for a terminal.
func (p *printer) emit(v any, text func(w io.Writer)) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

// newTable is a borderless, left-aligned table. header may be empty for
// key/value blocks.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetRowLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

func (p *printer) messagef(format string, args ...any) error {
	if p.format == "json" {
		return p.emit(map[string]string{"message": fmt.Sprintf(format, args...)}, nil)
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}
