// Package cli provides the command-line interface for the breakeven analyzer.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	errWriter    io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		errWriter:    cmd.ErrOrStderr(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !color.NoColor && cmd.OutOrStdout() == os.Stdout,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Print prints formatted text.
func (o *Output) Print(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Println prints a line.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints formatted text.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.Println(o.paint(fmt.Sprintf(format, args...), color.FgGreen))
}

// Error prints a one-line error message in red to the error stream.
func (o *Output) Error(format string, args ...interface{}) {
	fmt.Fprintln(o.errWriter, o.paint(fmt.Sprintf(format, args...), color.FgRed))
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.Println(o.paint(fmt.Sprintf(format, args...), color.FgYellow))
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.Println(o.paint(fmt.Sprintf(format, args...), color.FgCyan))
}

// Bold prints bold text.
func (o *Output) Bold(format string, args ...interface{}) {
	o.Println(o.paint(fmt.Sprintf(format, args...), color.Bold))
}

// Dim prints dimmed text.
func (o *Output) Dim(format string, args ...interface{}) {
	o.Println(o.paint(fmt.Sprintf(format, args...), color.Faint))
}

func (o *Output) paint(text string, attrs ...color.Attribute) string {
	if !o.colorEnabled {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.paint(text, color.FgGreen) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.paint(text, color.FgRed) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.paint(text, color.FgYellow) }

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string { return o.paint(text, color.FgCyan) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.paint(text, color.Bold) }

// PnL colors a payoff green when positive and red when negative.
func (o *Output) PnL(v float64) string {
	text := utils.FormatPnL(v)
	switch {
	case v > 0:
		return o.Green(text)
	case v < 0:
		return o.Red(text)
	default:
		return text
	}
}

// Amount renders a maximum profit or loss.
func (o *Output) Amount(a models.Amount) string {
	if a.IsUnlimited() {
		return o.Yellow("Unlimited")
	}
	return utils.FormatIndianCurrency(a.Float())
}

// Table collects rows and prints them as aligned columns. Cells may
// carry color codes; widths are measured without them.
type Table struct {
	out     *Output
	columns []string
	rows    [][]string
}

// NewTable starts a table with the given column headers.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{out: output, columns: headers}
}

// AddRow appends a row. Cells beyond the header count are dropped.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the header, a rule and the rows.
func (t *Table) Render() {
	if len(t.columns) == 0 {
		return
	}
	widths := t.widths()

	header := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, h := range t.columns {
		header[i] = t.out.BoldText(pad(h, widths[i]))
		rule[i] = strings.Repeat("-", widths[i])
	}
	t.line(header)
	t.out.Println(t.out.paint(strings.Join(rule, "  "), color.Faint))

	for _, row := range t.rows {
		cells := make([]string, 0, len(widths))
		for i := 0; i < len(row) && i < len(widths); i++ {
			cells = append(cells, pad(row[i], widths[i]))
		}
		t.line(cells)
	}
}

func (t *Table) widths() []int {
	w := make([]int, len(t.columns))
	for i, h := range t.columns {
		w[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(w); i++ {
			w[i] = max(w[i], visibleLen(row[i]))
		}
	}
	return w
}

func (t *Table) line(cells []string) {
	t.out.Println(strings.TrimRight(strings.Join(cells, "  "), " "))
}

func pad(cell string, width int) string {
	if n := width - visibleLen(cell); n > 0 {
		return cell + strings.Repeat(" ", n)
	}
	return cell
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes color escape sequences.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func formatPrices(prices []float64) string {
	if len(prices) == 0 {
		return "none"
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = utils.FormatPrice(p)
	}
	return strings.Join(parts, ", ")
}

func formatDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
