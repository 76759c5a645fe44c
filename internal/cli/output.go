package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"smartscan/internal/database"
	"smartscan/internal/handlers"
	"smartscan/internal/parser"
	"smartscan/internal/workers"
)

var (
	validStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// OutputFormatter handles different output formats
type OutputFormatter struct {
	format   string
	quiet    bool
	useColor bool
	out      io.Writer
	errOut   io.Writer
}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter(format string, quiet bool) *OutputFormatter {
	return NewOutputFormatterWithColor(format, quiet, false)
}

// NewOutputFormatterWithColor creates a formatter that colours statuses when stdout is
// a terminal that supports it and noColor is false
func NewOutputFormatterWithColor(format string, quiet, noColor bool) *OutputFormatter {
	return &OutputFormatter{
		format:   format,
		quiet:    quiet,
		useColor: !noColor && stdoutSupportsColor(),
		out:      os.Stdout,
		errOut:   os.Stderr,
	}
}

func stdoutSupportsColor() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// SetOutput redirects normal and error output
func (f *OutputFormatter) SetOutput(out, errOut io.Writer) {
	f.out = out
	f.errOut = errOut
}

// UseColor reports whether styled output is enabled
func (f *OutputFormatter) UseColor() bool {
	return f.useColor
}

func (f *OutputFormatter) render(style lipgloss.Style, s string) string {
	if !f.useColor {
		return s
	}
	return style.Render(s)
}

func (f *OutputFormatter) status(status *string) string {
	switch {
	case status == nil:
		return f.render(mutedStyle, "none")
	case *status == database.StatusValid:
		return f.render(validStyle, *status)
	default:
		return f.render(invalidStyle, *status)
	}
}

func (f *OutputFormatter) writeJSON(v interface{}) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintUpload prints the outcome of an image upload
func (f *OutputFormatter) PrintUpload(resp *handlers.UploadResponse) error {
	if f.quiet {
		if id := resp.OCRResult.ContainerID; id != nil {
			fmt.Fprintln(f.out, *id)
		}
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(resp)
	case "table":
		ocr := resp.OCRResult
		fmt.Fprintf(f.out, "Scan ID: %d\n", resp.ScanID)
		fmt.Fprintf(f.out, "File: %s (%.2f KB)\n", resp.Filename, resp.SizeKB)
		fmt.Fprintf(f.out, "Container ID: %s\n", orNone(ocr.ContainerID))
		fmt.Fprintf(f.out, "Status: %s\n", f.status(ocr.ValidationStatus))
		if len(ocr.ContainerIDsFound) > 0 {
			fmt.Fprintf(f.out, "Candidates: %s\n", strings.Join(ocr.ContainerIDsFound, ", "))
		}
		if ocr.Error != nil {
			fmt.Fprintf(f.out, "Error: %s\n", *ocr.Error)
		}
		if resp.Cached {
			fmt.Fprintln(f.out, f.render(mutedStyle, "(served from cache)"))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintResult prints a text extraction result
func (f *OutputFormatter) PrintResult(result *parser.ProcessResult) error {
	if f.quiet {
		if result.BestMatch != nil {
			fmt.Fprintln(f.out, result.BestMatch.ContainerID)
		}
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(result)
	case "table":
		if result.BestMatch != nil {
			fmt.Fprintf(f.out, "Best match: %s\n", f.render(validStyle, result.BestMatch.ContainerID))
		} else {
			fmt.Fprintf(f.out, "Best match: %s\n", f.render(mutedStyle, "none"))
		}
		if result.Error != "" {
			fmt.Fprintf(f.out, "Error: %s\n", result.Error)
		}
		if len(result.ValidatedIDs) == 0 {
			return nil
		}
		return f.printValidationTable(result.ValidatedIDs)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintValidations prints the results of checking individual IDs
func (f *OutputFormatter) PrintValidations(results []handlers.ValidateResponse) error {
	if f.quiet {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintln(f.out, r.ContainerID)
			}
		}
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(results)
	case "table":
		w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INPUT\tCONTAINER ID\tVALID\tCATEGORY\tERROR")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.Input,
				r.ContainerID,
				f.validMark(r.Valid),
				r.Category,
				r.Error)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintBatch prints offline extraction results, one row per input file
func (f *OutputFormatter) PrintBatch(results []workers.BatchResult) error {
	if f.quiet {
		for _, r := range results {
			if r.Result != nil && r.Result.BestMatch != nil {
				fmt.Fprintf(f.out, "%s\t%s\n", r.Path, r.Result.BestMatch.ContainerID)
			}
		}
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(results)
	case "table":
		w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tCONTAINER ID\tCANDIDATES\tERROR")
		for _, r := range results {
			best, candidates, errMsg := "-", 0, r.Error
			if r.Result != nil {
				if r.Result.BestMatch != nil {
					best = f.render(validStyle, r.Result.BestMatch.ContainerID)
				}
				candidates = len(r.Result.ContainerIDsFound)
				if errMsg == "" {
					errMsg = r.Result.Error
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", truncate(r.Path, 40), best, candidates, errMsg)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintScans prints a list of scans
func (f *OutputFormatter) PrintScans(scans []database.Scan) error {
	if f.quiet {
		for _, scan := range scans {
			fmt.Fprintf(f.out, "%d\n", scan.ID)
		}
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(scans)
	case "table":
		return f.printScansTable(scans)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintScan prints a single scan
func (f *OutputFormatter) PrintScan(scan *database.Scan) error {
	if f.quiet {
		fmt.Fprintf(f.out, "%d\n", scan.ID)
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(scan)
	case "table":
		fmt.Fprintf(f.out, "Scan ID: %d\n", scan.ID)
		fmt.Fprintf(f.out, "Filename: %s\n", scan.Filename)
		fmt.Fprintf(f.out, "Size: %d bytes\n", scan.SizeBytes)
		fmt.Fprintf(f.out, "Timestamp: %s\n", scan.Timestamp)
		fmt.Fprintf(f.out, "Container ID: %s\n", orNone(scan.ContainerID))
		fmt.Fprintf(f.out, "Status: %s\n", f.status(scan.ValidationStatus))
		if len(scan.Candidates) > 0 {
			fmt.Fprintf(f.out, "Candidates: %s\n", strings.Join(scan.Candidates, ", "))
		}
		if scan.Error != nil {
			fmt.Fprintf(f.out, "Error: %s\n", *scan.Error)
		}
		if scan.RawTextPreview != nil {
			fmt.Fprintf(f.out, "Text: %s\n", strings.ReplaceAll(*scan.RawTextPreview, "\n", " | "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintStats prints server statistics
func (f *OutputFormatter) PrintStats(stats *handlers.StatsResponse) error {
	if f.quiet {
		if stats.Scans != nil {
			fmt.Fprintf(f.out, "%d\n", stats.Scans.Total)
		}
		return nil
	}

	switch f.format {
	case "json":
		return f.writeJSON(stats)
	case "table":
		if s := stats.Scans; s != nil {
			fmt.Fprintf(f.out, "Scans: %d total, %s valid, %s invalid, %d unresolved\n",
				s.Total,
				f.render(validStyle, fmt.Sprint(s.Valid)),
				f.render(invalidStyle, fmt.Sprint(s.Invalid)),
				s.Unresolved)
		}
		c := stats.Cache
		if c.Disabled {
			fmt.Fprintln(f.out, "Cache: disabled")
		} else {
			fmt.Fprintf(f.out, "Cache: %d in memory (%d expired), %d stored (%d expired), ttl %s\n",
				c.MemoryTotal, c.MemoryExpired, c.DatabaseTotal, c.DatabaseExpired, c.TTL)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintSuccess prints a success message
func (f *OutputFormatter) PrintSuccess(message string) {
	if !f.quiet {
		fmt.Fprintf(f.out, "%s %s\n", f.render(validStyle, "✓"), message)
	}
}

// PrintError prints an error message
func (f *OutputFormatter) PrintError(err error) {
	if !f.quiet {
		fmt.Fprintf(f.errOut, "%s Error: %v\n", f.render(invalidStyle, "✗"), err)
	}
}

// PrintInfo prints an informational message
func (f *OutputFormatter) PrintInfo(message string) {
	if !f.quiet {
		fmt.Fprintf(f.out, "ℹ %s\n", message)
	}
}

func (f *OutputFormatter) validMark(valid bool) string {
	if valid {
		return f.render(validStyle, "yes")
	}
	return f.render(invalidStyle, "no")
}

func (f *OutputFormatter) printValidationTable(results []parser.ValidationResult) error {
	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTAINER ID\tVALID\tCATEGORY\tERROR")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ContainerID, f.validMark(r.Valid), r.Category, r.Error)
	}
	return w.Flush()
}

// printScansTable prints scans in table format
func (f *OutputFormatter) printScansTable(scans []database.Scan) error {
	if len(scans) == 0 {
		fmt.Fprintln(f.out, "No scans found.")
		return nil
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)

	// Header
	fmt.Fprintln(w, "ID\tTIMESTAMP\tCONTAINER ID\tSTATUS\tFILE")

	// Data
	for _, scan := range scans {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			scan.ID,
			scan.Timestamp,
			orNone(scan.ContainerID),
			f.status(scan.ValidationStatus),
			truncate(scan.Filename, 40))
	}

	return w.Flush()
}

func orNone(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
