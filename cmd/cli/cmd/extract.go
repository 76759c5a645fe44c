package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"smartscan/internal/workers"
)

var extractWorkers int

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract container IDs from local text files",
	Long: `Run container ID recovery over local files without a server. Text files
are processed concurrently; images need a server, use "scan" for those. Reads
standard input when no files are given.`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().IntVarP(&extractWorkers, "workers", "w", 0, "Number of files processed concurrently (default: number of CPUs)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	_, formatter, err := loadFormatter(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	scanner := workers.NewBatchScanner(nil, extractWorkers, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 0 {
		text, err := readInput(cmd, "-")
		if err != nil {
			return err
		}
		results, err := scanner.ScanTexts(ctx, []string{text})
		if err != nil {
			return err
		}
		return formatter.PrintBatch([]workers.BatchResult{{Path: "-", Result: results[0]}})
	}

	results, err := scanner.ScanFiles(ctx, args)
	if err != nil {
		return fmt.Errorf("extraction interrupted: %w", err)
	}
	return formatter.PrintBatch(results)
}
