package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	cliapi "smartscan/internal/cli"
)

var (
	serverURL string
	format    string
	quiet     bool
	noColor   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smartscan",
	Short: "Recover ISO 6346 container IDs from photos and OCR text",
	Long: `SmartScan reads shipping container identification codes from photos of
container doors. Images are sent to a SmartScan server for OCR; text and IDs can
also be checked locally without a server.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags; empty values fall through to the environment and ~/.smartscan.json
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "API server address (default http://localhost:8000)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "Output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (minimal output)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
}

// loadFormatter reads configuration and builds a formatter writing to the command's
// streams, for commands that never talk to the server
func loadFormatter(cmd *cobra.Command) (*cliapi.Config, *cliapi.OutputFormatter, error) {
	config, err := cliapi.LoadConfig(serverURL, format, quiet, noColor)
	if err != nil {
		return nil, nil, err
	}

	formatter := cliapi.NewOutputFormatterWithColor(config.Format, config.Quiet, config.NoColor)
	formatter.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	return config, formatter, nil
}

// initializeClient sets up configuration, formatter, and API client
func initializeClient(cmd *cobra.Command) (*cliapi.Config, *cliapi.OutputFormatter, *cliapi.Client, error) {
	config, formatter, err := loadFormatter(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	client := cliapi.NewClientWithTimeout(config.ServerURL, config.RequestTimeout)

	// Test connectivity
	if err := client.HealthCheck(); err != nil {
		formatter.PrintError(err)
		return nil, nil, nil, err
	}

	return config, formatter, client, nil
}

// startSpinner shows progress for slow requests in human-readable mode only
func startSpinner(config *cliapi.Config, message string) func() {
	if config.Quiet || config.Format == "json" {
		return func() {}
	}
	spinner := cliapi.NewProgressSpinner(message, config.NoColor)
	spinner.Start()
	return spinner.Stop
}
