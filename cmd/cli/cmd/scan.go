package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Upload a container photo for recognition",
	Long: `Upload a photo of a container door to the server. The server runs OCR,
extracts candidate IDs, validates their check digits and records the scan.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	config, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	stop := startSpinner(config, fmt.Sprintf("Scanning %s", filepath.Base(args[0])))
	resp, err := client.UploadScan(args[0])
	stop()

	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintUpload(resp)
}
