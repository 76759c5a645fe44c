package cmd

import (
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <scan-id>",
	Short: "Get scan details by ID",
	Long:  `Get the stored record of a single scan, including its candidates and text preview.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := validateAndParseID(args[0])
	if err != nil {
		return err
	}

	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	scan, err := client.GetScan(id)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintScan(scan)
}
