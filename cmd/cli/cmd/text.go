package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var textCmd = &cobra.Command{
	Use:   "text [file|-]",
	Short: "Extract container IDs from OCR text on the server",
	Long: `Send already-recognized text to the server and print the candidates it
finds. Reads standard input when no file or "-" is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runText,
}

func init() {
	rootCmd.AddCommand(textCmd)
}

// readInput reads the named file, or the command's stdin for "" and "-"
func readInput(cmd *cobra.Command, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "" || name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func runText(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	text, err := readInput(cmd, name)
	if err != nil {
		return err
	}

	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	result, err := client.ScanText(text)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintResult(result)
}
