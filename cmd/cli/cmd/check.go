package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartscan/internal/handlers"
	"smartscan/internal/parser"
)

var checkCmd = &cobra.Command{
	Use:   "check <container-id>...",
	Short: "Validate container IDs locally",
	Long: `Repair common OCR confusions and verify the ISO 6346 check digit of each
ID without contacting the server. Exits non-zero when any ID is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkIDs(inputs []string) ([]handlers.ValidateResponse, int) {
	results := make([]handlers.ValidateResponse, 0, len(inputs))
	invalid := 0
	for _, input := range inputs {
		result := parser.ValidateContainerID(parser.RepairCandidate(input))
		if !result.Valid {
			invalid++
		}
		results = append(results, handlers.ValidateResponse{Input: input, ValidationResult: result})
	}
	return results, invalid
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, formatter, err := loadFormatter(cmd)
	if err != nil {
		return err
	}

	results, invalid := checkIDs(args)
	if err := formatter.PrintValidations(results); err != nil {
		return err
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d container IDs failed validation", invalid, len(args))
	}
	return nil
}
