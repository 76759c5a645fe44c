package cmd

import (
	"github.com/spf13/cobra"
)

var (
	listLimit       int
	listInteractive bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent scans",
	Long: `List the most recent scans recorded by the server, newest first. On a
terminal the list opens in an interactive browser unless --interactive=false.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of scans (default: server setting)")
	listCmd.Flags().BoolVarP(&listInteractive, "interactive", "i", false, "Browse scans interactively")
}

func runList(cmd *cobra.Command, args []string) error {
	config, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.ListScans(listLimit)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	interactive := shouldUseInteractiveMode(config.Format, config.Quiet, listInteractive, stdoutIsTerminal())
	if cmd.Flags().Changed("interactive") && !listInteractive {
		interactive = false
	}

	if interactive {
		return runInteractiveTable(resp.Scans, client, listLimit, formatter.UseColor())
	}
	return formatter.PrintScans(resp.Scans)
}
