package cmd

import (
	"github.com/spf13/cobra"
)

var inspectReport string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how a report's rows are read",
	Long: `Inspect flattens a report and prints, for every row, the path, label,
type and representative amount the rules see. Use it to find out why a rule
selector did or did not pick up a line.

Examples:
  monthend inspect --report pnl_march.json
  monthend inspect --report pnl_march.json -f csv -o rows.csv`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(inspectReport, "report")
	},
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectReport, "report", "", "report JSON to inspect (required)")
	inspectCmd.MarkFlagRequired("report")
}

func runInspect(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	result, err := env.service.Inspect(cmd.Context(), inspectReport)
	if err != nil {
		return err
	}
	return env.writeResult(result)
}
