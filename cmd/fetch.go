package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFetchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fetch <group>",
		Short: "Runs one fetch cycle for a group and prints the readings",
		Long: `Fetches every indicator of a catalog group once and prints one row per indicator.
Placeholder readings are flagged by their data source label.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cycle, err := appInstance.Feed().FetchGroup(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch group: %w", err)
			}
			appInstance.Logger().Debug("fetch command finished",
				zap.String("group", cycle.Key),
				zap.Int("real", cycle.RealCount),
				zap.Int("total", len(cycle.Readings)),
			)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, cycle)
			}
			if err := renderReadings(out, cycle.Readings); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "\n%d of %d readings from live sources\n", cycle.RealCount, len(cycle.Readings))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cycle as JSON")
	return cmd
}
