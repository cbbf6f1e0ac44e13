package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Lists the indicator groups in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout())
			table.Header([]string{"Group", "Title", "Indicators"})
			groups := appInstance.Feed().Catalog().Groups()
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{g.Name, g.Title, strings.Join(g.Titles(), ", ")})
			}
			if err := table.Bulk(rows); err != nil {
				return fmt.Errorf("render groups: %w", err)
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("render groups: %w", err)
			}
			return nil
		},
	}
}
