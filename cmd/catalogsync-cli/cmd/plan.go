package cmd

import (
	"fmt"

	"catalogsync/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Shows the changes compare would apply without applying them.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			pass, err := svc.Compare(cmd.Context())
			if err != nil {
				return err
			}

			if len(pass.Outcomes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "catalogs are in sync, nothing to do.")
				return nil
			}

			t := newTable()
			t.AppendHeader(table.Row{"#", "Action", "SKU", "Price"})
			for i, o := range pass.Outcomes {
				t.AppendRow(table.Row{i + 1, o.Action.Kind.String(), o.Action.SKU, o.Action.Price.Fixed()})
			}
			t.AppendFooter(table.Row{
				"",
				fmt.Sprintf(
					"%d updates, %d creates, %d deletes",
					pass.Summary.Updates,
					pass.Summary.Creates,
					pass.Summary.Deletes,
				),
				"",
				"",
			})
			t.Render()
			return nil
		}, service.WithDryRun())
	},
}
