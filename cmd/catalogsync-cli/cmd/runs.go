package cmd

import (
	"time"

	"catalogsync/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsLimit int

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "the amount of runs to show")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [run id]",
	Short: "Lists the latest runs, or the outcomes of the run given as a positional argument.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			if svc.RunLog == nil {
				return service.ErrRunLogDisabled
			}
			if len(args) == 1 {
				return showRun(cmd, svc, args[0])
			}

			runs, err := svc.ListRuns(cmd.Context(), runsLimit)
			if err != nil {
				return err
			}

			t := newTable()
			t.AppendHeader(table.Row{"Run", "Stage", "Started", "Duration", "Updates", "Creates", "Deletes", "Failed", "Error"})
			for _, run := range runs {
				duration := "running"
				if run.Finished() {
					duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				t.AppendRow(table.Row{
					run.ID,
					run.Stage,
					run.StartedAt.Format(time.DateTime),
					duration,
					run.Summary.Updates,
					run.Summary.Creates,
					run.Summary.Deletes,
					run.Failed,
					run.Error,
				})
			}
			t.Render()
			return nil
		})
	},
}

func showRun(cmd *cobra.Command, svc *service.Service, runId string) error {
	run, err := svc.RunLog.GetRun(cmd.Context(), runId)
	if err != nil {
		return err
	}
	outcomes, err := svc.RunLog.RunOutcomes(cmd.Context(), runId)
	if err != nil {
		return err
	}

	t := newTable()
	t.SetTitle("%s %s (%s)", run.Stage, run.ID, run.StartedAt.Format(time.DateTime))
	t.AppendHeader(table.Row{"#", "Action", "SKU", "Price", "Remote ID", "Error"})
	for _, o := range outcomes {
		t.AppendRow(table.Row{o.Position + 1, o.Kind, o.SKU, o.Price, o.RemoteID, o.Error})
	}
	t.Render()
	return nil
}
