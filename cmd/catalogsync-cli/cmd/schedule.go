package cmd

import (
	"log/slog"

	"catalogsync/internal/service"

	"github.com/spf13/cobra"
)

var scheduleSpec string

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "", "cron spec to sync on, defaults to the schedule in the config")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs a full sync on a cron schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			spec := scheduleSpec
			if spec == "" {
				spec = svc.Config.Schedule
			}
			slog.Info("syncing on schedule", "cron", spec)
			return svc.Schedule(cmd.Context(), spec)
		})
	},
}
