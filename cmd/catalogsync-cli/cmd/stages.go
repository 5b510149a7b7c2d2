package cmd

import (
	"fmt"

	"catalogsync/internal/report"
	"catalogsync/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(syncCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes every configured storefront category into the source snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			return svc.ScrapeSource(cmd.Context())
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Lists the WooCommerce catalog into the remote snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			return svc.FetchRemote(cmd.Context())
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Reconciles both snapshots and applies the resulting changes to WooCommerce.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			pass, err := svc.Compare(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Summary(pass))
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Runs scrape, fetch and compare in order.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			pass, err := svc.RunAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Summary(pass))
			return nil
		})
	},
}
