package cmd

import (
	"fmt"
	"os"

	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/config"
	"catalogsync/internal/service"
	"catalogsync/internal/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	noOtel     bool
)

var rootCmd = &cobra.Command{
	Use:   "catalogsync-cli",
	Short: "catalogsync-cli keeps a WooCommerce catalog in sync with the storefront it mirrors.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.PersistentFlags().BoolVar(&noOtel, "no-otel", false, "do not export traces and metrics even if telemetry.json5 exists")
}

func Execute() {
	ctx := serviceutil.SignalContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withService creates the service for the duration of fn.
func withService(cmd *cobra.Command, fn func(svc *service.Service) error, extra ...service.Option) error {
	opts := []service.Option{service.WithConfigPath(configPath)}
	if noOtel {
		opts = append(opts, service.WithoutOtel())
	}
	opts = append(opts, extra...)

	svc, err := service.New(cmd.Context(), "catalogsync-cli", opts...)
	if err != nil {
		return err
	}
	if svc.Config.Verbose {
		telemetry.InitSlog(true)
	}

	err = fn(svc)

	shutdownCtx, cancel := serviceutil.ShutdownContext()
	defer cancel()
	svc.Close(shutdownCtx)
	return err
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
