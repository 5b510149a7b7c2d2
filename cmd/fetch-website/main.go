package main

import (
	"os"

	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/pipeline"
	"catalogsync/internal/service"
	"catalogsync/internal/serviceutil"
)

func main() {
	telemetry.InitSlog(false)
	ctx := serviceutil.SignalContext()

	svc, err := service.New(ctx, "catalogsync-fetch-website")
	if err != nil {
		serviceutil.Fatal("failed to initialize", err)
	}
	telemetry.InitSlog(svc.Config.Verbose)

	err = svc.ScrapeSource(ctx)

	shutdownCtx, cancel := serviceutil.ShutdownContext()
	svc.Close(shutdownCtx)
	cancel()
	os.Exit(serviceutil.StageExitCode(pipeline.StageScrape, err))
}
