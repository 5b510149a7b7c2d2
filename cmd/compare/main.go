package main

import (
	"fmt"
	"os"

	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/pipeline"
	"catalogsync/internal/report"
	"catalogsync/internal/service"
	"catalogsync/internal/serviceutil"
)

func main() {
	telemetry.InitSlog(false)
	ctx := serviceutil.SignalContext()

	svc, err := service.New(ctx, "catalogsync-compare")
	if err != nil {
		serviceutil.Fatal("failed to initialize", err)
	}
	telemetry.InitSlog(svc.Config.Verbose)

	pass, err := svc.Compare(ctx)
	if err == nil {
		fmt.Print(report.Summary(pass))
	}

	shutdownCtx, cancel := serviceutil.ShutdownContext()
	svc.Close(shutdownCtx)
	cancel()
	os.Exit(serviceutil.StageExitCode(pipeline.StageCompare, err))
}
