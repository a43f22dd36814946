package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/config"
	"github.com/procendp/stenodesk/internal/reconciler"
	"github.com/procendp/stenodesk/internal/repositories"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "analyze and log without deleting anything")
	loop := flag.Bool("loop", false, "keep running on an interval instead of a single pass")
	interval := flag.Duration("interval", time.Hour, "interval between passes in loop mode")
	tempHours := flag.Int("temp-hours", 0, "override temporary-request retention in hours")
	graceHours := flag.Int("grace-hours", 0, "override upload grace window in hours")
	analyzeOnly := flag.Bool("analyze", false, "print the orphan classification and exit")
	flag.Parse()

	log := logrus.StandardLogger()

	repositories.ConnectDatabase()
	objects := repositories.InitObjectStore(config.Envs.S3)

	cfg := reconciler.Config{
		UploadGrace:   config.Envs.Cleanup.UploadGrace,
		TempRetention: config.Envs.Cleanup.TempRetention,
		Interval:      *interval,
		DryRun:        *dryRun,
	}
	if *tempHours > 0 {
		cfg.TempRetention = time.Duration(*tempHours) * time.Hour
	}
	if *graceHours > 0 {
		cfg.UploadGrace = time.Duration(*graceHours) * time.Hour
	}

	svc := reconciler.NewService(repositories.Data, objects, cfg, log)
	ctx := context.Background()

	if *analyzeOnly {
		if _, err := svc.Analyze(ctx); err != nil {
			log.WithError(err).Fatal("analysis failed")
		}
		return
	}

	if !*loop {
		if _, err := svc.Run(ctx); err != nil {
			log.WithError(err).Fatal("cleanup pass failed")
		}
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	svc.Start(runCtx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	stopCtx, stopCancel := context.WithTimeout(ctx, 30*time.Second)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("reconciler did not stop cleanly")
	}
}
