package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	echoapi "github.com/trezcool/masomodb/apps/api/echo"
	"github.com/trezcool/masomodb/apps/shared"
	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/bootstrap"
	emailsvc "github.com/trezcool/masomodb/services/email"
	logsvc "github.com/trezcool/masomodb/services/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.New(conf, os.Stdout)

	stack, err := shared.NewStack(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal("setting up", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("closing stack", err)
		}
	}()

	mailer := emailsvc.New(conf, logger)
	recipients, err := shared.ReportRecipients(conf)
	if err != nil {
		logger.Fatal("setting up notifications", err)
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Bootstrap the remote store

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	var runs sync.WaitGroup

	if conf.Bootstrap.RunOnStartup {
		runs.Add(1)
		go func() {
			defer runs.Done()
			progress := func(ev bootstrap.ProgressEvent) {
				logger.Info("bootstrap progress", "step", ev.StepName, "percent", ev.PercentComplete)
			}
			report, err := stack.Orchestrator.Run(runCtx, progress)
			if err != nil {
				logger.Warn("startup bootstrap not run", err)
				return
			}
			if len(recipients) > 0 {
				mailer.SendMessages(bootstrap.NewReportMessage(recipients, report))
			}
		}()
	}

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Address,
		Debug:          conf.Debug,
		DisableReqLogs: conf.Server.DisableReqLogs,
		SecretKey:      conf.Server.SecretKey,
		Bootstrapper:   stack.Orchestrator,
		Health:         stack.Gateway,
		Metrics:        stack.Metrics.Handler(),
		Logger:         logger,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening", "address", conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}

	cancelRun()
	runs.Wait()
	if w, ok := mailer.(interface{ Wait() }); ok {
		w.Wait()
	}
}
