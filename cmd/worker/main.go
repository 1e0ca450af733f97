package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dodogate/dodogate/internal/setup"
	"github.com/dodogate/dodogate/internal/setup/logging"
	"github.com/dodogate/dodogate/internal/worker/liveness"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// LivenessWorker sweeps location channels for liveness transitions.
	LivenessWorker = "liveness"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start a dodogate worker",
		Commands: []*cli.Command{
			{
				Name:  LivenessWorker,
				Usage: "Start the location liveness worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					runLivenessWorker(ctx)
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, os.Args)
}

// runLivenessWorker runs the liveness worker with error recovery until the
// context is cancelled.
func runLivenessWorker(ctx context.Context) {
	app, err := setup.InitializeApp(ctx, logging.ServiceWorker, WorkerLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	logger := app.LogManager.GetWorkerLogger(LivenessWorker)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping worker")
			return
		default:
			w, err := liveness.New(app, logger)
			if err != nil {
				logger.Error("Failed to create worker", zap.Error(err))
				time.Sleep(5 * time.Second)

				continue
			}

			logger.Info("Starting worker")

			if err := w.Start(ctx); err != nil {
				logger.Error("Worker stopped unexpectedly", zap.Error(err))
			}

			time.Sleep(5 * time.Second)
		}
	}
}
