package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/app"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/cli"
	"github.com/jcastellanos/comedor-kiosk/internal/kiosk/config"
	"github.com/jcastellanos/comedor-kiosk/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe("127.0.0.1:9190", nil); err != nil {
			logger.Warn(ctx, "metrics endpoint stopped", "error", err)
		}
	}()

	if err := cli.New(a, cfg).Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
