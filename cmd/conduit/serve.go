package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/alert"
	"github.com/xraph/conduit/alert/kafka"
	"github.com/xraph/conduit/extension"
	"github.com/xraph/conduit/observability"
	"github.com/xraph/conduit/store/memory"
)

func serve(ctx context.Context, cfg *serverConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cfg.logger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var notifier alert.Notifier = alert.NewLogNotifier(logger)
	if cfg.AlertBrokers != "" {
		kn := kafka.Dial(cfg.AlertBrokers, cfg.AlertTopic)
		defer kn.Close()
		notifier = alert.Multi{notifier, kn}
	}

	ext := extension.New(
		extension.WithConfig(cfg.Config),
		extension.WithStore(memory.New()),
		extension.WithLogger(logger),
		extension.WithConduitOption(conduit.WithMetrics(observability.NewMetrics(reg))),
		extension.WithConduitOption(conduit.WithTracer(observability.NewTracer())),
		extension.WithConduitOption(conduit.WithNotifier(notifier)),
	)
	if err := ext.Init(ctx); err != nil {
		return err
	}

	if cfg.RoutesFile != "" {
		n, err := importRoutes(ctx, ext.Conduit(), cfg.RoutesFile)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "routes imported", "file", cfg.RoutesFile, "count", n)
	}

	if err := ext.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle(ext.Prefix()+"/", ext.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "conduit listening", "addr", cfg.Addr, "base_path", ext.Prefix())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	httpErr := srv.Shutdown(shutdownCtx)
	return errors.Join(httpErr, ext.Stop(shutdownCtx))
}
