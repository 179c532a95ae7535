package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/config"
	"github.com/DoyleJ11/second-law-lobby/internal/coordinator"
	"github.com/DoyleJ11/second-law-lobby/internal/history"
	"github.com/DoyleJ11/second-law-lobby/internal/httpapi"
	"github.com/DoyleJ11/second-law-lobby/internal/ws"
)

const releaseVersion = "0.1.0"

func main() {
	cobra.CheckErr(config.LoadEnv())
	cfg := &config.Server{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Server) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "second-law-lobby",
		Short:         "Room coordinator for Second Law multiplayer lobbies.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Bind(cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(parent context.Context, cfg *config.Server) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := []coordinator.Option{
		coordinator.WithLogger(log.Named("coordinator")),
		coordinator.WithResetReadyOnRename(cfg.ResetReadyOnRename),
	}

	var historyReader httpapi.HistoryReader
	var recorder *history.Recorder
	if cfg.DatabaseDSN != "" {
		store, err := history.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = history.NewRecorder(store, 256, log.Named("history"))
		go recorder.Run(ctx)
		opts = append(opts, coordinator.WithRecorder(recorder))
		historyReader = store
	}

	coord := coordinator.New(ctx, opts...)

	wsOpts := ws.DefaultOptions()
	wsOpts.PingInterval = cfg.PingInterval
	wsOpts.ReadTimeout = cfg.ReadTimeout
	wsOpts.WriteTimeout = cfg.WriteTimeout
	wsOpts.OutboxSize = cfg.OutboxSize
	wsOpts.OriginPatterns = cfg.AllowedOrigins

	handler := httpapi.SetupRoutes(coord, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		PublicURL:      cfg.PublicURL,
		WS:             wsOpts,
		History:        historyReader,
	}, log.Named("http"))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	// Cancelling ctx stops the coordinator, which closes every outbox.
	stop()
	<-coord.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if recorder != nil {
		<-recorder.Done()
	}
	return runErr
}
