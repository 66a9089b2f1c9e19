package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crudd/internal/config"
	"crudd/internal/crud"
	"crudd/internal/httpapi"
	"crudd/internal/listener"
)

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP server",
		Example: "  crudd serve --resources-dir ./resources --driver sqlite --dsn crudd.db",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", ":8080", "HTTP listen address (defaults CRUDD_ADDR or :8080)")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "Expose query logs and log every crud event")
	cmd.Flags().StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated origins allowed by CORS (enables CORS)")
	return cmd
}

func newLogger(cfg config.Config) zerolog.Logger {
	var l zerolog.Logger
	if stderrIsTerminal() {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		l = zerolog.New(os.Stderr)
	}
	l = l.With().Timestamp().Str("svc", "crudd").Logger()
	if cfg.Debug {
		return l.Level(zerolog.DebugLevel)
	}
	return l.Level(zerolog.InfoLevel)
}

func runServe(cfg config.Config) error {
	logger := newLogger(cfg)
	httpapi.SetLogger(logger)
	crud.SetLogger(logger)
	listener.SetLogger(logger)
	if cfg.LogLevel != "" {
		httpapi.SetLogLevel(cfg.LogLevel)
	}
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	svc, tables, err := buildService(baseCtx, cfg)
	if err != nil {
		return err
	}
	defer tables.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("driver", cfg.Driver).
			Int("resources", len(svc.Resources)).
			Msg("crudd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
