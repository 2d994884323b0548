package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/slotswap/internal/auth"
	"github.com/roach88/slotswap/internal/broker"
	"github.com/roach88/slotswap/internal/config"
	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/httpapi"
	"github.com/roach88/slotswap/internal/query"
	"github.com/roach88/slotswap/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the SlotSwap HTTP API.

Opens (and migrates) the SQLite database, connects the swap lifecycle
publisher when AMQP_URL is set, starts the pending-request sweeper when
PENDING_TTL is positive, and serves until interrupted.

Environment:
  HTTP_ADDR                    listen address (default :8000)
  DATABASE_PATH                SQLite file (default slotswap.db)
  JWT_SECRET                   HS256 signing secret (required)
  TOKEN_TTL                    access token lifetime (default 30m)
  PENDING_TTL                  expire PENDING requests older than this (0 = never)
  EXPIRY_INTERVAL              sweeper interval (default 1m)
  REQUEST_TIMEOUT              per-request deadline (default 10s)
  CORS_ALLOWED_ORIGINS         comma-separated origins (default *)
  AMQP_URL, AMQP_EXCHANGE      swap lifecycle publisher
  OTEL_EXPORTER_OTLP_ENDPOINT  trace exporter
  LOG_LEVEL                    debug|info|warn|error

Example:
  JWT_SECRET=dev slotswap serve --db ./slotswap.db --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides HTTP_ADDR)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if err := cfg.ValidateServe(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	st, closeStore, err := openStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer closeStore()
	slog.Info("database ready", "path", cfg.DatabasePath)

	publisher, err := openPublisher(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to broker", err)
	}
	defer publisher.Close()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid token settings", err)
	}

	eng := engine.New(st, engine.WithPublisher(publisher))

	expiryDone := make(chan struct{})
	if cfg.PendingTTL > 0 {
		go func() {
			defer close(expiryDone)
			if err := eng.RunExpiry(ctx, engine.ExpiryConfig{
				Interval:  cfg.ExpiryInterval,
				OlderThan: cfg.PendingTTL,
			}); err != nil {
				slog.Error("expiry worker exited", "error", err)
			}
		}()
	} else {
		close(expiryDone)
	}

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Engine: eng,
		Query:  query.New(st),
		Auth:   auth.NewService(st, tokens),
		DB:     st,
	}, httpapi.Config{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", cfg.HTTPAddr)
	serveErr := httpapi.Serve(ctx, cfg.HTTPAddr, router)
	cancel()
	<-expiryDone

	if serveErr != nil {
		return WrapExitError(ExitFailure, "http server error", serveErr)
	}
	slog.Info("server stopped gracefully")
	return nil
}

// openPublisher dials RabbitMQ when AMQP_URL is set. Without it swap
// transitions are not published. Tests replace it to capture events.
var openPublisher = dialPublisher

func dialPublisher(cfg config.App) (broker.Publisher, error) {
	if cfg.AMQPURL == "" {
		slog.Info("no AMQP_URL, swap events will not be published")
		return broker.Discard{}, nil
	}
	p, err := broker.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	slog.Info("publishing swap events", "exchange", cfg.AMQPExchange)
	return p, nil
}
