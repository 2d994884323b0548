package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/slotswap/internal/broker"
	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/store"
)

// ExpiryConfig controls the abandoned-request sweeper.
type ExpiryConfig struct {
	Interval  time.Duration // how often to sweep (e.g. 1m)
	OlderThan time.Duration // PENDING age after which a request is cancelled
}

// ExpirePending cancels every PENDING request created more than olderThan
// ago and unlocks its slots. Each request is cancelled in its own
// transaction; a request resolved by its participants between the scan and
// the cancel is skipped.
//
// Returns the requests it cancelled, oldest first.
func (e *Engine) ExpirePending(ctx context.Context, olderThan time.Duration) ([]domain.SwapRequest, error) {
	if olderThan <= 0 {
		return nil, domain.NewValidation("older_than", "must be positive")
	}

	ctx, span := e.tracer.Start(ctx, "engine.ExpirePending", trace.WithAttributes(
		attribute.String("swap.older_than", olderThan.String()),
	))
	defer span.End()

	cutoff := e.clock.Now().Add(-olderThan)
	var stale []domain.SwapRequest
	err := e.store.View(ctx, func(tx *store.Tx) error {
		var err error
		stale, err = tx.Ledger.ListPendingBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}

	expired := []domain.SwapRequest{}
	for _, req := range stale {
		var out Outcome
		err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			current, err := pendingRequest(ctx, tx, req.ID)
			if err != nil {
				return err
			}
			out, err = cancel(ctx, tx, current)
			return err
		})
		if domain.Is(err, domain.ErrCodeAlreadyResolved) {
			continue
		}
		if err != nil {
			return expired, fail(span, err)
		}

		slog.Info("swap expired",
			"swap_id", out.Request.ID,
			"created_at", out.Request.CreatedAt,
		)
		e.publish(ctx, broker.KindExpired, out.Request, 0)
		expired = append(expired, out.Request)
	}

	span.SetAttributes(attribute.Int("swap.expired_count", len(expired)))
	return expired, nil
}

// RunExpiry sweeps for abandoned requests every cfg.Interval until ctx is
// cancelled. Sweep errors are logged and the loop continues.
func (e *Engine) RunExpiry(ctx context.Context, cfg ExpiryConfig) error {
	if cfg.OlderThan <= 0 {
		return domain.NewValidation("older_than", "must be positive")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	slog.Info("expiry worker started", "interval", cfg.Interval, "older_than", cfg.OlderThan)

	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry worker stopping", "reason", ctx.Err())
			return nil

		case <-ticker.C:
			expired, err := e.ExpirePending(ctx, cfg.OlderThan)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				slog.Error("expiry sweep failed", "error", err)
				continue
			}
			if len(expired) > 0 {
				slog.Info("expiry sweep", "expired", len(expired))
			}
		}
	}
}
