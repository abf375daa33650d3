package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// ProcessWithDeduplication runs action at most once per (consumer, eventID).
// The marker row and action share a transaction; a failed action leaves
// the event unmarked so redelivery retries it.
func ProcessWithDeduplication(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger *zap.Logger,
	consumer string,
	eventID int64,
	action func(ctx context.Context) error,
) error {
	span := trace.SpanFromContext(ctx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(cleanupCtx, logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	query := `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
	`

	if _, err := tx.Exec(ctx, query, consumer, eventID); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			mylogger.Debug(
				ctx,
				logger,
				"Event already processed, skipping",
				zap.String("consumer", consumer),
				zap.Int64("event_id", eventID),
			)

			return nil
		}

		span.RecordError(err)
		return fmt.Errorf("failed to mark event %d: %w", eventID, err)
	}

	if err := action(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to process event %d: %w", eventID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit event %d: %w", eventID, err)
	}

	return nil
}
