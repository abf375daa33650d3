package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Line is the persisted state of one cart line. Version is drawn from a
// sequence while the row is locked, so it grows in commit order per line.
// A removed line keeps the version of its delete.
type Line struct {
	Quantity int64
	Version  int64
}

type Repository interface {
	Increment(ctx context.Context, tx pgx.Tx, sessionID, productID string) (Line, error)
	// Decrement reports changed == false when the item was not in the cart.
	Decrement(ctx context.Context, tx pgx.Tx, sessionID, productID string) (line Line, changed bool, err error)
	Load(ctx context.Context, sessionID string) (map[string]Line, error)
}

type cartRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &cartRepo{
		pool:   pool,
		tracer: otel.Tracer("storefront/cart_repo"),
		logger: logger,
	}
}

func (r *cartRepo) Increment(ctx context.Context, tx pgx.Tx, sessionID, productID string) (Line, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Increment")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("product_id", productID),
	)

	query := `
		INSERT INTO cart_items (session_id, product_id, quantity, version)
		VALUES ($1, $2, 1, nextval('cart_item_version_seq'))
		ON CONFLICT (session_id, product_id)
		DO UPDATE SET
			quantity = cart_items.quantity + 1,
			version = nextval('cart_item_version_seq'),
			updated_at = NOW()
		RETURNING quantity, version;
	`

	var line Line
	if err := tx.QueryRow(ctx, query, sessionID, productID).Scan(&line.Quantity, &line.Version); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error incrementing cart item", zap.String("product_id", productID), zap.Error(err))

		return Line{}, fmt.Errorf("error incrementing cart item: %w", err)
	}

	return line, nil
}

func (r *cartRepo) Decrement(ctx context.Context, tx pgx.Tx, sessionID, productID string) (Line, bool, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Decrement")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("product_id", productID),
	)

	var qty int64
	err := tx.QueryRow(
		ctx,
		`SELECT quantity FROM cart_items WHERE session_id = $1 AND product_id = $2 FOR UPDATE`,
		sessionID,
		productID,
	).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, false, nil
		}

		span.RecordError(err)
		return Line{}, false, fmt.Errorf("error selecting cart item: %w", err)
	}

	var line Line
	if qty <= 1 {
		err = tx.QueryRow(
			ctx,
			`DELETE FROM cart_items WHERE session_id = $1 AND product_id = $2 RETURNING nextval('cart_item_version_seq')`,
			sessionID,
			productID,
		).Scan(&line.Version)
	} else {
		line.Quantity = qty - 1
		err = tx.QueryRow(
			ctx,
			`UPDATE cart_items
			SET quantity = $3, version = nextval('cart_item_version_seq'), updated_at = NOW()
			WHERE session_id = $1 AND product_id = $2
			RETURNING version`,
			sessionID,
			productID,
			line.Quantity,
		).Scan(&line.Version)
	}
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Error decrementing cart item", zap.String("product_id", productID), zap.Error(err))

		return Line{}, false, fmt.Errorf("error decrementing cart item: %w", err)
	}

	return line, true, nil
}

func (r *cartRepo) Load(ctx context.Context, sessionID string) (map[string]Line, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Load")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", sessionID))

	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, version FROM cart_items WHERE session_id = $1`, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error loading cart: %w", err)
	}
	defer rows.Close()

	lines := make(map[string]Line)
	for rows.Next() {
		var (
			productID string
			line      Line
		)
		if err := rows.Scan(&productID, &line.Quantity, &line.Version); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}
		lines[productID] = line
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return lines, nil
}
