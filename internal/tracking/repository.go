package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/catintel/catintel/internal/platform/db"
	"github.com/catintel/catintel/internal/salesrank"
)

// Repository persists tracked products, observations and estimates.
type Repository interface {
	RecordSnapshots(ctx context.Context, snaps []Snapshot) error
	GetProduct(ctx context.Context, asin string) (Product, error)
	ListASINs(ctx context.Context) ([]string, error)
	LatestRanked(ctx context.Context, asins []string) ([]salesrank.Observation, error)
	ReviewHistory(ctx context.Context, asin string, since time.Time) ([]salesrank.ReviewPoint, error)
	SaveEstimate(ctx context.Context, est StoredEstimate) error
	LatestEstimate(ctx context.Context, asin string) (StoredEstimate, error)
}

// PGRepository is the Postgres implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wraps a connection pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// upsertProductSQL keeps the price of the newest snapshot. A snapshot that
// arrives out of order still fills in missing descriptive fields.
const upsertProductSQL = `
	INSERT INTO tracked_products (asin, title, brand, category, current_price, first_tracked, last_tracked)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (asin) DO UPDATE SET
		title = COALESCE(NULLIF(EXCLUDED.title, ''), tracked_products.title),
		brand = COALESCE(NULLIF(EXCLUDED.brand, ''), tracked_products.brand),
		category = COALESCE(NULLIF(EXCLUDED.category, ''), tracked_products.category),
		current_price = CASE
			WHEN EXCLUDED.last_tracked >= tracked_products.last_tracked
				THEN COALESCE(EXCLUDED.current_price, tracked_products.current_price)
			ELSE tracked_products.current_price
		END,
		first_tracked = LEAST(tracked_products.first_tracked, EXCLUDED.first_tracked),
		last_tracked = GREATEST(tracked_products.last_tracked, EXCLUDED.last_tracked)`

const insertObservationSQL = `
	INSERT INTO bsr_observations (asin, bsr, price, review_count, avg_rating, observed_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// RecordSnapshots upserts the products and appends the observations in a
// single transaction.
func (r *PGRepository) RecordSnapshots(ctx context.Context, snaps []Snapshot) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, snap := range snaps {
			if _, err := tx.Exec(ctx, upsertProductSQL,
				snap.ASIN, snap.Title, snap.Brand, snap.Category, snap.Price, snap.ObservedAt); err != nil {
				return fmt.Errorf("tracking: upsert product %s: %w", snap.ASIN, err)
			}
			if _, err := tx.Exec(ctx, insertObservationSQL,
				snap.ASIN, snap.BSR, snap.Price, snap.ReviewCount, snap.AvgRating, snap.ObservedAt); err != nil {
				return fmt.Errorf("tracking: insert observation %s: %w", snap.ASIN, err)
			}
		}
		return nil
	})
}

// GetProduct loads one tracked product.
func (r *PGRepository) GetProduct(ctx context.Context, asin string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		SELECT asin, title, brand, category, current_price::float8, first_tracked, last_tracked
		FROM tracked_products WHERE asin = $1`, asin).
		Scan(&p.ASIN, &p.Title, &p.Brand, &p.Category, &p.CurrentPrice, &p.FirstTracked, &p.LastTracked)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("tracking: get product: %w", err)
	}
	return p, nil
}

// ListASINs returns every tracked ASIN in order.
func (r *PGRepository) ListASINs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT asin FROM tracked_products ORDER BY asin`)
	if err != nil {
		return nil, fmt.Errorf("tracking: list asins: %w", err)
	}
	asins, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("tracking: list asins: %w", err)
	}
	return asins, nil
}

// LatestRanked returns the most recent ranked observation per ASIN. An empty
// asins slice selects every tracked ASIN.
func (r *PGRepository) LatestRanked(ctx context.Context, asins []string) ([]salesrank.Observation, error) {
	if asins == nil {
		asins = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (asin) asin, bsr, price::float8, review_count, avg_rating::float8, observed_at
		FROM bsr_observations
		WHERE bsr IS NOT NULL AND (cardinality($1::text[]) = 0 OR asin = ANY($1))
		ORDER BY asin, observed_at DESC`, asins)
	if err != nil {
		return nil, fmt.Errorf("tracking: latest ranked: %w", err)
	}
	defer rows.Close()

	var out []salesrank.Observation
	for rows.Next() {
		var obs salesrank.Observation
		if err := rows.Scan(&obs.ASIN, &obs.BSR, &obs.Price, &obs.ReviewCount, &obs.AvgRating, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("tracking: scan observation: %w", err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracking: latest ranked: %w", err)
	}
	return out, nil
}

// ReviewHistory returns review counts observed since the given time, oldest first.
func (r *PGRepository) ReviewHistory(ctx context.Context, asin string, since time.Time) ([]salesrank.ReviewPoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT review_count, observed_at FROM bsr_observations
		WHERE asin = $1 AND observed_at >= $2
		ORDER BY observed_at ASC`, asin, since)
	if err != nil {
		return nil, fmt.Errorf("tracking: review history: %w", err)
	}
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (salesrank.ReviewPoint, error) {
		var p salesrank.ReviewPoint
		err := row.Scan(&p.ReviewCount, &p.ObservedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("tracking: review history: %w", err)
	}
	return points, nil
}

// SaveEstimate appends an estimate row.
func (r *PGRepository) SaveEstimate(ctx context.Context, est StoredEstimate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sales_estimates (asin, bsr, estimated_monthly_units, bsr_units, velocity_units,
			estimation_method, combination, confidence_level, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		est.ASIN, est.BSR, est.EstimatedMonthlyUnits, est.BSRUnits, est.VelocityUnits,
		string(est.Method), string(est.Combination), string(est.Confidence), est.CalculatedAt)
	if err != nil {
		return fmt.Errorf("tracking: save estimate: %w", err)
	}
	return nil
}

// LatestEstimate loads the most recent estimate row for asin.
func (r *PGRepository) LatestEstimate(ctx context.Context, asin string) (StoredEstimate, error) {
	var est StoredEstimate
	var method, combination, confidence string
	err := r.pool.QueryRow(ctx, `
		SELECT asin, bsr, estimated_monthly_units, bsr_units, velocity_units,
			estimation_method, combination, confidence_level, calculated_at
		FROM sales_estimates WHERE asin = $1
		ORDER BY calculated_at DESC LIMIT 1`, asin).
		Scan(&est.ASIN, &est.BSR, &est.EstimatedMonthlyUnits, &est.BSRUnits, &est.VelocityUnits,
			&method, &combination, &confidence, &est.CalculatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredEstimate{}, ErrNotFound
	}
	if err != nil {
		return StoredEstimate{}, fmt.Errorf("tracking: latest estimate: %w", err)
	}
	est.Method = salesrank.Method(method)
	est.Combination = salesrank.Combination(combination)
	est.Confidence = salesrank.Confidence(confidence)
	return est, nil
}
