package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rhymeas/tripweaver/app/observability/metrics"
	"github.com/rhymeas/tripweaver/internal/types"
)

// ErrItineraryNotFound is returned when no stored itinerary matches an ID.
var ErrItineraryNotFound = errors.New("itinerary not found")

// Ensure RepositoryImpl implements the Repository interface
var _ Repository = (*RepositoryImpl)(nil)

// Repository persists generated itineraries.
type Repository interface {
	Save(ctx context.Context, itinerary *types.Itinerary) error
	Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error)
}

// PGXPool is the subset of pgxpool.Pool the repository needs. It keeps the
// repository testable against a mocked pool.
type PGXPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RepositoryImpl struct holds the logger and database connection pool
type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewRepository(pgpool PGXPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

// Save stores the itinerary document. The whole result is kept as JSONB so
// the generated plan round-trips without a relational decomposition.
func (r *RepositoryImpl) Save(ctx context.Context, itinerary *types.Itinerary) error {
	payload, err := json.Marshal(itinerary)
	if err != nil {
		return fmt.Errorf("failed to marshal itinerary: %w", err)
	}

	query := `
        INSERT INTO itineraries (
            id, origin, destination, transport_mode, degraded, payload, generated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7
        )
        ON CONFLICT (id) DO UPDATE SET
            degraded = EXCLUDED.degraded,
            payload = EXCLUDED.payload,
            generated_at = EXCLUDED.generated_at
    `
	start := time.Now()
	_, err = r.pgpool.Exec(ctx, query,
		itinerary.ID, itinerary.Context.Origin, itinerary.Context.Destination,
		string(itinerary.Context.TransportMode), itinerary.Degraded, payload, itinerary.GeneratedAt,
	)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		r.logger.ErrorContext(ctx, "Failed to save itinerary", slog.Any("error", err))
		return fmt.Errorf("failed to save itinerary: %w", err)
	}
	return nil
}

// Get loads a stored itinerary by ID.
func (r *RepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	query := `SELECT payload FROM itineraries WHERE id = $1`

	start := time.Now()
	var payload []byte
	err := r.pgpool.QueryRow(ctx, query, id).Scan(&payload)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItineraryNotFound
		}
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		r.logger.ErrorContext(ctx, "Failed to get itinerary", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	var result types.Itinerary
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal itinerary payload: %w", err)
	}
	return &result, nil
}
