package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"monogest/backend/internal/domain"
)

// PostgresDirectory reads the counterparty directory straight from the
// shared administrative database. The table is owned by the client-roster
// subsystem; this side only ever reads it, so plain SQL over a pgx pool is
// enough.
type PostgresDirectory struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresDirectory opens a pgx pool against the directory DSN.
func NewPostgresDirectory(dsn string, log *zap.Logger) (*PostgresDirectory, error) {
	if dsn == "" {
		return nil, fmt.Errorf("directory DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory DSN: %w", err)
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping directory database: %w", err)
	}

	return &PostgresDirectory{pool: pool, log: log}, nil
}

// Close closes the pool.
func (d *PostgresDirectory) Close() {
	d.pool.Close()
}

// GetCounterparty returns one counterparty by id.
func (d *PostgresDirectory) GetCounterparty(ctx context.Context, id string) (*domain.Counterparty, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, display_name, kind, COALESCE(classification, ''), COALESCE(assigned_staff_id, '')
		FROM counterparties
		WHERE id = $1`, id)

	var cp domain.Counterparty
	err := row.Scan(&cp.ID, &cp.DisplayName, &cp.Kind, &cp.Classification, &cp.AssignedStaffID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCounterpartyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListCounterparties returns the counterparties matching the filter,
// ordered by display name.
func (d *PostgresDirectory) ListCounterparties(ctx context.Context, filter Filter) ([]domain.Counterparty, error) {
	query := `
		SELECT id, display_name, kind, COALESCE(classification, ''), COALESCE(assigned_staff_id, '')
		FROM counterparties
		WHERE ($1 = '' OR kind = $1)
		  AND ($2 = '' OR classification = $2)
		  AND ($3 = '' OR assigned_staff_id = $3)
		ORDER BY display_name`

	rows, err := d.pool.Query(ctx, query, string(filter.Kind), filter.Classification, filter.AssignedStaff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Counterparty
	for rows.Next() {
		var cp domain.Counterparty
		if err := rows.Scan(&cp.ID, &cp.DisplayName, &cp.Kind, &cp.Classification, &cp.AssignedStaffID); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
