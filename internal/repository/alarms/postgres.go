package alarms

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
)

// selectAlarms lists the columns in the order Record expects.
const selectAlarms = `
SELECT id::text                                   AS id,
       COALESCE(parent_id::text, '')              AS parent_id,
       child_id::text                             AS child_id,
       alarm_time                                 AS alarm_time,
       COALESCE(label, '')                        AS label,
       COALESCE(repeat_pattern, '')               AS repeat_pattern,
       status                                     AS status,
       COALESCE(proof_of_awake_required, false)   AS proof_of_awake_required,
       COALESCE(created_at, alarm_time)           AS created_at
  FROM alarms`

// errDSNRequired is returned when the connection string is missing.
var errDSNRequired = errors.New("source dsn must be provided")

// PostgresSource reads alarms straight from the alarms table.
type PostgresSource struct {
	// pool is the connection pool.
	pool *pgxpool.Pool
}

// OpenPostgresSource connects to the database at dsn.
func OpenPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	if dsn == "" {
		return nil, errDSNRequired
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &PostgresSource{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// FetchAlarms implements Source.
func (s *PostgresSource) FetchAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	records, err := s.query(ctx, selectAlarms+` WHERE child_id::text = $1 ORDER BY alarm_time`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch alarms: %w", err)
	}

	return toAlarms(ctx, records), nil
}

// GetAlarm implements Source.
func (s *PostgresSource) GetAlarm(ctx context.Context, id, ownerID string) (*domain.Alarm, error) {
	records, err := s.query(ctx, selectAlarms+` WHERE id::text = $1 AND child_id::text = $2`, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get alarm %s: %w", id, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("get alarm %s: %w", id, ErrNotFound)
	}

	return records[0].ToAlarm(ctx), nil
}

// FetchPending implements Source.
func (s *PostgresSource) FetchPending(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	records, err := s.query(ctx,
		selectAlarms+` WHERE child_id::text = $1 AND status = $2 ORDER BY created_at DESC`,
		ownerID, string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("fetch pending alarms: %w", err)
	}

	return toAlarms(ctx, records), nil
}

// SetStatus implements Source.
func (s *PostgresSource) SetStatus(ctx context.Context, id, ownerID string, status domain.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alarms SET status = $1, updated_at = now() WHERE id::text = $2 AND child_id::text = $3`,
		string(status), id, ownerID)
	if err != nil {
		return fmt.Errorf("set status of alarm %s: %w", id, describe(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set status of alarm %s: %w", id, ErrNotFound)
	}

	return nil
}

func (s *PostgresSource) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, describe(err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[Record])
	if err != nil {
		return nil, describe(err)
	}

	return records, nil
}

// describe adds the server-side detail of a postgres error.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w (detail: %s, code: %s)", err, pgErr.Detail, pgErr.Code)
	}

	return err
}
