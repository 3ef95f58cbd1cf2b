package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a ResolutionStore backed by the given pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

// Append stores a resolution record. The primary key on proposition_id keeps
// the table one-row-per-proposition even if a retry re-appends.
func (s *ResolutionStore) Append(ctx context.Context, r domain.Resolution) error {
	const query = `
		INSERT INTO resolutions (
			proposition_id, verdict, yes_total, no_total, resolved_by, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (proposition_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		r.PropositionID, r.Verdict, r.YesTotal, r.NoTotal, r.ResolvedBy, r.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append resolution %d: %w", r.PropositionID, err)
	}
	return nil
}

// GetByProposition returns the resolution record or domain.ErrNotFound.
func (s *ResolutionStore) GetByProposition(ctx context.Context, propositionID int64) (domain.Resolution, error) {
	const query = `
		SELECT proposition_id, verdict, yes_total, no_total, resolved_by, resolved_at
		FROM resolutions WHERE proposition_id = $1`

	var r domain.Resolution
	err := s.pool.QueryRow(ctx, query, propositionID).Scan(
		&r.PropositionID, &r.Verdict, &r.YesTotal, &r.NoTotal, &r.ResolvedBy, &r.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resolution{}, fmt.Errorf("postgres: resolution %d: %w", propositionID, domain.ErrNotFound)
		}
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution %d: %w", propositionID, err)
	}
	return r, nil
}

// ListRecent returns the most recent resolutions, newest first.
func (s *ResolutionStore) ListRecent(ctx context.Context, limit int) ([]domain.Resolution, error) {
	const query = `
		SELECT proposition_id, verdict, yes_total, no_total, resolved_by, resolved_at
		FROM resolutions ORDER BY resolved_at DESC LIMIT $1`

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent resolutions: %w", err)
	}
	defer rows.Close()

	var out []domain.Resolution
	for rows.Next() {
		var r domain.Resolution
		if err := rows.Scan(
			&r.PropositionID, &r.Verdict, &r.YesTotal, &r.NoTotal, &r.ResolvedBy, &r.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan resolution: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate resolutions: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.ResolutionStore = (*ResolutionStore)(nil)
