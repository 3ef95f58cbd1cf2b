package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// StakeStore implements domain.StakeStore using PostgreSQL.
type StakeStore struct {
	pool *pgxpool.Pool
}

// NewStakeStore creates a StakeStore backed by the given pool.
func NewStakeStore(pool *pgxpool.Pool) *StakeStore {
	return &StakeStore{pool: pool}
}

// Place appends the stake and bumps the matching pool total in one
// transaction, so stake rows and pool totals can never diverge.
func (s *StakeStore) Place(ctx context.Context, st domain.Stake) (domain.Stake, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("postgres: place stake: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	column := "yes_total"
	if st.Side == domain.SideNo {
		column = "no_total"
	}
	bump := fmt.Sprintf(
		"UPDATE propositions SET %s = %s + $2 WHERE id = $1", column, column)

	tag, err := tx.Exec(ctx, bump, st.PropositionID, st.Amount)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("postgres: place stake: bump pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Stake{}, fmt.Errorf("postgres: proposition %d: %w", st.PropositionID, domain.ErrNotFound)
	}

	const insert = `
		INSERT INTO stakes (proposition_id, staker, side, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err = tx.QueryRow(ctx, insert,
		st.PropositionID, st.Staker, string(st.Side), st.Amount, st.PlacedAt,
	).Scan(&st.ID)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("postgres: place stake: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Stake{}, fmt.Errorf("postgres: place stake: commit: %w", err)
	}
	return st, nil
}

const stakeColumns = `
	id, proposition_id, staker, side, amount, claimed, placed_at`

func scanStake(row pgx.Row) (domain.Stake, error) {
	var st domain.Stake
	var side string
	err := row.Scan(
		&st.ID, &st.PropositionID, &st.Staker, &side, &st.Amount, &st.Claimed, &st.PlacedAt,
	)
	st.Side = domain.Side(side)
	return st, err
}

// ListByProposition returns all stakes for a proposition in insertion order.
func (s *StakeStore) ListByProposition(ctx context.Context, propositionID int64) ([]domain.Stake, error) {
	query := `SELECT` + stakeColumns + `
		FROM stakes WHERE proposition_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, propositionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes for %d: %w", propositionID, err)
	}
	defer rows.Close()

	return collectStakes(rows)
}

// ListByStaker returns the staker's positions within a proposition in
// insertion order.
func (s *StakeStore) ListByStaker(ctx context.Context, propositionID int64, staker string) ([]domain.Stake, error) {
	query := `SELECT` + stakeColumns + `
		FROM stakes WHERE proposition_id = $1 AND staker = $2 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, propositionID, staker)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes for %d/%s: %w", propositionID, staker, err)
	}
	defer rows.Close()

	return collectStakes(rows)
}

// MarkClaimed flips claimed=true on still-unclaimed stakes and returns the
// ids it actually flipped. The WHERE NOT claimed guard makes concurrent
// claims settle to exactly one payer per stake.
func (s *StakeStore) MarkClaimed(ctx context.Context, propositionID int64, stakeIDs []int64) ([]int64, error) {
	const query = `
		UPDATE stakes
		SET claimed = TRUE
		WHERE proposition_id = $1 AND id = ANY($2) AND NOT claimed
		RETURNING id`

	rows, err := s.pool.Query(ctx, query, propositionID, stakeIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: mark claimed on %d: %w", propositionID, err)
	}
	defer rows.Close()

	var flipped []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan claimed id: %w", err)
		}
		flipped = append(flipped, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate claimed ids: %w", err)
	}
	return flipped, nil
}

// UnmarkClaimed reverses MarkClaimed after a failed fund release.
func (s *StakeStore) UnmarkClaimed(ctx context.Context, propositionID int64, stakeIDs []int64) error {
	const query = `
		UPDATE stakes
		SET claimed = FALSE
		WHERE proposition_id = $1 AND id = ANY($2)`

	if _, err := s.pool.Exec(ctx, query, propositionID, stakeIDs); err != nil {
		return fmt.Errorf("postgres: unmark claimed on %d: %w", propositionID, err)
	}
	return nil
}

func collectStakes(rows pgx.Rows) ([]domain.Stake, error) {
	var out []domain.Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan stake: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate stakes: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.StakeStore = (*StakeStore)(nil)
