package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// PropositionStore implements domain.PropositionStore using PostgreSQL.
type PropositionStore struct {
	pool *pgxpool.Pool
}

// NewPropositionStore creates a PropositionStore backed by the given pool.
func NewPropositionStore(pool *pgxpool.Pool) *PropositionStore {
	return &PropositionStore{pool: pool}
}

const propositionColumns = `
	id, question, category, creator, yes_total, no_total,
	resolved, verdict, created_at, deadline, resolved_at`

func scanProposition(row pgx.Row) (domain.Proposition, error) {
	var p domain.Proposition
	err := row.Scan(
		&p.ID, &p.Question, &p.Category, &p.Creator, &p.YesTotal, &p.NoTotal,
		&p.Resolved, &p.Verdict, &p.CreatedAt, &p.Deadline, &p.ResolvedAt,
	)
	return p, err
}

// Create persists the proposition and returns it with the assigned id.
func (s *PropositionStore) Create(ctx context.Context, p domain.Proposition) (domain.Proposition, error) {
	const query = `
		INSERT INTO propositions (
			question, category, creator, created_at, deadline
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		p.Question, p.Category, p.Creator, p.CreatedAt, p.Deadline,
	).Scan(&p.ID)
	if err != nil {
		return domain.Proposition{}, fmt.Errorf("postgres: create proposition: %w", err)
	}
	return p, nil
}

// GetByID returns a proposition or domain.ErrNotFound.
func (s *PropositionStore) GetByID(ctx context.Context, id int64) (domain.Proposition, error) {
	query := `SELECT` + propositionColumns + ` FROM propositions WHERE id = $1`

	p, err := scanProposition(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposition{}, fmt.Errorf("postgres: proposition %d: %w", id, domain.ErrNotFound)
		}
		return domain.Proposition{}, fmt.Errorf("postgres: get proposition %d: %w", id, err)
	}
	return p, nil
}

// ListByCreator returns the creator's propositions ordered by id.
func (s *PropositionStore) ListByCreator(ctx context.Context, creator string) ([]domain.Proposition, error) {
	query := `SELECT` + propositionColumns + `
		FROM propositions WHERE creator = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("postgres: list propositions by creator: %w", err)
	}
	defer rows.Close()

	return collectPropositions(rows)
}

// ListEndedUnresolved returns unresolved propositions whose deadline has
// passed, oldest deadline first.
func (s *PropositionStore) ListEndedUnresolved(ctx context.Context, now time.Time, limit int) ([]domain.Proposition, error) {
	query := `SELECT` + propositionColumns + `
		FROM propositions
		WHERE NOT resolved AND deadline <= $1
		ORDER BY deadline
		LIMIT $2`

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ended unresolved: %w", err)
	}
	defer rows.Close()

	return collectPropositions(rows)
}

// MarkResolved flips the resolved flag exactly once. The WHERE NOT resolved
// guard makes the flip conditional so concurrent resolvers cannot both win.
func (s *PropositionStore) MarkResolved(ctx context.Context, id int64, verdict bool, at time.Time) error {
	const query = `
		UPDATE propositions
		SET resolved = TRUE, verdict = $2, resolved_at = $3
		WHERE id = $1 AND NOT resolved`

	tag, err := s.pool.Exec(ctx, query, id, verdict, at)
	if err != nil {
		return fmt.Errorf("postgres: mark resolved %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from an already-resolved one.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM propositions WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: mark resolved %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("postgres: proposition %d: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: proposition %d: %w", id, domain.ErrAlreadyResolved)
	}
	return nil
}

// Count returns the number of propositions.
func (s *PropositionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM propositions").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count propositions: %w", err)
	}
	return n, nil
}

func collectPropositions(rows pgx.Rows) ([]domain.Proposition, error) {
	var out []domain.Proposition
	for rows.Next() {
		p, err := scanProposition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan proposition: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate propositions: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.PropositionStore = (*PropositionStore)(nil)
