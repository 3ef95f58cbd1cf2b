// Package sqlite implements the domain store interfaces over a single
// embedded SQLite database. It serves single-node deployments that want
// durability without running PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS propositions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    category    TEXT    NOT NULL DEFAULT '',
    creator     TEXT    NOT NULL,
    yes_total   INTEGER NOT NULL DEFAULT 0,
    no_total    INTEGER NOT NULL DEFAULT 0,
    resolved    INTEGER NOT NULL DEFAULT 0,
    verdict     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT    NOT NULL,
    deadline    TEXT    NOT NULL,
    resolved_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_propositions_creator ON propositions (creator);

CREATE TABLE IF NOT EXISTS stakes (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    proposition_id INTEGER NOT NULL REFERENCES propositions (id),
    staker         TEXT    NOT NULL,
    side           TEXT    NOT NULL CHECK (side IN ('yes', 'no')),
    amount         INTEGER NOT NULL CHECK (amount > 0),
    claimed        INTEGER NOT NULL DEFAULT 0,
    placed_at      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stakes_proposition ON stakes (proposition_id, id);
CREATE INDEX IF NOT EXISTS idx_stakes_staker ON stakes (proposition_id, staker);

CREATE TABLE IF NOT EXISTS resolutions (
    proposition_id INTEGER PRIMARY KEY REFERENCES propositions (id),
    verdict        INTEGER NOT NULL,
    yes_total      INTEGER NOT NULL,
    no_total       INTEGER NOT NULL,
    resolved_by    TEXT    NOT NULL,
    resolved_at    TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    account TEXT    PRIMARY KEY,
    balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS audit_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event      TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL
);
`

// Store implements domain.PropositionStore, domain.StakeStore,
// domain.ResolutionStore, domain.AuditStore, and domain.Escrow over one
// SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// SQLite serialises writers, so one connection is enough and avoids
// SQLITE_BUSY churn.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Create persists the proposition and returns it with the assigned id.
func (s *Store) Create(ctx context.Context, p domain.Proposition) (domain.Proposition, error) {
	const query = `
		INSERT INTO propositions (question, category, creator, created_at, deadline)
		VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		p.Question, p.Category, p.Creator, fmtTime(p.CreatedAt), fmtTime(p.Deadline))
	if err != nil {
		return domain.Proposition{}, fmt.Errorf("sqlite: create proposition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Proposition{}, fmt.Errorf("sqlite: create proposition: %w", err)
	}
	p.ID = id
	return p, nil
}

const propositionColumns = `
	id, question, category, creator, yes_total, no_total,
	resolved, verdict, created_at, deadline, resolved_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposition(row rowScanner) (domain.Proposition, error) {
	var p domain.Proposition
	var createdAt, deadline string
	var resolvedAt sql.NullString

	err := row.Scan(
		&p.ID, &p.Question, &p.Category, &p.Creator, &p.YesTotal, &p.NoTotal,
		&p.Resolved, &p.Verdict, &createdAt, &deadline, &resolvedAt,
	)
	if err != nil {
		return domain.Proposition{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Proposition{}, err
	}
	if p.Deadline, err = parseTime(deadline); err != nil {
		return domain.Proposition{}, err
	}
	if resolvedAt.Valid {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return domain.Proposition{}, err
		}
		p.ResolvedAt = &t
	}
	return p, nil
}

// GetByID returns a proposition or domain.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (domain.Proposition, error) {
	query := `SELECT` + propositionColumns + ` FROM propositions WHERE id = ?`

	p, err := scanProposition(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Proposition{}, fmt.Errorf("sqlite: proposition %d: %w", id, domain.ErrNotFound)
		}
		return domain.Proposition{}, fmt.Errorf("sqlite: get proposition %d: %w", id, err)
	}
	return p, nil
}

// ListByCreator returns the creator's propositions ordered by id.
func (s *Store) ListByCreator(ctx context.Context, creator string) ([]domain.Proposition, error) {
	query := `SELECT` + propositionColumns + `
		FROM propositions WHERE creator = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list propositions by creator: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPropositions(rows)
}

// ListEndedUnresolved returns unresolved propositions past their deadline,
// oldest deadline first.
func (s *Store) ListEndedUnresolved(ctx context.Context, now time.Time, limit int) ([]domain.Proposition, error) {
	query := `SELECT` + propositionColumns + `
		FROM propositions
		WHERE resolved = 0 AND deadline <= ?
		ORDER BY deadline
		LIMIT ?`

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, fmtTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list ended unresolved: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPropositions(rows)
}

// MarkResolved flips the resolved flag exactly once.
func (s *Store) MarkResolved(ctx context.Context, id int64, verdict bool, at time.Time) error {
	const query = `
		UPDATE propositions
		SET resolved = 1, verdict = ?, resolved_at = ?
		WHERE id = ? AND resolved = 0`

	res, err := s.db.ExecContext(ctx, query, verdict, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: mark resolved %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: mark resolved %d: %w", id, err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM propositions WHERE id = ?)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: mark resolved %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("sqlite: proposition %d: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("sqlite: proposition %d: %w", id, domain.ErrAlreadyResolved)
	}
	return nil
}

// Count returns the number of propositions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM propositions").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count propositions: %w", err)
	}
	return n, nil
}

func collectPropositions(rows *sql.Rows) ([]domain.Proposition, error) {
	var out []domain.Proposition
	for rows.Next() {
		p, err := scanProposition(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan proposition: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate propositions: %w", err)
	}
	return out, nil
}

// Place appends the stake and bumps the matching pool total in one
// transaction.
func (s *Store) Place(ctx context.Context, st domain.Stake) (domain.Stake, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("sqlite: place stake: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	column := "yes_total"
	if st.Side == domain.SideNo {
		column = "no_total"
	}
	bump := fmt.Sprintf("UPDATE propositions SET %s = %s + ? WHERE id = ?", column, column)

	res, err := tx.ExecContext(ctx, bump, st.Amount, st.PropositionID)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("sqlite: place stake: bump pool: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Stake{}, fmt.Errorf("sqlite: place stake: %w", err)
	}
	if affected == 0 {
		return domain.Stake{}, fmt.Errorf("sqlite: proposition %d: %w", st.PropositionID, domain.ErrNotFound)
	}

	const insert = `
		INSERT INTO stakes (proposition_id, staker, side, amount, placed_at)
		VALUES (?, ?, ?, ?, ?)`
	ins, err := tx.ExecContext(ctx, insert,
		st.PropositionID, st.Staker, string(st.Side), st.Amount, fmtTime(st.PlacedAt))
	if err != nil {
		return domain.Stake{}, fmt.Errorf("sqlite: place stake: insert: %w", err)
	}
	if st.ID, err = ins.LastInsertId(); err != nil {
		return domain.Stake{}, fmt.Errorf("sqlite: place stake: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Stake{}, fmt.Errorf("sqlite: place stake: commit: %w", err)
	}
	return st, nil
}

const stakeColumns = `
	id, proposition_id, staker, side, amount, claimed, placed_at`

func scanStake(row rowScanner) (domain.Stake, error) {
	var st domain.Stake
	var side, placedAt string
	err := row.Scan(&st.ID, &st.PropositionID, &st.Staker, &side, &st.Amount, &st.Claimed, &placedAt)
	if err != nil {
		return domain.Stake{}, err
	}
	st.Side = domain.Side(side)
	if st.PlacedAt, err = parseTime(placedAt); err != nil {
		return domain.Stake{}, err
	}
	return st, nil
}

// ListByProposition returns all stakes for a proposition in insertion order.
func (s *Store) ListByProposition(ctx context.Context, propositionID int64) ([]domain.Stake, error) {
	query := `SELECT` + stakeColumns + `
		FROM stakes WHERE proposition_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, propositionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list stakes for %d: %w", propositionID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectStakes(rows)
}

// ListByStaker returns the staker's positions within a proposition in
// insertion order.
func (s *Store) ListByStaker(ctx context.Context, propositionID int64, staker string) ([]domain.Stake, error) {
	query := `SELECT` + stakeColumns + `
		FROM stakes WHERE proposition_id = ? AND staker = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, propositionID, staker)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list stakes for %d/%s: %w", propositionID, staker, err)
	}
	defer func() { _ = rows.Close() }()

	return collectStakes(rows)
}

// MarkClaimed flips claimed=1 on still-unclaimed stakes and returns the ids
// it actually flipped.
func (s *Store) MarkClaimed(ctx context.Context, propositionID int64, stakeIDs []int64) ([]int64, error) {
	var flipped []int64
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: mark claimed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		UPDATE stakes SET claimed = 1
		WHERE proposition_id = ? AND id = ? AND claimed = 0`
	for _, id := range stakeIDs {
		res, err := tx.ExecContext(ctx, query, propositionID, id)
		if err != nil {
			return nil, fmt.Errorf("sqlite: mark claimed %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("sqlite: mark claimed %d: %w", id, err)
		}
		if affected > 0 {
			flipped = append(flipped, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: mark claimed: commit: %w", err)
	}
	return flipped, nil
}

// UnmarkClaimed reverses MarkClaimed after a failed fund release.
func (s *Store) UnmarkClaimed(ctx context.Context, propositionID int64, stakeIDs []int64) error {
	const query = `
		UPDATE stakes SET claimed = 0
		WHERE proposition_id = ? AND id = ?`
	for _, id := range stakeIDs {
		if _, err := s.db.ExecContext(ctx, query, propositionID, id); err != nil {
			return fmt.Errorf("sqlite: unmark claimed %d: %w", id, err)
		}
	}
	return nil
}

func collectStakes(rows *sql.Rows) ([]domain.Stake, error) {
	var out []domain.Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan stake: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate stakes: %w", err)
	}
	return out, nil
}

// Append stores a resolution record, idempotently.
func (s *Store) Append(ctx context.Context, r domain.Resolution) error {
	const query = `
		INSERT OR IGNORE INTO resolutions (
			proposition_id, verdict, yes_total, no_total, resolved_by, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		r.PropositionID, r.Verdict, r.YesTotal, r.NoTotal, r.ResolvedBy, fmtTime(r.ResolvedAt))
	if err != nil {
		return fmt.Errorf("sqlite: append resolution %d: %w", r.PropositionID, err)
	}
	return nil
}

func scanResolution(row rowScanner) (domain.Resolution, error) {
	var r domain.Resolution
	var resolvedAt string
	err := row.Scan(&r.PropositionID, &r.Verdict, &r.YesTotal, &r.NoTotal, &r.ResolvedBy, &resolvedAt)
	if err != nil {
		return domain.Resolution{}, err
	}
	if r.ResolvedAt, err = parseTime(resolvedAt); err != nil {
		return domain.Resolution{}, err
	}
	return r, nil
}

// GetByProposition returns the resolution record or domain.ErrNotFound.
func (s *Store) GetByProposition(ctx context.Context, propositionID int64) (domain.Resolution, error) {
	const query = `
		SELECT proposition_id, verdict, yes_total, no_total, resolved_by, resolved_at
		FROM resolutions WHERE proposition_id = ?`

	r, err := scanResolution(s.db.QueryRowContext(ctx, query, propositionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Resolution{}, fmt.Errorf("sqlite: resolution %d: %w", propositionID, domain.ErrNotFound)
		}
		return domain.Resolution{}, fmt.Errorf("sqlite: get resolution %d: %w", propositionID, err)
	}
	return r, nil
}

// ListRecent returns the most recent resolutions, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.Resolution, error) {
	const query = `
		SELECT proposition_id, verdict, yes_total, no_total, resolved_by, resolved_at
		FROM resolutions ORDER BY resolved_at DESC LIMIT ?`

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list recent resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Resolution
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan resolution: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate resolutions: %w", err)
	}
	return out, nil
}

// Log appends an audit entry.
func (s *Store) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("sqlite: marshal audit detail: %w", err)
	}

	const query = `INSERT INTO audit_log (event, detail, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, event, string(detailJSON), fmtTime(time.Now())); err != nil {
		return fmt.Errorf("sqlite: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries, newest first, with pagination.
func (s *Store) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query := `SELECT id, event, detail, created_at FROM audit_log ORDER BY id DESC`
	var args []any
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectAuditEntries(rows)
}

// ListBefore returns entries created strictly before the cutoff, oldest
// first.
func (s *Store) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error) {
	const query = `
		SELECT id, event, detail, created_at
		FROM audit_log WHERE created_at < ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, fmtTime(before))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries before %s: %w", before, err)
	}
	defer func() { _ = rows.Close() }()

	return collectAuditEntries(rows)
}

func collectAuditEntries(rows *sql.Rows) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var detailJSON, createdAt string
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(detailJSON), &e.Detail); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal audit detail: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse audit timestamp: %w", err)
		}
		e.CreatedAt = t
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate audit entries: %w", err)
	}
	return out, nil
}

// Credit adds amount to the account, creating the row if needed.
func (s *Store) Credit(ctx context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("sqlite: credit %s: %w: negative amount", account, domain.ErrInvalidAmount)
	}
	const query = `
		INSERT INTO balances (account, balance) VALUES (?, ?)
		ON CONFLICT (account) DO UPDATE SET balance = balance + excluded.balance`

	if _, err := s.db.ExecContext(ctx, query, account, amount); err != nil {
		return fmt.Errorf("sqlite: credit %s: %w", account, err)
	}
	return nil
}

// Debit removes amount from the account, failing on insufficient funds.
func (s *Store) Debit(ctx context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("sqlite: debit %s: %w: negative amount", account, domain.ErrInvalidAmount)
	}
	const query = `
		UPDATE balances SET balance = balance - ?
		WHERE account = ? AND balance >= ?`

	res, err := s.db.ExecContext(ctx, query, amount, account, amount)
	if err != nil {
		return fmt.Errorf("sqlite: debit %s: %w", account, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: debit %s: %w", account, err)
	}
	if affected == 0 {
		return fmt.Errorf("sqlite: debit %s: %w", account, domain.ErrInsufficientFunds)
	}
	return nil
}

// Transfer atomically moves amount between accounts.
func (s *Store) Transfer(ctx context.Context, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("sqlite: transfer %s->%s: %w: negative amount", from, to, domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: transfer %s->%s: begin: %w", from, to, err)
	}
	defer func() { _ = tx.Rollback() }()

	const debit = `
		UPDATE balances SET balance = balance - ?
		WHERE account = ? AND balance >= ?`
	res, err := tx.ExecContext(ctx, debit, amount, from, amount)
	if err != nil {
		return fmt.Errorf("sqlite: transfer %s->%s: debit: %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: transfer %s->%s: %w", from, to, err)
	}
	if affected == 0 {
		return fmt.Errorf("sqlite: transfer %s->%s: %w", from, to, domain.ErrInsufficientFunds)
	}

	const credit = `
		INSERT INTO balances (account, balance) VALUES (?, ?)
		ON CONFLICT (account) DO UPDATE SET balance = balance + excluded.balance`
	if _, err := tx.ExecContext(ctx, credit, to, amount); err != nil {
		return fmt.Errorf("sqlite: transfer %s->%s: credit: %w", from, to, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: transfer %s->%s: commit: %w", from, to, err)
	}
	return nil
}

// Balance returns the current balance of an account; unknown accounts are 0.
func (s *Store) Balance(ctx context.Context, account string) (int64, error) {
	const query = `SELECT COALESCE(
		(SELECT balance FROM balances WHERE account = ?), 0)`

	var balance int64
	if err := s.db.QueryRowContext(ctx, query, account).Scan(&balance); err != nil {
		return 0, fmt.Errorf("sqlite: balance %s: %w", account, err)
	}
	return balance, nil
}

// Compile-time interface checks.
var (
	_ domain.PropositionStore = (*Store)(nil)
	_ domain.StakeStore       = (*Store)(nil)
	_ domain.ResolutionStore  = (*Store)(nil)
	_ domain.AuditStore       = (*Store)(nil)
	_ domain.Escrow           = (*Store)(nil)
)
