package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// BalanceStore implements domain.Escrow over the balances table. The
// balance >= 0 CHECK constraint is the hard backstop; the guarded UPDATEs
// below turn an overdraft into domain.ErrInsufficientFunds instead of a
// constraint violation.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a BalanceStore backed by the given pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Credit adds amount to the account, creating the row if needed.
func (s *BalanceStore) Credit(ctx context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("postgres: credit %s: %w: negative amount", account, domain.ErrInvalidAmount)
	}
	const query = `
		INSERT INTO balances (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = balances.balance + $2`

	if _, err := s.pool.Exec(ctx, query, account, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

// Debit removes amount from the account, failing on insufficient funds.
func (s *BalanceStore) Debit(ctx context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("postgres: debit %s: %w: negative amount", account, domain.ErrInvalidAmount)
	}
	const query = `
		UPDATE balances SET balance = balance - $2
		WHERE account = $1 AND balance >= $2`

	tag, err := s.pool.Exec(ctx, query, account, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: debit %s: %w", account, domain.ErrInsufficientFunds)
	}
	return nil
}

// Transfer atomically moves amount between accounts.
func (s *BalanceStore) Transfer(ctx context.Context, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("postgres: transfer %s->%s: %w: negative amount", from, to, domain.ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: transfer %s->%s: begin: %w", from, to, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const debit = `
		UPDATE balances SET balance = balance - $2
		WHERE account = $1 AND balance >= $2`
	tag, err := tx.Exec(ctx, debit, from, amount)
	if err != nil {
		return fmt.Errorf("postgres: transfer %s->%s: debit: %w", from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: transfer %s->%s: %w", from, to, domain.ErrInsufficientFunds)
	}

	const credit = `
		INSERT INTO balances (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = balances.balance + $2`
	if _, err := tx.Exec(ctx, credit, to, amount); err != nil {
		return fmt.Errorf("postgres: transfer %s->%s: credit: %w", from, to, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: transfer %s->%s: commit: %w", from, to, err)
	}
	return nil
}

// Balance returns the current balance of an account; unknown accounts are 0.
func (s *BalanceStore) Balance(ctx context.Context, account string) (int64, error) {
	const query = `SELECT COALESCE(
		(SELECT balance FROM balances WHERE account = $1), 0)`

	var balance int64
	if err := s.pool.QueryRow(ctx, query, account).Scan(&balance); err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return balance, nil
}

// Compile-time interface check.
var _ domain.Escrow = (*BalanceStore)(nil)
