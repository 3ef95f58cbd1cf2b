// Package escrow provides the in-memory implementation of the fund-custody
// primitive. It backs tests and memory-storage deployments; durable
// deployments use the balance store of their SQL driver instead.
package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// Memory is an in-memory Escrow keyed by account name. All operations are
// serialised on one mutex so a Transfer is atomic.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemory creates an empty in-memory escrow.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]int64)}
}

// Credit adds amount to the account, creating it if needed.
func (m *Memory) Credit(_ context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("escrow: credit %s: %w: negative amount", account, domain.ErrInvalidAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
	return nil
}

// Debit removes amount from the account.
func (m *Memory) Debit(_ context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("escrow: debit %s: %w: negative amount", account, domain.ErrInvalidAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(account, amount)
}

// Transfer atomically moves amount between accounts.
func (m *Memory) Transfer(_ context.Context, from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("escrow: transfer %s->%s: %w: negative amount", from, to, domain.ErrInvalidAmount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.debitLocked(from, amount); err != nil {
		return err
	}
	m.balances[to] += amount
	return nil
}

// Balance returns the current balance of an account; unknown accounts are 0.
func (m *Memory) Balance(_ context.Context, account string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

func (m *Memory) debitLocked(account string, amount int64) error {
	if m.balances[account] < amount {
		return fmt.Errorf("escrow: debit %s: %w: have %d, need %d",
			account, domain.ErrInsufficientFunds, m.balances[account], amount)
	}
	m.balances[account] -= amount
	return nil
}

// Compile-time interface check.
var _ domain.Escrow = (*Memory)(nil)
