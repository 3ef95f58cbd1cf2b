package escrow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func TestCreditDebitBalance(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	bal, err := m.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	require.NoError(t, m.Credit(ctx, "alice", 100))
	require.NoError(t, m.Debit(ctx, "alice", 40))

	bal, err = m.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(60), bal)
}

func TestDebitInsufficientFunds(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Credit(ctx, "alice", 50))
	err := m.Debit(ctx, "alice", 51)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	bal, err := m.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)
}

func TestNegativeAmountsRejected(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	assert.ErrorIs(t, m.Credit(ctx, "alice", -1), domain.ErrInvalidAmount)
	assert.ErrorIs(t, m.Debit(ctx, "alice", -1), domain.ErrInvalidAmount)
	assert.ErrorIs(t, m.Transfer(ctx, "alice", "bob", -1), domain.ErrInvalidAmount)
}

func TestTransferIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Credit(ctx, "alice", 30))

	// A failing transfer must not credit the destination.
	err := m.Transfer(ctx, "alice", "bob", 31)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	bobBal, err := m.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bobBal)

	require.NoError(t, m.Transfer(ctx, "alice", "bob", 30))
	aliceBal, err := m.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), aliceBal)
	bobBal, err = m.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(30), bobBal)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Credit(ctx, "a", 1_000))
	require.NoError(t, m.Credit(ctx, "b", 1_000))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "a", "b"
			if i%2 == 1 {
				from, to = "b", "a"
			}
			for j := 0; j < 100; j++ {
				// Some transfers may bounce on funds; conservation is
				// what matters.
				_ = m.Transfer(ctx, from, to, 7)
			}
		}(i)
	}
	wg.Wait()

	aBal, err := m.Balance(ctx, "a")
	require.NoError(t, err)
	bBal, err := m.Balance(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), aBal+bBal)
	assert.GreaterOrEqual(t, aBal, int64(0))
	assert.GreaterOrEqual(t, bBal, int64(0))
}
