package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wagerbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createProposition(t *testing.T, s *Store, creator string, deadline time.Time) domain.Proposition {
	t.Helper()
	p, err := s.Create(context.Background(), domain.Proposition{
		Question:  "q",
		Creator:   creator,
		CreatedAt: deadline.Add(-time.Hour).UTC(),
		Deadline:  deadline.UTC(),
	})
	require.NoError(t, err)
	return p
}

func TestPropositionRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

	p := createProposition(t, s, "alice", deadline)
	require.Equal(t, int64(1), p.ID)

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "q", got.Question)
	assert.Equal(t, "alice", got.Creator)
	assert.True(t, got.Deadline.Equal(deadline))
	assert.False(t, got.Resolved)
	assert.Nil(t, got.ResolvedAt)

	_, err = s.GetByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMarkResolvedConditionalFlip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p := createProposition(t, s, "alice", time.Now().Add(-time.Hour))
	at := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.MarkResolved(ctx, p.ID, true, at))
	assert.ErrorIs(t, s.MarkResolved(ctx, p.ID, false, at), domain.ErrAlreadyResolved)
	assert.ErrorIs(t, s.MarkResolved(ctx, 99, true, at), domain.ErrNotFound)

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.True(t, got.Verdict)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(at))
}

func TestListEndedUnresolved(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ended := createProposition(t, s, "alice", now.Add(-time.Hour))
	createProposition(t, s, "alice", now.Add(time.Hour))

	out, err := s.ListEndedUnresolved(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ended.ID, out[0].ID)
}

func TestPlaceBumpsTotalsAtomically(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p := createProposition(t, s, "alice", time.Now().Add(time.Hour))
	placedAt := time.Now().UTC()

	_, err := s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "bob", Side: domain.SideYes, Amount: 100, PlacedAt: placedAt})
	require.NoError(t, err)
	_, err = s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "carol", Side: domain.SideNo, Amount: 40, PlacedAt: placedAt})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.YesTotal)
	assert.Equal(t, int64(40), got.NoTotal)

	_, err = s.Place(ctx, domain.Stake{PropositionID: 99, Staker: "bob", Side: domain.SideYes, Amount: 1, PlacedAt: placedAt})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bobs, err := s.ListByStaker(ctx, p.ID, "bob")
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, domain.SideYes, bobs[0].Side)

	all, err := s.ListByProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMarkClaimedFlipsOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p := createProposition(t, s, "alice", time.Now().Add(time.Hour))
	placedAt := time.Now().UTC()

	st, err := s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "bob", Side: domain.SideYes, Amount: 10, PlacedAt: placedAt})
	require.NoError(t, err)

	flipped, err := s.MarkClaimed(ctx, p.ID, []int64{st.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{st.ID}, flipped)

	flipped, err = s.MarkClaimed(ctx, p.ID, []int64{st.ID})
	require.NoError(t, err)
	assert.Empty(t, flipped)

	require.NoError(t, s.UnmarkClaimed(ctx, p.ID, []int64{st.ID}))
	flipped, err = s.MarkClaimed(ctx, p.ID, []int64{st.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{st.ID}, flipped)
}

func TestResolutionAppendIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p := createProposition(t, s, "alice", time.Now().Add(-time.Hour))
	at := time.Now().UTC().Truncate(time.Millisecond)

	r := domain.Resolution{PropositionID: p.ID, Verdict: true, YesTotal: 10, NoTotal: 20, ResolvedBy: "r", ResolvedAt: at}
	require.NoError(t, s.Append(ctx, r))
	// A retried append keeps the original record.
	r2 := r
	r2.Verdict = false
	require.NoError(t, s.Append(ctx, r2))

	got, err := s.GetByProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Verdict)
	assert.Equal(t, int64(10), got.YesTotal)

	recent, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestBalancesEnforceFunds(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Credit(ctx, "alice", 100))
	assert.ErrorIs(t, s.Debit(ctx, "alice", 101), domain.ErrInsufficientFunds)
	assert.ErrorIs(t, s.Transfer(ctx, "alice", "bob", 101), domain.ErrInsufficientFunds)

	require.NoError(t, s.Transfer(ctx, "alice", "bob", 60))

	aliceBal, err := s.Balance(ctx, "alice")
	require.NoError(t, err)
	bobBal, err := s.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(40), aliceBal)
	assert.Equal(t, int64(60), bobBal)

	unknown, err := s.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unknown)
}

func TestAuditLog(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Log(ctx, "proposition.opened", map[string]any{"id": 1}))
	require.NoError(t, s.Log(ctx, "stake.placed", map[string]any{"id": 2}))

	out, err := s.List(ctx, domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "stake.placed", out[0].Event)

	before, err := s.ListBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, before, 2)
}
