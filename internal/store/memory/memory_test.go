package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func seedProposition(t *testing.T, s *Store, creator string, deadline time.Time) domain.Proposition {
	t.Helper()
	p, err := s.Create(context.Background(), domain.Proposition{
		Question:  "q",
		Category:  "misc",
		Creator:   creator,
		CreatedAt: deadline.Add(-time.Hour),
		Deadline:  deadline,
	})
	require.NoError(t, err)
	return p
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := New()
	deadline := time.Now().Add(time.Hour)

	p1 := seedProposition(t, s, "alice", deadline)
	p2 := seedProposition(t, s, "bob", deadline)
	assert.Equal(t, int64(1), p1.ID)
	assert.Equal(t, int64(2), p2.ID)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGetByIDNotFound(t *testing.T) {
	s := New()
	_, err := s.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByCreatorOrdersByID(t *testing.T) {
	s := New()
	deadline := time.Now().Add(time.Hour)
	seedProposition(t, s, "alice", deadline)
	seedProposition(t, s, "bob", deadline)
	seedProposition(t, s, "alice", deadline)

	out, err := s.ListByCreator(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Less(t, out[0].ID, out[1].ID)
}

func TestListEndedUnresolved(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	late := seedProposition(t, s, "alice", now.Add(-2*time.Hour))
	later := seedProposition(t, s, "alice", now.Add(-time.Hour))
	seedProposition(t, s, "alice", now.Add(time.Hour)) // still open
	resolved := seedProposition(t, s, "alice", now.Add(-3*time.Hour))
	require.NoError(t, s.MarkResolved(ctx, resolved.ID, true, now))

	out, err := s.ListEndedUnresolved(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Oldest deadline first.
	assert.Equal(t, late.ID, out[0].ID)
	assert.Equal(t, later.ID, out[1].ID)

	out, err = s.ListEndedUnresolved(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, late.ID, out[0].ID)

	// A proposition exactly at its deadline counts as ended.
	out, err = s.ListEndedUnresolved(ctx, later.Deadline, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestMarkResolvedIsOneShot(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProposition(t, s, "alice", time.Now().Add(-time.Hour))
	at := time.Now().UTC()

	require.NoError(t, s.MarkResolved(ctx, p.ID, true, at))

	err := s.MarkResolved(ctx, p.ID, false, at)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.True(t, got.Verdict)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, at, *got.ResolvedAt)

	err = s.MarkResolved(ctx, 999, true, at)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceBumpsPoolTotals(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProposition(t, s, "alice", time.Now().Add(time.Hour))

	st1, err := s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "bob", Side: domain.SideYes, Amount: 100})
	require.NoError(t, err)
	st2, err := s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "carol", Side: domain.SideNo, Amount: 40})
	require.NoError(t, err)
	assert.Equal(t, st1.ID+1, st2.ID)

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.YesTotal)
	assert.Equal(t, int64(40), got.NoTotal)

	_, err = s.Place(ctx, domain.Stake{PropositionID: 999, Staker: "bob", Side: domain.SideYes, Amount: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByStakerFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProposition(t, s, "alice", time.Now().Add(time.Hour))

	for _, st := range []domain.Stake{
		{PropositionID: p.ID, Staker: "bob", Side: domain.SideYes, Amount: 1},
		{PropositionID: p.ID, Staker: "carol", Side: domain.SideNo, Amount: 2},
		{PropositionID: p.ID, Staker: "bob", Side: domain.SideNo, Amount: 3},
	} {
		_, err := s.Place(ctx, st)
		require.NoError(t, err)
	}

	all, err := s.ListByProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bobs, err := s.ListByStaker(ctx, p.ID, "bob")
	require.NoError(t, err)
	require.Len(t, bobs, 2)
	assert.Equal(t, int64(1), bobs[0].Amount)
	assert.Equal(t, int64(3), bobs[1].Amount)
}

func TestMarkClaimedFlipsOnlyUnclaimed(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProposition(t, s, "alice", time.Now().Add(time.Hour))

	st1, err := s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "bob", Side: domain.SideYes, Amount: 1})
	require.NoError(t, err)
	st2, err := s.Place(ctx, domain.Stake{PropositionID: p.ID, Staker: "bob", Side: domain.SideYes, Amount: 2})
	require.NoError(t, err)

	flipped, err := s.MarkClaimed(ctx, p.ID, []int64{st1.ID, st2.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{st1.ID, st2.ID}, flipped)

	// Already-claimed ids are not reported a second time.
	flipped, err = s.MarkClaimed(ctx, p.ID, []int64{st1.ID, st2.ID})
	require.NoError(t, err)
	assert.Empty(t, flipped)

	require.NoError(t, s.UnmarkClaimed(ctx, p.ID, []int64{st2.ID}))
	flipped, err = s.MarkClaimed(ctx, p.ID, []int64{st1.ID, st2.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{st2.ID}, flipped)
}

func TestResolutionRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.GetByProposition(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	r1 := domain.Resolution{PropositionID: 1, Verdict: true, YesTotal: 10, NoTotal: 20, ResolvedBy: "r", ResolvedAt: now.Add(-time.Minute)}
	r2 := domain.Resolution{PropositionID: 2, Verdict: false, ResolvedBy: "r", ResolvedAt: now}
	require.NoError(t, s.Append(ctx, r1))
	require.NoError(t, s.Append(ctx, r2))

	got, err := s.GetByProposition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, r1, got)

	recent, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(2), recent[0].PropositionID)
}

func TestAuditLogPagination(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Log(ctx, "stake.placed", map[string]any{"n": i}))
	}

	out, err := s.List(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Newest first.
	assert.Equal(t, int64(5), out[0].ID)
	assert.Equal(t, int64(4), out[1].ID)

	out, err = s.List(ctx, domain.ListOpts{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)

	out, err = s.List(ctx, domain.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, out)

	cutoff := time.Now().Add(time.Minute)
	before, err := s.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Len(t, before, 5)
}
