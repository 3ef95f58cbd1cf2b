package settle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/bus"
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/store/memory"
)

const workerIdentity = "0x00000000000000000000000000000000000000F1"

// recordingService records Resolve calls.
type recordingService struct {
	calls []resolveCall
	err   error
}

type resolveCall struct {
	caller  string
	id      int64
	verdict bool
}

func (s *recordingService) Resolve(_ context.Context, caller string, id int64, verdict bool) (domain.Resolution, error) {
	s.calls = append(s.calls, resolveCall{caller: caller, id: id, verdict: verdict})
	if s.err != nil {
		return domain.Resolution{}, s.err
	}
	return domain.Resolution{PropositionID: id, Verdict: verdict}, nil
}

// tableResolver answers from a fixed verdict table.
type tableResolver struct {
	verdicts map[int64]bool
}

func (r *tableResolver) SupplyVerdict(_ context.Context, p domain.Proposition) (bool, bool, error) {
	v, ok := r.verdicts[p.ID]
	return v, ok, nil
}

func seedEnded(t *testing.T, store *memory.Store, n int) []domain.Proposition {
	t.Helper()
	now := time.Now()
	out := make([]domain.Proposition, 0, n)
	for i := 0; i < n; i++ {
		p, err := store.Create(context.Background(), domain.Proposition{
			Question:  "q",
			Creator:   "alice",
			CreatedAt: now.Add(-2 * time.Hour),
			Deadline:  now.Add(-time.Hour),
		})
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestSweepResolvesOnlyPropositionsWithVerdicts(t *testing.T) {
	store := memory.New()
	props := seedEnded(t, store, 3)

	svc := &recordingService{}
	resolver := &tableResolver{verdicts: map[int64]bool{
		props[0].ID: true,
		props[2].ID: false,
	}}

	w := NewWorker(store, svc, resolver, WorkerConfig{Identity: workerIdentity}, slog.New(slog.DiscardHandler))
	require.NoError(t, w.Sweep(context.Background()))

	require.Len(t, svc.calls, 2)
	assert.Equal(t, resolveCall{caller: workerIdentity, id: props[0].ID, verdict: true}, svc.calls[0])
	assert.Equal(t, resolveCall{caller: workerIdentity, id: props[2].ID, verdict: false}, svc.calls[1])
}

func TestSweepSkipsOpenPropositions(t *testing.T) {
	store := memory.New()
	_, err := store.Create(context.Background(), domain.Proposition{
		Question:  "q",
		Creator:   "alice",
		CreatedAt: time.Now(),
		Deadline:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	svc := &recordingService{}
	resolver := &tableResolver{verdicts: map[int64]bool{1: true}}

	w := NewWorker(store, svc, resolver, WorkerConfig{Identity: workerIdentity}, slog.New(slog.DiscardHandler))
	require.NoError(t, w.Sweep(context.Background()))
	assert.Empty(t, svc.calls)
}

func TestSweepToleratesAlreadyResolved(t *testing.T) {
	store := memory.New()
	props := seedEnded(t, store, 1)

	svc := &recordingService{err: domain.ErrAlreadyResolved}
	resolver := &tableResolver{verdicts: map[int64]bool{props[0].ID: true}}

	w := NewWorker(store, svc, resolver, WorkerConfig{Identity: workerIdentity}, slog.New(slog.DiscardHandler))
	assert.NoError(t, w.Sweep(context.Background()))
}

// failingResolver always errors.
type failingResolver struct{}

func (failingResolver) SupplyVerdict(context.Context, domain.Proposition) (bool, bool, error) {
	return false, false, errors.New("oracle offline")
}

func TestSweepContinuesPastResolverErrors(t *testing.T) {
	store := memory.New()
	seedEnded(t, store, 2)

	svc := &recordingService{}
	w := NewWorker(store, svc, failingResolver{}, WorkerConfig{Identity: workerIdentity}, slog.New(slog.DiscardHandler))

	assert.NoError(t, w.Sweep(context.Background()))
	assert.Empty(t, svc.calls)
}

func TestStreamResolverConsumesVerdictFeed(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemory()
	r := NewStreamResolver(b, "")

	p := domain.Proposition{ID: 7}

	// Nothing submitted yet.
	_, ok, err := r.SupplyVerdict(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SubmitVerdict(ctx, b, VerdictMessage{PropositionID: 7, Verdict: true, Source: "ops"}))

	verdict, ok, err := r.SupplyVerdict(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, verdict)

	// A corrected verdict for the same proposition wins.
	require.NoError(t, SubmitVerdict(ctx, b, VerdictMessage{PropositionID: 7, Verdict: false}))
	verdict, ok, err = r.SupplyVerdict(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, verdict)
}

func TestStreamResolverSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemory()
	r := NewStreamResolver(b, "")

	require.NoError(t, b.StreamAppend(ctx, VerdictStream, []byte("not json")))
	require.NoError(t, SubmitVerdict(ctx, b, VerdictMessage{PropositionID: 3, Verdict: true}))

	verdict, ok, err := r.SupplyVerdict(ctx, domain.Proposition{ID: 3})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, verdict)
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2025, 6, 15, 2, 30, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC), next)

	next, err = nextCronTime("0 3 1 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC), next)

	_, err = nextCronTime("bogus", after)
	assert.Error(t, err)
}
