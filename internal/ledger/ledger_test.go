package ledger_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/escrow"
	"github.com/alanyoungcy/wagerbook/internal/identity"
	"github.com/alanyoungcy/wagerbook/internal/ledger"
	"github.com/alanyoungcy/wagerbook/internal/store/memory"
)

const (
	alice    = "0x00000000000000000000000000000000000000A1"
	bob      = "0x00000000000000000000000000000000000000B2"
	carol    = "0x00000000000000000000000000000000000000C3"
	resolver = "0x00000000000000000000000000000000000000F1"
)

// fakeClock is a controllable clock shared by a test and its service.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *ledger.Service
	store  *memory.Store
	escrow *escrow.Memory
	clock  *fakeClock
}

func newFixture(t *testing.T, cfg ledger.Config) *fixture {
	t.Helper()

	store := memory.New()
	esc := escrow.NewMemory()
	clock := newFakeClock()

	svc := ledger.NewService(ledger.Deps{
		Propositions: store,
		Stakes:       store,
		Resolutions:  store,
		Audit:        store,
		Escrow:       esc,
		Locks:        ledger.NewKeyLock(),
		Auth:         identity.NewAllowlist([]string{resolver}, nil),
		Clock:        clock.Now,
	}, cfg, slog.New(slog.DiscardHandler))

	return &fixture{svc: svc, store: store, escrow: esc, clock: clock}
}

func defaultConfig() ledger.Config {
	return ledger.Config{MinStake: 10, FeeRateBps: 200}
}

func (f *fixture) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	require.NoError(t, f.escrow.Credit(context.Background(), account, amount))
}

func (f *fixture) open(t *testing.T, creator string, d time.Duration) domain.Proposition {
	t.Helper()
	p, err := f.svc.Open(context.Background(), creator, "will it rain tomorrow", "weather", d)
	require.NoError(t, err)
	return p
}

func TestOpenValidation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.svc.Open(ctx, alice, "", "misc", time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Open(ctx, alice, "   ", "misc", time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Open(ctx, alice, "q", "misc", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Open(ctx, alice, "q", "misc", -time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Open(ctx, alice, "q", "misc", domain.MaxDuration+time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	p, err := f.svc.Open(ctx, alice, "q", "misc", domain.MaxDuration)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, alice, p.Creator)
	assert.True(t, p.Deadline.After(p.CreatedAt))
}

func TestPropositionIDsAreMonotonic(t *testing.T) {
	f := newFixture(t, defaultConfig())

	first := f.open(t, alice, time.Hour)
	second := f.open(t, bob, time.Hour)
	third := f.open(t, alice, time.Hour)

	assert.Equal(t, first.ID+1, second.ID)
	assert.Equal(t, second.ID+1, third.ID)
}

func TestPlaceStakeErrors(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 1_000)

	_, err := f.svc.PlaceStake(ctx, bob, 999, domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.Side("maybe"), 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// One unit below the minimum fails, the minimum itself succeeds.
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 9)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 10)
	require.NoError(t, err)

	// Staking past the deadline is rejected.
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideNo, 100)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestPlaceStakeEscrowsFunds(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 500)

	st, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 300)
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, st.Side)
	assert.False(t, st.Claimed)

	bal, err := f.escrow.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)

	poolBal, err := f.escrow.Balance(ctx, ledger.PoolAccount(p.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(300), poolBal)

	// Insufficient funds leave both the escrow and the ledger untouched.
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideNo, 400)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := f.svc.GetProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.YesTotal)
	assert.Equal(t, int64(0), got.NoTotal)
}

func TestPoolTotalsMatchAcceptedStakes(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 10_000)
	f.fund(t, carol, 10_000)

	amounts := []struct {
		staker string
		side   domain.Side
		amount int64
	}{
		{bob, domain.SideYes, 100},
		{carol, domain.SideNo, 250},
		{bob, domain.SideNo, 75},
		{carol, domain.SideYes, 500},
		{bob, domain.SideYes, 10},
	}

	var wantYes, wantNo int64
	for _, a := range amounts {
		_, err := f.svc.PlaceStake(ctx, a.staker, p.ID, a.side, a.amount)
		require.NoError(t, err)
		if a.side == domain.SideYes {
			wantYes += a.amount
		} else {
			wantNo += a.amount
		}
	}

	got, err := f.svc.GetProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, wantYes, got.YesTotal)
	assert.Equal(t, wantNo, got.NoTotal)

	stakes, err := f.svc.StakesFor(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, stakes, len(amounts))
	var sum int64
	for _, st := range stakes {
		sum += st.Amount
	}
	assert.Equal(t, got.TotalPool(), sum)
}

func TestConcurrentStakesDoNotRace(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)

	const workers = 16
	const perWorker = 25
	const amount = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		staker := fmt.Sprintf("0x%040x", w+1)
		f.fund(t, staker, perWorker*amount)
		side := domain.SideYes
		if w%2 == 1 {
			side = domain.SideNo
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := f.svc.PlaceStake(ctx, staker, p.ID, side, amount)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := f.svc.GetProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker*amount), got.TotalPool())

	stakes, err := f.svc.StakesFor(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, stakes, workers*perWorker)
}

func TestResolveAuthorizationAndTiming(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)

	_, err := f.svc.Resolve(ctx, alice, p.ID, true)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	assert.ErrorIs(t, err, domain.ErrTooEarly)

	_, err = f.svc.Resolve(ctx, resolver, 999, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Exactly at the deadline resolution is allowed.
	f.clock.Advance(time.Hour)
	res, err := f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Verdict)
	assert.Equal(t, resolver, res.ResolvedBy)

	got, err := f.svc.GetProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status(f.clock.Now()))
	require.NotNil(t, got.ResolvedAt)
}

func TestResolveIsOneWay(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.clock.Advance(2 * time.Hour)

	_, err := f.svc.Resolve(ctx, resolver, p.ID, false)
	require.NoError(t, err)

	// The second resolution fails and never alters the verdict.
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	got, err := f.svc.GetProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.False(t, got.Verdict)
}

func TestResolutionRecordFreezesTotals(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 1_000)
	f.fund(t, carol, 1_000)

	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 300)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 700)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	res, err := f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.YesTotal)
	assert.Equal(t, int64(700), res.NoTotal)

	stored, err := f.svc.ResolutionFor(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, res, stored)
}

// failingResolutions wraps a ResolutionStore and fails a configurable number
// of appends.
type failingResolutions struct {
	domain.ResolutionStore
	remaining int
}

func (fr *failingResolutions) Append(ctx context.Context, r domain.Resolution) error {
	if fr.remaining > 0 {
		fr.remaining--
		return fmt.Errorf("resolutions: append: simulated outage")
	}
	return fr.ResolutionStore.Append(ctx, r)
}

func TestResolutionForRepairsMissingRecord(t *testing.T) {
	store := memory.New()
	esc := escrow.NewMemory()
	fr := &failingResolutions{ResolutionStore: store, remaining: 1}
	clock := newFakeClock()

	svc := ledger.NewService(ledger.Deps{
		Propositions: store,
		Stakes:       store,
		Resolutions:  fr,
		Audit:        store,
		Escrow:       esc,
		Locks:        ledger.NewKeyLock(),
		Auth:         identity.NewAllowlist([]string{resolver}, nil),
		Clock:        clock.Now,
	}, defaultConfig(), slog.New(slog.DiscardHandler))

	ctx := context.Background()
	p, err := svc.Open(ctx, alice, "will it rain tomorrow", "weather", time.Hour)
	require.NoError(t, err)
	require.NoError(t, esc.Credit(ctx, bob, 100))
	_, err = svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 100)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	// Resolution succeeds even though the record append was swallowed.
	_, err = svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)
	_, err = store.GetByProposition(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// The read path rebuilds the record from the proposition's frozen
	// state and re-appends it.
	res, err := svc.ResolutionFor(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Verdict)
	assert.Equal(t, int64(100), res.YesTotal)
	assert.Equal(t, int64(0), res.NoTotal)

	stored, err := store.GetByProposition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, res, stored)
}

// TestClaimScenario runs the worked example: 300 YES / 700 NO pools, verdict
// YES, 2% fee, a single YES staker with 300 → gross 1000, fee 20, net 980.
func TestClaimScenario(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 300)
	f.fund(t, carol, 700)

	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 300)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 700)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	receipt, err := f.svc.Claim(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), receipt.Gross)
	assert.Equal(t, int64(20), receipt.Fee)
	assert.Equal(t, int64(980), receipt.Net)
	assert.Equal(t, receipt.Gross-receipt.Fee, receipt.Net)

	bal, err := f.escrow.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(980), bal)

	feeBal, err := f.escrow.Balance(ctx, ledger.DefaultFeeAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(20), feeBal)

	poolBal, err := f.escrow.Balance(ctx, ledger.PoolAccount(p.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(0), poolBal)
}

func TestClaimErrors(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 100)
	f.fund(t, carol, 100)

	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 50)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 50)
	require.NoError(t, err)

	// Before resolution.
	_, err = f.svc.Claim(ctx, bob, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotResolved)

	_, err = f.svc.Claim(ctx, bob, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	// No positions at all.
	_, err = f.svc.Claim(ctx, alice, p.ID)
	assert.ErrorIs(t, err, domain.ErrNoStakes)

	// Losing side only: nothing to claim and no state mutated.
	_, err = f.svc.Claim(ctx, carol, p.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	carolStakes, err := f.svc.StakesByStaker(ctx, p.ID, carol)
	require.NoError(t, err)
	require.Len(t, carolStakes, 1)
	assert.False(t, carolStakes[0].Claimed)

	carolBal, err := f.escrow.Balance(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, int64(50), carolBal)
}

func TestClaimIsIdempotent(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 200)
	f.fund(t, carol, 200)

	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 200)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 200)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	first, err := f.svc.Claim(ctx, bob, p.ID)
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, bob, p.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	bal, err := f.escrow.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, first.Net, bal)
}

func TestClaimAggregatesMultipleWinningStakes(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 180)
	f.fund(t, carol, 70)

	// Bob holds two YES positions and a losing NO hedge on the same
	// proposition; carol holds the rest of the NO pool.
	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 100)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 50)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideNo, 30)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 70)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	// totalPool=250, winningPool=150. Shares floor per stake:
	// 100*250/150=166 (fee 3), 50*250/150=83 (fee 1).
	receipt, err := f.svc.Claim(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.Len(t, receipt.StakeIDs, 2)
	assert.Equal(t, int64(166+83), receipt.Gross)
	assert.Equal(t, int64(3+1), receipt.Fee)
	assert.Equal(t, int64(163+82), receipt.Net)

	bal, err := f.escrow.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(245), bal)

	// Both YES stakes are claimed, the NO hedge is not.
	positions, err := f.svc.StakesByStaker(ctx, p.ID, bob)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	for _, st := range positions {
		assert.Equal(t, st.Side == domain.SideYes, st.Claimed)
	}

	// The hedge never becomes claimable, so a repeat claim finds nothing.
	_, err = f.svc.Claim(ctx, bob, p.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestConcurrentClaimsPayExactlyOnce(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 100)
	f.fund(t, carol, 100)

	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 100)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 100)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	const racers = 8
	results := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Claim(ctx, bob, p.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, nothing int
	for err := range results {
		switch {
		case err == nil:
			ok++
		default:
			assert.ErrorIs(t, err, domain.ErrNothingToClaim)
			nothing++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, nothing)

	// 2% fee on a 200 gross is 4; bob nets 196 exactly once.
	bal, err := f.escrow.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(196), bal)
}

func TestClaimProportionality(t *testing.T) {
	// No fee so the 2x relation is exact.
	f := newFixture(t, ledger.Config{MinStake: 1, FeeRateBps: 0})
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 200)
	f.fund(t, carol, 100)
	f.fund(t, alice, 300)

	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 200)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideYes, 100)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, alice, p.ID, domain.SideNo, 300)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	bobReceipt, err := f.svc.Claim(ctx, bob, p.ID)
	require.NoError(t, err)
	carolReceipt, err := f.svc.Claim(ctx, carol, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 2*carolReceipt.Net, bobReceipt.Net)

	// Floor-division never over-distributes the pool.
	assert.LessOrEqual(t, bobReceipt.Net+carolReceipt.Net, int64(600))
}

func TestClaimWithEmptyWinningPool(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)
	f.fund(t, bob, 100)

	// Everyone bet NO; the verdict is YES, so no payouts are computable.
	_, err := f.svc.PlaceStake(ctx, bob, p.ID, domain.SideNo, 100)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, bob, p.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestClaimOnUnstakedProposition(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)

	f.clock.Advance(2 * time.Hour)
	_, err := f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, bob, p.ID)
	assert.ErrorIs(t, err, domain.ErrNoStakes)
}

// failingEscrow wraps an Escrow and fails a configurable number of transfers
// into the given account.
type failingEscrow struct {
	domain.Escrow
	failTo    string
	remaining int
}

func (fe *failingEscrow) Transfer(ctx context.Context, from, to string, amount int64) error {
	if to == fe.failTo && fe.remaining > 0 {
		fe.remaining--
		return fmt.Errorf("escrow: transfer %s->%s: simulated outage", from, to)
	}
	return fe.Escrow.Transfer(ctx, from, to, amount)
}

func TestClaimRollsBackOnReleaseFailure(t *testing.T) {
	store := memory.New()
	esc := escrow.NewMemory()
	fe := &failingEscrow{Escrow: esc, failTo: bob, remaining: 1}
	clock := newFakeClock()

	svc := ledger.NewService(ledger.Deps{
		Propositions: store,
		Stakes:       store,
		Resolutions:  store,
		Audit:        store,
		Escrow:       fe,
		Locks:        ledger.NewKeyLock(),
		Auth:         identity.NewAllowlist([]string{resolver}, nil),
		Clock:        clock.Now,
	}, defaultConfig(), slog.New(slog.DiscardHandler))

	ctx := context.Background()
	require.NoError(t, esc.Credit(ctx, bob, 100))
	require.NoError(t, esc.Credit(ctx, carol, 100))

	p, err := svc.Open(ctx, alice, "q", "misc", time.Hour)
	require.NoError(t, err)
	_, err = svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 100)
	require.NoError(t, err)
	_, err = svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 100)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	// The release fails; the claimed flags must roll back.
	_, err = svc.Claim(ctx, bob, p.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNothingToClaim)

	stakes, err := store.ListByStaker(ctx, p.ID, bob)
	require.NoError(t, err)
	require.Len(t, stakes, 1)
	assert.False(t, stakes[0].Claimed)

	bal, err := esc.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	// The retry succeeds and pays exactly once.
	receipt, err := svc.Claim(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(196), receipt.Net)
}

func TestPayoutsNeverExceedPoolMinusFees(t *testing.T) {
	f := newFixture(t, ledger.Config{MinStake: 1, FeeRateBps: 250})
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)

	stakers := []string{bob, carol, alice}
	amounts := []int64{33, 77, 19}
	for i, s := range stakers {
		f.fund(t, s, amounts[i])
		_, err := f.svc.PlaceStake(ctx, s, p.ID, domain.SideYes, amounts[i])
		require.NoError(t, err)
	}
	other := "0x00000000000000000000000000000000000000D4"
	f.fund(t, other, 101)
	_, err := f.svc.PlaceStake(ctx, other, p.ID, domain.SideNo, 101)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Resolve(ctx, resolver, p.ID, true)
	require.NoError(t, err)

	var totalNet, totalFee int64
	for _, s := range stakers {
		r, err := f.svc.Claim(ctx, s, p.ID)
		require.NoError(t, err)
		totalNet += r.Net
		totalFee += r.Fee
	}

	totalPool := int64(33 + 77 + 19 + 101)
	assert.LessOrEqual(t, totalNet, totalPool-totalFee)

	// Rounding residue stays in the pool account.
	poolBal, err := f.escrow.Balance(ctx, ledger.PoolAccount(p.ID))
	require.NoError(t, err)
	assert.Equal(t, totalPool-totalNet-totalFee, poolBal)
	assert.GreaterOrEqual(t, poolBal, int64(0))
}

func TestOdds(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()
	p := f.open(t, alice, time.Hour)

	// Empty pool reports 50/50 by convention.
	o, err := f.svc.Odds(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), o.YesShare)
	assert.Equal(t, int64(50), o.NoShare)

	f.fund(t, bob, 300)
	f.fund(t, carol, 700)
	_, err = f.svc.PlaceStake(ctx, bob, p.ID, domain.SideYes, 300)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p.ID, domain.SideNo, 700)
	require.NoError(t, err)

	o, err = f.svc.Odds(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), o.YesShare)
	assert.Equal(t, int64(70), o.NoShare)
	assert.Equal(t, int64(1000), o.TotalPool)

	_, err = f.svc.Odds(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuerySurface(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	p1 := f.open(t, alice, time.Hour)
	p2 := f.open(t, bob, time.Hour)
	f.open(t, alice, time.Hour)

	f.fund(t, carol, 1_000)
	_, err := f.svc.PlaceStake(ctx, carol, p1.ID, domain.SideYes, 100)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p1.ID, domain.SideNo, 50)
	require.NoError(t, err)
	_, err = f.svc.PlaceStake(ctx, carol, p2.ID, domain.SideYes, 25)
	require.NoError(t, err)

	mine, err := f.svc.PropositionsByCreator(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	positions, err := f.svc.StakesByStaker(ctx, p1.ID, carol)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	// Insertion order is preserved.
	assert.Equal(t, int64(100), positions[0].Amount)
	assert.Equal(t, int64(50), positions[1].Amount)

	_, err = f.svc.StakesFor(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDepositRequiresAdmin(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	err := f.svc.Deposit(ctx, bob, bob, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = f.svc.Deposit(ctx, resolver, bob, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	require.NoError(t, f.svc.Deposit(ctx, resolver, bob, 100))
	bal, err := f.svc.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
}

func TestStatusIsDerivedFromClock(t *testing.T) {
	p := domain.Proposition{
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Deadline:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, domain.StatusOpen, p.Status(p.CreatedAt))
	assert.Equal(t, domain.StatusOpen, p.Status(p.Deadline.Add(-time.Second)))
	assert.Equal(t, domain.StatusEnded, p.Status(p.Deadline))
	assert.Equal(t, domain.StatusEnded, p.Status(p.Deadline.Add(time.Hour)))

	p.Resolved = true
	assert.Equal(t, domain.StatusResolved, p.Status(p.CreatedAt))
}
