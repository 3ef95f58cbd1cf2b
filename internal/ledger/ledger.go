// Package ledger implements the wagering ledger core: opening propositions,
// escrowed staking, one-time resolution, and idempotent proportional payout
// claims. It owns the accounting invariants; transports and storage engines
// plug in through the domain interfaces.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// Event channels published on the signal bus.
const (
	ChannelProposition = "ch:proposition"
	ChannelStake       = "ch:stake"
	ChannelResolution  = "ch:resolution"
	ChannelClaim       = "ch:claim"
)

// DefaultFeeAccount receives platform fees when no account is configured.
const DefaultFeeAccount = "fees"

// lockTTL bounds how long a distributed per-proposition lock may be held.
const lockTTL = 10 * time.Second

var (
	stakesPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerbook_stakes_placed_total",
		Help: "Number of accepted stakes.",
	})
	propositionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerbook_propositions_opened_total",
		Help: "Number of propositions opened.",
	})
	propositionsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerbook_propositions_resolved_total",
		Help: "Number of propositions resolved.",
	})
	claimsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerbook_claims_paid_total",
		Help: "Number of successful payout claims.",
	})
)

// Config holds the ledger's economic parameters.
type Config struct {
	// MinStake is the smallest accepted stake amount.
	MinStake int64
	// FeeRateBps is the platform fee in basis points withheld from gross
	// payouts at claim time.
	FeeRateBps int64
	// MaxDuration caps the open window of new propositions. Zero means
	// domain.MaxDuration (one year).
	MaxDuration time.Duration
	// FeeAccount is the escrow account accumulating platform fees.
	FeeAccount string
}

// Deps bundles the collaborators the ledger operates through.
type Deps struct {
	Propositions domain.PropositionStore
	Stakes       domain.StakeStore
	Resolutions  domain.ResolutionStore
	Audit        domain.AuditStore
	Escrow       domain.Escrow
	Locks        domain.LockManager
	Auth         domain.Authorizer
	Bus          domain.SignalBus // optional
	Odds         domain.OddsCache // optional
	Clock        func() time.Time // optional, defaults to time.Now
}

// Service is the accounting and settlement core.
type Service struct {
	props  domain.PropositionStore
	stakes domain.StakeStore
	res    domain.ResolutionStore
	audit  domain.AuditStore
	escrow domain.Escrow
	locks  domain.LockManager
	auth   domain.Authorizer
	bus    domain.SignalBus
	odds   domain.OddsCache
	now    func() time.Time
	cfg    Config
	logger *slog.Logger
}

// NewService creates the ledger service. Deps.Propositions, Stakes,
// Resolutions, Audit, Escrow, Locks, and Auth are required; Bus, Odds, and
// Clock are optional.
func NewService(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = domain.MaxDuration
	}
	if cfg.FeeAccount == "" {
		cfg.FeeAccount = DefaultFeeAccount
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		props:  deps.Propositions,
		stakes: deps.Stakes,
		res:    deps.Resolutions,
		audit:  deps.Audit,
		escrow: deps.Escrow,
		locks:  deps.Locks,
		auth:   deps.Auth,
		bus:    deps.Bus,
		odds:   deps.Odds,
		now:    now,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// PoolAccount is the escrow account holding a proposition's staked funds.
func PoolAccount(propositionID int64) string {
	return fmt.Sprintf("pool:%d", propositionID)
}

func propKey(id int64) string {
	return fmt.Sprintf("prop:%d", id)
}

func claimKey(id int64, staker string) string {
	return fmt.Sprintf("claim:%d:%s", id, staker)
}

// Open creates a new proposition in state Open. Any caller may open one; the
// question must be non-empty and the duration positive and within the
// configured maximum.
func (s *Service) Open(ctx context.Context, creator, question, category string, duration time.Duration) (domain.Proposition, error) {
	if strings.TrimSpace(creator) == "" {
		return domain.Proposition{}, fmt.Errorf("%w: creator must not be empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(question) == "" {
		return domain.Proposition{}, fmt.Errorf("%w: question must not be empty", domain.ErrInvalidInput)
	}
	if duration <= 0 {
		return domain.Proposition{}, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	if duration > s.cfg.MaxDuration {
		return domain.Proposition{}, fmt.Errorf("%w: duration exceeds maximum %s", domain.ErrInvalidInput, s.cfg.MaxDuration)
	}

	now := s.now().UTC()
	p, err := s.props.Create(ctx, domain.Proposition{
		Question:  strings.TrimSpace(question),
		Category:  strings.TrimSpace(category),
		Creator:   creator,
		CreatedAt: now,
		Deadline:  now.Add(duration),
	})
	if err != nil {
		return domain.Proposition{}, fmt.Errorf("ledger: create proposition: %w", err)
	}

	propositionsOpened.Inc()
	s.auditLog(ctx, "proposition.opened", map[string]any{
		"proposition_id": p.ID,
		"creator":        p.Creator,
		"deadline":       p.Deadline.Format(time.RFC3339),
	})
	s.publish(ctx, ChannelProposition, "proposition_opened", p)

	s.logger.InfoContext(ctx, "proposition opened",
		slog.Int64("proposition_id", p.ID),
		slog.String("creator", p.Creator),
		slog.Time("deadline", p.Deadline),
	)
	return p, nil
}

// PlaceStake escrows amount from the staker and records a stake on side.
// The escrow transfer and the accounting write form one transaction: if the
// store rejects the stake after funds moved, the transfer is compensated
// before the error is returned.
func (s *Service) PlaceStake(ctx context.Context, staker string, propositionID int64, side domain.Side, amount int64) (domain.Stake, error) {
	if strings.TrimSpace(staker) == "" {
		return domain.Stake{}, fmt.Errorf("%w: staker must not be empty", domain.ErrInvalidInput)
	}
	if !side.Valid() {
		return domain.Stake{}, fmt.Errorf("%w: side must be %q or %q", domain.ErrInvalidInput, domain.SideYes, domain.SideNo)
	}

	unlock, err := s.locks.Acquire(ctx, propKey(propositionID), lockTTL)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("ledger: lock proposition %d: %w", propositionID, err)
	}
	defer unlock()

	p, err := s.props.GetByID(ctx, propositionID)
	if err != nil {
		return domain.Stake{}, fmt.Errorf("ledger: get proposition %d: %w", propositionID, err)
	}
	if st := p.Status(s.now()); st != domain.StatusOpen {
		return domain.Stake{}, fmt.Errorf("%w: proposition %d is %s", domain.ErrMarketClosed, propositionID, st)
	}
	if amount <= 0 || amount < s.cfg.MinStake {
		return domain.Stake{}, fmt.Errorf("%w: amount %d is below minimum %d", domain.ErrInvalidAmount, amount, s.cfg.MinStake)
	}

	pool := PoolAccount(propositionID)
	if err := s.escrow.Transfer(ctx, staker, pool, amount); err != nil {
		return domain.Stake{}, fmt.Errorf("ledger: escrow stake: %w", err)
	}

	stake, err := s.stakes.Place(ctx, domain.Stake{
		PropositionID: propositionID,
		Staker:        staker,
		Side:          side,
		Amount:        amount,
		PlacedAt:      s.now().UTC(),
	})
	if err != nil {
		// Compensate the escrow move so no funds are held without a stake.
		if refundErr := s.escrow.Transfer(ctx, pool, staker, amount); refundErr != nil {
			s.logger.ErrorContext(ctx, "stake refund failed after store error",
				slog.Int64("proposition_id", propositionID),
				slog.String("staker", staker),
				slog.Int64("amount", amount),
				slog.String("error", refundErr.Error()),
			)
		}
		return domain.Stake{}, fmt.Errorf("ledger: record stake: %w", err)
	}

	stakesPlaced.Inc()
	s.invalidateOdds(ctx, propositionID)
	s.auditLog(ctx, "stake.placed", map[string]any{
		"proposition_id": propositionID,
		"stake_id":       stake.ID,
		"staker":         staker,
		"side":           string(side),
		"amount":         amount,
	})
	s.publish(ctx, ChannelStake, "stake_placed", stake)

	return stake, nil
}

// Resolve records the verdict for an ended proposition. Only identities the
// authorizer accepts may resolve; resolution is one-way and emits the
// resolution record with the frozen pool totals.
func (s *Service) Resolve(ctx context.Context, caller string, propositionID int64, verdict bool) (domain.Resolution, error) {
	if !s.auth.CanResolve(caller) {
		return domain.Resolution{}, fmt.Errorf("%w: %s may not resolve propositions", domain.ErrUnauthorized, caller)
	}

	unlock, err := s.locks.Acquire(ctx, propKey(propositionID), lockTTL)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("ledger: lock proposition %d: %w", propositionID, err)
	}
	defer unlock()

	p, err := s.props.GetByID(ctx, propositionID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("ledger: get proposition %d: %w", propositionID, err)
	}
	if p.Resolved {
		return domain.Resolution{}, fmt.Errorf("%w: proposition %d", domain.ErrAlreadyResolved, propositionID)
	}
	now := s.now().UTC()
	if now.Before(p.Deadline) {
		return domain.Resolution{}, fmt.Errorf("%w: deadline %s not reached", domain.ErrTooEarly, p.Deadline.Format(time.RFC3339))
	}

	if err := s.props.MarkResolved(ctx, propositionID, verdict, now); err != nil {
		return domain.Resolution{}, fmt.Errorf("ledger: mark resolved %d: %w", propositionID, err)
	}

	res := domain.Resolution{
		PropositionID: propositionID,
		Verdict:       verdict,
		YesTotal:      p.YesTotal,
		NoTotal:       p.NoTotal,
		ResolvedBy:    caller,
		ResolvedAt:    now,
	}
	if err := s.res.Append(ctx, res); err != nil {
		// The resolved flag already stands and is itself auditable; losing
		// the denormalised record is logged, not surfaced as a failure.
		s.logger.ErrorContext(ctx, "resolution record append failed",
			slog.Int64("proposition_id", propositionID),
			slog.String("error", err.Error()),
		)
	}

	propositionsResolved.Inc()
	s.invalidateOdds(ctx, propositionID)
	s.auditLog(ctx, "proposition.resolved", map[string]any{
		"proposition_id": propositionID,
		"verdict":        verdict,
		"yes_total":      p.YesTotal,
		"no_total":       p.NoTotal,
		"resolved_by":    caller,
	})
	s.publish(ctx, ChannelResolution, "proposition_resolved", res)

	s.logger.InfoContext(ctx, "proposition resolved",
		slog.Int64("proposition_id", propositionID),
		slog.Bool("verdict", verdict),
		slog.Int64("total_pool", p.TotalPool()),
	)
	return res, nil
}

// Claim pays out every unclaimed winning stake the staker holds on the
// proposition. Each stake receives its proportional share of the total pool
// (floor division) minus the platform fee. The claimed-flag flip and the fund
// release are all-or-nothing: a failed release unmarks the flipped stakes.
// Calling Claim again never pays the same stake twice.
func (s *Service) Claim(ctx context.Context, staker string, propositionID int64) (domain.ClaimReceipt, error) {
	unlock, err := s.locks.Acquire(ctx, claimKey(propositionID, staker), lockTTL)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("ledger: lock claim: %w", err)
	}
	defer unlock()

	p, err := s.props.GetByID(ctx, propositionID)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("ledger: get proposition %d: %w", propositionID, err)
	}
	if !p.Resolved {
		return domain.ClaimReceipt{}, fmt.Errorf("%w: proposition %d", domain.ErrNotResolved, propositionID)
	}

	positions, err := s.stakes.ListByStaker(ctx, propositionID, staker)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("ledger: list stakes: %w", err)
	}
	if len(positions) == 0 {
		return domain.ClaimReceipt{}, fmt.Errorf("%w: %s has no positions on proposition %d", domain.ErrNoStakes, staker, propositionID)
	}

	totalPool := p.TotalPool()
	winningPool := p.WinningPool()

	var (
		ids       []int64
		netByID   = make(map[int64]int64)
		feeByID   = make(map[int64]int64)
		grossByID = make(map[int64]int64)
	)
	if winningPool > 0 {
		for _, st := range positions {
			if st.Claimed || !st.Side.Wins(p.Verdict) {
				continue
			}
			gross, fee, net := payout(st.Amount, totalPool, winningPool, s.cfg.FeeRateBps)
			ids = append(ids, st.ID)
			grossByID[st.ID] = gross
			feeByID[st.ID] = fee
			netByID[st.ID] = net
		}
	}
	if len(ids) == 0 {
		return domain.ClaimReceipt{}, fmt.Errorf("%w: no unclaimed winning stakes for %s on proposition %d", domain.ErrNothingToClaim, staker, propositionID)
	}

	flipped, err := s.stakes.MarkClaimed(ctx, propositionID, ids)
	if err != nil {
		return domain.ClaimReceipt{}, fmt.Errorf("ledger: mark claimed: %w", err)
	}
	if len(flipped) == 0 {
		// A concurrent claim for the same staker won the race.
		return domain.ClaimReceipt{}, fmt.Errorf("%w: stakes already claimed", domain.ErrNothingToClaim)
	}

	var totalGross, totalFee, totalNet int64
	for _, id := range flipped {
		totalGross += grossByID[id]
		totalFee += feeByID[id]
		totalNet += netByID[id]
	}

	pool := PoolAccount(propositionID)
	if err := s.escrow.Transfer(ctx, pool, staker, totalNet); err != nil {
		if rbErr := s.stakes.UnmarkClaimed(ctx, propositionID, flipped); rbErr != nil {
			s.logger.ErrorContext(ctx, "claim rollback failed",
				slog.Int64("proposition_id", propositionID),
				slog.String("staker", staker),
				slog.String("error", rbErr.Error()),
			)
		}
		return domain.ClaimReceipt{}, fmt.Errorf("ledger: release payout: %w", err)
	}

	if totalFee > 0 {
		if err := s.escrow.Transfer(ctx, pool, s.cfg.FeeAccount, totalFee); err != nil {
			// The fee stays in the pool account; funds remain conserved.
			s.logger.WarnContext(ctx, "fee transfer failed, fee remains in pool",
				slog.Int64("proposition_id", propositionID),
				slog.Int64("fee", totalFee),
				slog.String("error", err.Error()),
			)
		}
	}

	receipt := domain.ClaimReceipt{
		ID:            uuid.New().String(),
		PropositionID: propositionID,
		Staker:        staker,
		StakeIDs:      flipped,
		Gross:         totalGross,
		Fee:           totalFee,
		Net:           totalNet,
		ClaimedAt:     s.now().UTC(),
	}

	claimsPaid.Inc()
	s.auditLog(ctx, "claim.paid", map[string]any{
		"receipt_id":     receipt.ID,
		"proposition_id": propositionID,
		"staker":         staker,
		"stake_ids":      flipped,
		"gross":          totalGross,
		"fee":            totalFee,
		"net":            totalNet,
	})
	s.publish(ctx, ChannelClaim, "claim_paid", receipt)

	s.logger.InfoContext(ctx, "claim paid",
		slog.Int64("proposition_id", propositionID),
		slog.String("staker", staker),
		slog.Int64("net", totalNet),
		slog.Int64("fee", totalFee),
	)
	return receipt, nil
}

// payout computes a stake's proportional share of the pool. The intermediate
// products are taken in math/big so amount*totalPool cannot overflow int64;
// both divisions floor, matching the share policy, and the results always fit
// back into int64 because gross ≤ totalPool.
func payout(amount, totalPool, winningPool, feeRateBps int64) (gross, fee, net int64) {
	g := new(big.Int).Mul(big.NewInt(amount), big.NewInt(totalPool))
	g.Quo(g, big.NewInt(winningPool))
	gross = g.Int64()

	f := new(big.Int).Mul(g, big.NewInt(feeRateBps))
	f.Quo(f, big.NewInt(10_000))
	fee = f.Int64()

	net = gross - fee
	return gross, fee, net
}

// GetProposition fetches a proposition by id.
func (s *Service) GetProposition(ctx context.Context, id int64) (domain.Proposition, error) {
	p, err := s.props.GetByID(ctx, id)
	if err != nil {
		return domain.Proposition{}, fmt.Errorf("ledger: get proposition %d: %w", id, err)
	}
	return p, nil
}

// StakesFor returns all stakes on a proposition in insertion order.
func (s *Service) StakesFor(ctx context.Context, propositionID int64) ([]domain.Stake, error) {
	if _, err := s.props.GetByID(ctx, propositionID); err != nil {
		return nil, fmt.Errorf("ledger: get proposition %d: %w", propositionID, err)
	}
	stakes, err := s.stakes.ListByProposition(ctx, propositionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list stakes for %d: %w", propositionID, err)
	}
	return stakes, nil
}

// PropositionsByCreator returns every proposition the identity opened.
func (s *Service) PropositionsByCreator(ctx context.Context, creator string) ([]domain.Proposition, error) {
	props, err := s.props.ListByCreator(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("ledger: list propositions by %s: %w", creator, err)
	}
	return props, nil
}

// StakesByStaker returns the ordered positions an identity holds within a
// proposition.
func (s *Service) StakesByStaker(ctx context.Context, propositionID int64, staker string) ([]domain.Stake, error) {
	if _, err := s.props.GetByID(ctx, propositionID); err != nil {
		return nil, fmt.Errorf("ledger: get proposition %d: %w", propositionID, err)
	}
	stakes, err := s.stakes.ListByStaker(ctx, propositionID, staker)
	if err != nil {
		return nil, fmt.Errorf("ledger: list stakes by %s: %w", staker, err)
	}
	return stakes, nil
}

// Odds returns the live odds for a proposition, serving from the cache when
// one is configured.
func (s *Service) Odds(ctx context.Context, propositionID int64) (domain.Odds, error) {
	if s.odds != nil {
		if o, err := s.odds.Get(ctx, propositionID); err == nil {
			return o, nil
		}
	}

	p, err := s.props.GetByID(ctx, propositionID)
	if err != nil {
		return domain.Odds{}, fmt.Errorf("ledger: get proposition %d: %w", propositionID, err)
	}
	o := p.CurrentOdds()

	if s.odds != nil {
		if cacheErr := s.odds.Set(ctx, o); cacheErr != nil {
			s.logger.WarnContext(ctx, "odds cache set failed",
				slog.Int64("proposition_id", propositionID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return o, nil
}

// ResolutionFor returns the resolution record for a proposition. A missing
// record on a resolved proposition means the append after MarkResolved failed;
// the record is rebuilt from the proposition's frozen state and re-appended so
// it eventually exists.
func (s *Service) ResolutionFor(ctx context.Context, propositionID int64) (domain.Resolution, error) {
	r, err := s.res.GetByProposition(ctx, propositionID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Resolution{}, fmt.Errorf("ledger: get resolution %d: %w", propositionID, err)
	}

	p, perr := s.props.GetByID(ctx, propositionID)
	if perr != nil || !p.Resolved {
		return domain.Resolution{}, fmt.Errorf("ledger: get resolution %d: %w", propositionID, err)
	}

	// Totals are frozen once resolved (the Open-only stake guard), so the
	// proposition carries everything except the resolver identity, which
	// only the audit trail retains.
	r = domain.Resolution{
		PropositionID: p.ID,
		Verdict:       p.Verdict,
		YesTotal:      p.YesTotal,
		NoTotal:       p.NoTotal,
		ResolvedAt:    p.Deadline,
	}
	if p.ResolvedAt != nil {
		r.ResolvedAt = *p.ResolvedAt
	}
	if appendErr := s.res.Append(ctx, r); appendErr != nil {
		s.logger.WarnContext(ctx, "resolution record repair failed",
			slog.Int64("proposition_id", propositionID),
			slog.String("error", appendErr.Error()),
		)
	} else {
		s.logger.InfoContext(ctx, "resolution record repaired",
			slog.Int64("proposition_id", propositionID),
		)
	}
	return r, nil
}

// Deposit credits an escrow account. Restricted to administrators; this is
// the on-ramp hook, not part of the wagering flow.
func (s *Service) Deposit(ctx context.Context, caller, account string, amount int64) error {
	if !s.auth.CanAdminister(caller) {
		return fmt.Errorf("%w: %s may not deposit", domain.ErrUnauthorized, caller)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: deposit must be positive", domain.ErrInvalidAmount)
	}
	if err := s.escrow.Credit(ctx, account, amount); err != nil {
		return fmt.Errorf("ledger: deposit: %w", err)
	}
	s.auditLog(ctx, "escrow.deposit", map[string]any{
		"account": account,
		"amount":  amount,
		"by":      caller,
	})
	return nil
}

// BalanceOf returns the escrow balance of an account.
func (s *Service) BalanceOf(ctx context.Context, account string) (int64, error) {
	bal, err := s.escrow.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance of %s: %w", account, err)
	}
	return bal, nil
}

// auditLog records an audit entry; failures are logged, never surfaced, so a
// flaky audit sink cannot fail an otherwise-complete mutation.
func (s *Service) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// publish sends a JSON event envelope on the signal bus, best-effort.
func (s *Service) publish(ctx context.Context, channel, eventType string, payload any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// invalidateOdds drops the cached odds for a proposition after a mutation.
func (s *Service) invalidateOdds(ctx context.Context, propositionID int64) {
	if s.odds == nil {
		return
	}
	if err := s.odds.Invalidate(ctx, propositionID); err != nil {
		s.logger.WarnContext(ctx, "odds cache invalidate failed",
			slog.Int64("proposition_id", propositionID),
			slog.String("error", err.Error()),
		)
	}
}
