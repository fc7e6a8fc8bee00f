package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kyeworks/bidhall/bidhall/agent"
)

// Options tunes engine behavior.
type Options struct {
	// StrictSelfOutbid skips any agent that already holds a bid in the
	// auction, instead of only the immediately preceding bidder.
	StrictSelfOutbid bool

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Engine owns the auction state machine and the single round-resolution
// algorithm. It is the only writer of auction and bid records; the scheduler
// and the request handlers just trigger it.
type Engine struct {
	ledger     *Ledger
	agents     *agent.Registry
	policy     *PolicyAdapter
	dispatcher *Dispatcher
	archive    *Archive

	strict bool
	now    func() time.Time
}

func NewEngine(ledger *Ledger, agents *agent.Registry, policy *PolicyAdapter, dispatcher *Dispatcher, archive *Archive, opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ledger:     ledger,
		agents:     agents,
		policy:     policy,
		dispatcher: dispatcher,
		archive:    archive,
		strict:     opts.StrictSelfOutbid,
		now:        now,
	}
}

// Create validates and stores a new pending auction.
func (e *Engine) Create(ctx context.Context, spec CreateSpec) (Auction, error) {
	a, err := e.ledger.Create(spec, e.now())
	if err != nil {
		return Auction{}, err
	}

	slog.Info("Auction created",
		slog.String("auction_id", a.ID),
		slog.String("title", a.Title),
		slog.String("starting_price", a.StartingPrice.String()),
		slog.Time("end_time", a.EndTime))
	return a, nil
}

// Get returns the auction from the live ledger or the completed archive.
func (e *Engine) Get(ctx context.Context, auctionID string) (Auction, error) {
	a, err := e.ledger.Get(auctionID)
	if err == nil {
		return a, nil
	}
	if archived, ok := e.archive.Get(auctionID); ok {
		return archived, nil
	}
	return Auction{}, err
}

// List returns all known auctions, live first then archived. Any active
// auction whose end time has passed is finalized before the listing is
// taken, so callers never observe an expired auction still marked active.
func (e *Engine) List(ctx context.Context) []Auction {
	now := e.now()
	for _, a := range e.ledger.List() {
		if a.Status == StatusActive && !now.Before(a.EndTime) {
			if _, err := e.Finalize(ctx, a.ID); err != nil {
				slog.Error("Failed lazy finalization of expired auction",
					slog.String("auction_id", a.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	return append(e.ledger.List(), e.archive.List()...)
}

// Start binds an (owner, agent) pair to the auction. The first start of a
// pending auction activates it; the returned started flag tells the caller
// to launch the auto-bid scheduler and trigger an opening round. Starting an
// already-active auction only registers the additional participant.
func (e *Engine) Start(ctx context.Context, auctionID, ownerID, agentID string) (Auction, bool, error) {
	// Lazily initialize the owner's default agents, matching the agent
	// listing endpoint.
	e.agents.ForOwner(ownerID)

	bound, err := e.agents.OwnedBy(ownerID, agentID)
	if err != nil {
		return Auction{}, false, fmt.Errorf("%w: agent %s", ErrNotFound, agentID)
	}

	var (
		snapshot Auction
		started  bool
	)
	err = e.ledger.Update(auctionID, func(a *Auction) error {
		if a.Status == StatusCompleted {
			return fmt.Errorf("%w: auction %s already completed", ErrInvalidTransition, auctionID)
		}

		if _, joined := a.SelectedAgents[ownerID]; !joined {
			a.Participants = append(a.Participants, ownerID)
		}
		a.SelectedAgents[ownerID] = agentID

		if a.Status == StatusPending {
			if err := a.advanceTo(StatusActive); err != nil {
				return err
			}
			a.StartTime = e.now()
			started = true
		}

		snapshot = a.clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if _, ok := e.archive.Get(auctionID); ok {
				return Auction{}, false, fmt.Errorf("%w: auction %s already completed", ErrInvalidTransition, auctionID)
			}
		}
		return Auction{}, false, err
	}

	slog.Info("Auction participant bound",
		slog.String("auction_id", auctionID),
		slog.String("owner_id", ownerID),
		slog.String("agent_id", bound.ID),
		slog.Bool("activated", started))

	e.publishState(snapshot)
	return snapshot, started, nil
}

// PlaceBid appends a manual bid on behalf of the owner. The bid is
// attributed to the owner's manual agent so finalization and budget
// accounting work the same as for automated bidders.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, ownerID string, amount decimal.Decimal) (Bid, error) {
	bidder := e.agents.EnsureManualAgent(ownerID)

	var (
		bid      Bid
		snapshot Auction
	)
	err := e.ledger.Update(auctionID, func(a *Auction) error {
		if a.Status != StatusActive {
			return fmt.Errorf("%w: auction %s is %s, not active", ErrInvalidTransition, auctionID, a.Status)
		}

		minValid := a.CurrentPrice.Add(a.Increment)
		if amount.LessThan(minValid) {
			return fmt.Errorf("%w: bid %s, minimum %s", ErrBidTooLow, amount.String(), minValid.String())
		}

		if _, joined := a.SelectedAgents[ownerID]; !joined {
			a.Participants = append(a.Participants, ownerID)
			a.SelectedAgents[ownerID] = bidder.ID
		}

		bid = e.appendBid(a, bidder, amount)
		snapshot = a.clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if _, ok := e.archive.Get(auctionID); ok {
				return Bid{}, fmt.Errorf("%w: auction %s already completed", ErrInvalidTransition, auctionID)
			}
		}
		return Bid{}, err
	}

	slog.Info("Manual bid placed",
		slog.String("auction_id", auctionID),
		slog.String("bidder_id", bid.BidderID),
		slog.String("amount", bid.Amount.String()))

	e.publishBid(snapshot, bid)
	return bid, nil
}

// ResolveRound runs one atomic round-resolution cycle: every bound agent is
// invited to bid through the policy adapter and at most one bid, the highest
// proposal strictly above the current price, is accepted. A round that
// accepts nothing mutates nothing and emits nothing; that silent no-op is
// the steady state once agents are priced out.
func (e *Engine) ResolveRound(ctx context.Context, auctionID string) (*Bid, error) {
	var (
		accepted *Bid
		snapshot Auction
	)
	err := e.ledger.Update(auctionID, func(a *Auction) error {
		// Status may have changed between the trigger and acquiring
		// the lock; completed auctions accept no further bids.
		if a.Status != StatusActive {
			return nil
		}
		if len(a.Participants) == 0 {
			return nil
		}

		now := e.now()
		highest := a.CurrentPrice
		lastBidder := a.lastBidderID()

		bestAmount := highest
		var bestAgent *agent.Agent

		for _, ownerID := range a.Participants {
			agentID := a.SelectedAgents[ownerID]
			contender, err := e.agents.Get(agentID)
			if err != nil {
				slog.Warn("Bound agent missing from registry",
					slog.String("auction_id", a.ID),
					slog.String("agent_id", agentID))
				continue
			}

			// No immediate self-rebid; under the strict rule no
			// self-rebid at all.
			if contender.ID == lastBidder {
				continue
			}
			if e.strict && a.hasBidFrom(contender.ID) {
				continue
			}
			// Cannot clear the current price even before a raise.
			if contender.Remaining.LessThanOrEqual(highest) {
				continue
			}
			// A lone bidder stops after its opening bid instead of
			// raising against itself forever.
			if len(a.Participants) == 1 && len(a.Bids) > 0 {
				continue
			}

			obs := agent.Observation{
				CurrentPrice:    highest,
				Increment:       a.Increment,
				RemainingBudget: contender.Remaining,
				TimeRemaining:   max(0, a.EndTime.Sub(now)),
				StartingPrice:   a.StartingPrice,
				Duration:        a.EndTime.Sub(a.StartTime),
			}

			proposal, err := e.policy.ProposeBid(contender.Kind, obs)
			if err != nil {
				slog.Debug("Agent skipped for round",
					slog.String("auction_id", a.ID),
					slog.String("agent_id", contender.ID),
					slog.String("reason", err.Error()))
				continue
			}

			// Strict greater-than: on equal proposals the earliest
			// participant keeps the round.
			if proposal.GreaterThan(bestAmount) {
				bestAmount = proposal
				c := contender
				bestAgent = &c
			}
		}

		if bestAgent == nil {
			return nil
		}

		bid := e.appendBid(a, *bestAgent, bestAmount)
		accepted = &bid
		snapshot = a.clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Completed and archived: the round is a no-op, same as
			// any other non-active status.
			if _, ok := e.archive.Get(auctionID); ok {
				return nil, nil
			}
		}
		return nil, err
	}
	if accepted == nil {
		return nil, nil
	}

	slog.Info("Round resolved with bid",
		slog.String("auction_id", auctionID),
		slog.String("bidder_name", accepted.BidderName),
		slog.String("amount", accepted.Amount.String()))

	e.publishBid(snapshot, *accepted)
	return accepted, nil
}

// Finalize transitions the auction to completed, picks the winner, and
// settles the winning agent's budget. It is idempotent: finalizing an
// already-completed auction returns its archived snapshot unchanged.
func (e *Engine) Finalize(ctx context.Context, auctionID string) (Auction, error) {
	var (
		snapshot Auction
		already  bool
	)
	err := e.ledger.Update(auctionID, func(a *Auction) error {
		if a.Status == StatusCompleted {
			already = true
			snapshot = a.clone()
			return nil
		}
		if err := a.advanceTo(StatusCompleted); err != nil {
			return err
		}

		if len(a.Bids) == 0 {
			a.WinnerName = "No Bids"
			a.WinningPrice = decimal.Zero
		} else {
			winning := a.Bids[0]
			for _, b := range a.Bids[1:] {
				// Strict greater-than keeps the earliest bid on
				// equal amounts.
				if b.Amount.GreaterThan(winning.Amount) {
					winning = b
				}
			}
			a.WinnerID = winning.BidderID
			a.WinnerName = winning.BidderName
			a.WinnerKind = winning.BidderKind
			a.WinningPrice = winning.Amount
			a.ReserveMet = a.ReservePrice.Sign() <= 0 || winning.Amount.GreaterThanOrEqual(a.ReservePrice)
		}

		snapshot = a.clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if archived, ok := e.archive.Get(auctionID); ok {
				return archived, nil
			}
		}
		return Auction{}, err
	}
	if already {
		return snapshot, nil
	}

	// Settlement happens outside the auction lock; the per-agent lock in
	// the registry serializes deductions across auctions. A failed
	// deduction (agent vanished, budget drifted) must not keep the
	// auction from its terminal state.
	if snapshot.WinnerID != "" {
		if err := e.agents.Deduct(snapshot.WinnerID, snapshot.WinningPrice); err != nil {
			slog.Error("Winner settlement failed, completing without deduction",
				slog.String("auction_id", auctionID),
				slog.String("winner_id", snapshot.WinnerID),
				slog.String("error", err.Error()))
		}
	}

	e.archive.Add(snapshot)
	e.ledger.Remove(auctionID)

	slog.Info("Auction completed",
		slog.String("auction_id", auctionID),
		slog.String("winner", snapshot.WinnerName),
		slog.String("winning_price", snapshot.WinningPrice.String()),
		slog.Bool("reserve_met", snapshot.ReserveMet))

	e.dispatcher.Publish(Event{
		Type:      EventAuctionComplete,
		Topic:     TopicFor(snapshot.ID),
		AuctionID: snapshot.ID,
		Auction:   &snapshot,
	})
	return snapshot, nil
}

// Tick is one scheduler beat: finalize on expiry, otherwise resolve a
// round. The returned done flag tells the scheduler to stop; an auction
// gone from the ledger counts as done, not as an error.
func (e *Engine) Tick(ctx context.Context, auctionID string) (bool, error) {
	a, err := e.ledger.Get(auctionID)
	if err != nil {
		return true, nil
	}
	if a.Status == StatusCompleted {
		return true, nil
	}

	if a.Status == StatusActive && !e.now().Before(a.EndTime) {
		_, err := e.Finalize(ctx, auctionID)
		return true, err
	}

	_, err = e.ResolveRound(ctx, auctionID)
	return false, err
}

func (e *Engine) appendBid(a *Auction, bidder agent.Agent, amount decimal.Decimal) Bid {
	bid := Bid{
		ID:         uuid.NewString(),
		BidderID:   bidder.ID,
		BidderName: bidder.Name,
		BidderKind: bidder.Kind,
		Amount:     amount,
		PlacedAt:   e.now(),
	}
	a.Bids = append(a.Bids, bid)
	a.CurrentPrice = amount
	return bid
}

// publishBid emits the minimal bid event plus a full snapshot so consumers
// can pick either granularity.
func (e *Engine) publishBid(snapshot Auction, bid Bid) {
	e.dispatcher.Publish(Event{
		Type:      EventBidUpdate,
		Topic:     TopicFor(snapshot.ID),
		AuctionID: snapshot.ID,
		Bid:       &bid,
	})
	e.publishState(snapshot)
}

func (e *Engine) publishState(snapshot Auction) {
	e.dispatcher.Publish(Event{
		Type:      EventStateUpdate,
		Topic:     TopicFor(snapshot.ID),
		AuctionID: snapshot.ID,
		Auction:   &snapshot,
	})
}
