package auction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kyeworks/bidhall/bidhall/agent"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// rank orders statuses for the monotone transition check.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Bid is one accepted bid. Append-only: once in the ledger it is never
// mutated or removed.
type Bid struct {
	ID         string          `json:"id"`
	BidderID   string          `json:"bidderId"`
	BidderName string          `json:"bidderName"`
	BidderKind agent.Kind      `json:"bidderType"`
	Amount     decimal.Decimal `json:"amount"`
	PlacedAt   time.Time       `json:"timestamp"`
}

// Auction is the authoritative record for one auction instance. All writes
// go through the lifecycle engine under the per-auction lock held by the
// ledger; everything handed out of the ledger is a copy.
type Auction struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	ReservePrice  decimal.Decimal `json:"reservePrice"`
	Increment     decimal.Decimal `json:"increment"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	Status        Status          `json:"status"`

	// Participants keeps owner ids in binding order; round resolution
	// iterates it so tie-breaking stays deterministic.
	Participants   []string          `json:"participants"`
	SelectedAgents map[string]string `json:"selectedAgents"`

	Bids []Bid `json:"bids"`

	// BidCount is derived; set on every snapshot copy.
	BidCount int `json:"bidCount"`

	WinnerID     string          `json:"winnerId,omitempty"`
	WinnerName   string          `json:"winnerName,omitempty"`
	WinnerKind   agent.Kind      `json:"winnerType,omitempty"`
	WinningPrice decimal.Decimal `json:"winningPrice"`
	ReserveMet   bool            `json:"reserveMet"`
}

// CreateSpec carries client input for a new auction.
type CreateSpec struct {
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	ReservePrice  decimal.Decimal
	Increment     decimal.Decimal
	Duration      time.Duration
}

func (s CreateSpec) validate() error {
	if s.Increment.Sign() <= 0 {
		return fmt.Errorf("%w: increment must be positive, got %s", ErrInvalidSpec, s.Increment.String())
	}
	if s.StartingPrice.Sign() < 0 {
		return fmt.Errorf("%w: starting price must not be negative, got %s", ErrInvalidSpec, s.StartingPrice.String())
	}
	if s.ReservePrice.Sign() < 0 {
		return fmt.Errorf("%w: reserve price must not be negative, got %s", ErrInvalidSpec, s.ReservePrice.String())
	}
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidSpec, s.Duration)
	}
	return nil
}

// advanceTo enforces the monotone status order with no skipped states.
func (a *Auction) advanceTo(next Status) error {
	if next.rank() != a.Status.rank()+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, next)
	}
	a.Status = next
	return nil
}

// lastBidderID returns the bidder of the most recent bid, or "".
func (a *Auction) lastBidderID() string {
	if len(a.Bids) == 0 {
		return ""
	}
	return a.Bids[len(a.Bids)-1].BidderID
}

// hasBidFrom reports whether the agent holds any bid in this auction.
func (a *Auction) hasBidFrom(agentID string) bool {
	for _, b := range a.Bids {
		if b.BidderID == agentID {
			return true
		}
	}
	return false
}

// clone returns a deep copy safe to hand to callers and sinks after the
// per-auction lock is released.
func (a *Auction) clone() Auction {
	c := *a
	c.Participants = append([]string(nil), a.Participants...)
	c.Bids = append([]Bid(nil), a.Bids...)
	c.BidCount = len(a.Bids)
	c.SelectedAgents = make(map[string]string, len(a.SelectedAgents))
	for owner, agentID := range a.SelectedAgents {
		c.SelectedAgents[owner] = agentID
	}
	return c
}
