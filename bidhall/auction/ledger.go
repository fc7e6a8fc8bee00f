package auction

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// entry pairs one auction with the mutex serializing every mutation to it.
// Rounds, manual bids, and finalization for the same auction all contend on
// this lock; different auctions never block each other.
type entry struct {
	mu      sync.Mutex
	auction *Auction
}

// Ledger is the in-memory authoritative store for live auctions. It is an
// explicit injected object rather than package state so independent engine
// instances can run side by side in tests.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
	}
}

// Create validates the creation input, stores a new pending auction, and
// returns a copy of it. The end time is fixed at creation; the start time is
// reset when the auction activates.
func (l *Ledger) Create(spec CreateSpec, now time.Time) (Auction, error) {
	if err := spec.validate(); err != nil {
		return Auction{}, err
	}

	a := &Auction{
		ID:             uuid.NewString(),
		Title:          spec.Title,
		Description:    spec.Description,
		StartingPrice:  spec.StartingPrice,
		ReservePrice:   spec.ReservePrice,
		Increment:      spec.Increment,
		StartTime:      now,
		EndTime:        now.Add(spec.Duration),
		CurrentPrice:   spec.StartingPrice,
		Status:         StatusPending,
		SelectedAgents: make(map[string]string),
	}

	l.mu.Lock()
	l.entries[a.ID] = &entry{auction: a}
	l.order = append(l.order, a.ID)
	l.mu.Unlock()

	return a.clone(), nil
}

// Get returns a copy of the auction.
func (l *Ledger) Get(id string) (Auction, error) {
	e, err := l.lookup(id)
	if err != nil {
		return Auction{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auction.clone(), nil
}

// List returns copies of all live auctions in creation order.
func (l *Ledger) List() []Auction {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.order))
	for _, id := range l.order {
		if e, ok := l.entries[id]; ok {
			entries = append(entries, e)
		}
	}
	l.mu.RUnlock()

	out := make([]Auction, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.auction.clone())
		e.mu.Unlock()
	}
	return out
}

// Update runs fn on the auction under its lock. fn sees the live record and
// may mutate it; an error from fn leaves whatever fn already did in place,
// so callers validate before mutating.
func (l *Ledger) Update(id string, fn func(a *Auction) error) error {
	e, err := l.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.auction)
}

// Remove drops the auction from the live set. Completed auctions move to the
// archive; a scheduler observing the removal treats it as an immediate stop.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) lookup(id string) (*entry, error) {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}
