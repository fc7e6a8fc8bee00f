package auction

import (
	"fmt"
	"log/slog"
	"sync"
)

type EventType string

const (
	EventBidUpdate       EventType = "bid_update"
	EventStateUpdate     EventType = "state_update"
	EventAuctionComplete EventType = "auction_complete"
)

// Event is one domain event scoped to an auction topic. Auction and Bid are
// copies taken while the per-auction lock was held; sinks may retain them.
type Event struct {
	Type      EventType
	Topic     string
	AuctionID string
	Bid       *Bid
	Auction   *Auction
}

// TopicFor names the room/topic for one auction's events.
func TopicFor(auctionID string) string {
	return fmt.Sprintf("auction_%s", auctionID)
}

// Sink receives dispatched events. Implementations must not block for long;
// the dispatcher is single-threaded per process to preserve per-auction
// publish order.
type Sink interface {
	Deliver(ev Event)
}

// Dispatcher decouples the engine from notification transports. The engine
// publishes copies of state after releasing auction locks; a single dispatch
// goroutine fans events out to the registered sinks in publish order.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink

	events chan Event
	done   chan struct{}
}

func NewDispatcher(buffer int) *Dispatcher {
	d := &Dispatcher{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

// Publish enqueues an event without blocking. A full queue drops the event
// with a warning rather than stalling the engine on slow transports.
func (d *Dispatcher) Publish(ev Event) {
	select {
	case d.events <- ev:
	default:
		slog.Warn("Dropping event, dispatch queue full",
			slog.String("type", string(ev.Type)),
			slog.String("auction_id", ev.AuctionID))
	}
}

// Close stops the dispatch loop after draining queued events.
func (d *Dispatcher) Close() {
	close(d.events)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		d.mu.RLock()
		sinks := append([]Sink(nil), d.sinks...)
		d.mu.RUnlock()

		for _, s := range sinks {
			s.Deliver(ev)
		}
	}
}
