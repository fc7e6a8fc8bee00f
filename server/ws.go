package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/kyeworks/bidhall/bidhall/auction"
)

// subscriber is one WebSocket connection's outbound queue. The hub never
// writes to the connection directly; a per-connection writer goroutine
// drains the queue so one slow client cannot stall delivery to others.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans auction events out to room-scoped WebSocket subscribers. Clients
// join the room for one auction; events published to that auction's topic
// reach every member. Implements auction.Sink.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*subscriber]struct{}),
	}
}

// wireEvent is the JSON frame sent to subscribers.
type wireEvent struct {
	Type      auction.EventType `json:"type"`
	AuctionID string            `json:"auction_id"`
	Bid       *auction.Bid      `json:"bid,omitempty"`
	Auction   *auction.Auction  `json:"auction,omitempty"`
}

// Deliver implements auction.Sink. A subscriber with a full queue is dropped
// rather than blocking the dispatch loop.
func (h *Hub) Deliver(ev auction.Event) {
	payload, err := json.Marshal(wireEvent{
		Type:      ev.Type,
		AuctionID: ev.AuctionID,
		Bid:       ev.Bid,
		Auction:   ev.Auction,
	})
	if err != nil {
		slog.Error("Failed to encode event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	members := make([]*subscriber, 0, len(h.rooms[ev.Topic]))
	for sub := range h.rooms[ev.Topic] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	for _, sub := range members {
		select {
		case sub.send <- payload:
		default:
			slog.Warn("Dropping slow subscriber",
				slog.String("topic", ev.Topic))
			h.leave(ev.Topic, sub)
		}
	}
}

// Serve handles one subscriber connection for the given auction room. It
// blocks until the client disconnects; fiber's websocket middleware calls it
// from the connection goroutine.
func (h *Hub) Serve(auctionID string, conn *websocket.Conn) {
	topic := auction.TopicFor(auctionID)
	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, 32),
		done: make(chan struct{}),
	}
	h.join(topic, sub)
	defer h.leave(topic, sub)

	slog.Info("Subscriber joined room", slog.String("topic", topic))

	go func() {
		for {
			select {
			case payload := <-sub.send:
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					sub.stop()
					return
				}
			case <-sub.done:
				return
			}
		}
	}()

	// Inbound frames are ignored; reading just detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Info("Subscriber left room", slog.String("topic", topic))
			return
		}
	}
}

func (h *Hub) join(topic string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[topic] == nil {
		h.rooms[topic] = make(map[*subscriber]struct{})
	}
	h.rooms[topic][sub] = struct{}{}
}

func (h *Hub) leave(topic string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[topic]
	if !ok {
		return
	}
	if _, member := room[sub]; !member {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, topic)
	}
	sub.stop()
}
