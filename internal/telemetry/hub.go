// Package telemetry fans out chat messages to room subscribers: the
// subscribe/unsubscribe/broadcast shape and the drop-if-full backpressure
// policy mirror a log-stream hub retargeted from deployment log fan-out
// to chat-room message broadcast, with the map key now a room name
// instead of a deployment ID.
package telemetry

import "sync"

// ChatMessage is one broadcastable chat event.
type ChatMessage struct {
	Room   string `json:"room"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Hub fans out chat messages to every subscriber of a room.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]chan ChatMessage
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string][]chan ChatMessage)}
}

// Subscribe registers a new listener for room, returning a buffered
// channel of messages. The buffer absorbs bursts so one slow reader can't
// stall the broadcaster.
func (h *Hub) Subscribe(room string) chan ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChatMessage, 100)
	h.subscribers[room] = append(h.subscribers[room], ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (h *Hub) Unsubscribe(room string, ch chan ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[room]
	for i, sub := range subs {
		if sub == ch {
			h.subscribers[room] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
}

// Broadcast sends msg to every subscriber of room, dropping it for any
// subscriber whose buffer is currently full rather than blocking the
// broadcaster on a slow client.
func (h *Hub) Broadcast(room string, msg ChatMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[room] {
		select {
		case ch <- msg:
		default:
		}
	}
}
