package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/murmur/internal/storage"
)

// Hub fans history events out to websocket subscribers. Slow subscribers
// miss events rather than block the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastRecordingCreated(rec storage.Recording) {
	h.broadcastEvent(RecordingCreatedEvent{
		Event:     newEvent("recording_created", time.Now().UTC()),
		Recording: rec,
	})
}

func (h *Hub) BroadcastRecordingDeleted(id string) {
	h.broadcastEvent(RecordingDeletedEvent{
		Event: newEvent("recording_deleted", time.Now().UTC()),
		ID:    id,
	})
}

func (h *Hub) BroadcastChatCreated(entry storage.ChatEntry) {
	h.broadcastEvent(ChatCreatedEvent{
		Event: newEvent("chat_created", time.Now().UTC()),
		Chat:  entry,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("server: event marshal failed", "error", err)
		return
	}
	h.Broadcast(payload)
}
