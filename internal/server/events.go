package server

import (
	"time"

	"github.com/sjawhar/murmur/internal/storage"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type RecordingCreatedEvent struct {
	Event
	Recording storage.Recording `json:"recording"`
}

type RecordingDeletedEvent struct {
	Event
	ID string `json:"id"`
}

type ChatCreatedEvent struct {
	Event
	Chat storage.ChatEntry `json:"chat"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
