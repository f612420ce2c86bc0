package services

import (
	"sync"

	"github.com/yiback/gatherly/internal/models"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ParticipantChange is one row change on an event's participant list.
type ParticipantChange struct {
	Type        ChangeType         `json:"type"`
	EventID     string             `json:"event_id"`
	Participant models.Participant `json:"participant"`
}

// ParticipantHub fans participant changes out to subscribers of one event.
type ParticipantHub struct {
	clients map[string]map[string]chan ParticipantChange
	mu      sync.RWMutex
}

func NewParticipantHub() *ParticipantHub {
	return &ParticipantHub{
		clients: make(map[string]map[string]chan ParticipantChange),
	}
}

// Subscribe registers a client for eventID and returns its change channel.
func (h *ParticipantHub) Subscribe(eventID, clientID string) <-chan ParticipantChange {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Buffered so a slow reader does not block publishers
	ch := make(chan ParticipantChange, 64)
	if h.clients[eventID] == nil {
		h.clients[eventID] = make(map[string]chan ParticipantChange)
	}
	h.clients[eventID][clientID] = ch
	return ch
}

func (h *ParticipantHub) Unsubscribe(eventID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.clients[eventID]
	if ch, ok := subs[clientID]; ok {
		close(ch)
		delete(subs, clientID)
	}
	if len(subs) == 0 {
		delete(h.clients, eventID)
	}
}

// Publish never blocks; a client whose buffer is full misses the change.
func (h *ParticipantHub) Publish(change ParticipantChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[change.EventID] {
		select {
		case ch <- change:
		default:
		}
	}
}

func (h *ParticipantHub) ClientCount(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[eventID])
}

// EventCount returns the number of events with at least one subscriber.
func (h *ParticipantHub) EventCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalParticipantHub *ParticipantHub
	participantHubOnce   sync.Once
)

// GetParticipantHub returns the process-wide hub.
func GetParticipantHub() *ParticipantHub {
	participantHubOnce.Do(func() {
		globalParticipantHub = NewParticipantHub()
	})
	return globalParticipantHub
}

// ReconcileParticipants applies change to a client-side list: insert appends,
// update merges by id and delete filters by id. Changes are applied in arrival
// order with no conflict resolution, so the last change for a row wins.
func ReconcileParticipants(list []models.Participant, change ParticipantChange) []models.Participant {
	p := change.Participant
	switch change.Type {
	case ChangeInsert:
		for i := range list {
			if list[i].ID == p.ID {
				out := append([]models.Participant(nil), list...)
				out[i] = p
				return out
			}
		}
		return append(append([]models.Participant(nil), list...), p)
	case ChangeUpdate:
		out := append([]models.Participant(nil), list...)
		for i := range out {
			if out[i].ID == p.ID {
				merged := out[i]
				merged.Status = p.Status
				merged.RespondedAt = p.RespondedAt
				if p.User != nil {
					merged.User = p.User
				}
				out[i] = merged
				return out
			}
		}
		return append(out, p)
	case ChangeDelete:
		out := make([]models.Participant, 0, len(list))
		for _, existing := range list {
			if existing.ID != p.ID {
				out = append(out, existing)
			}
		}
		return out
	}
	return list
}
