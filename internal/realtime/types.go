package realtime

import (
	"context"
	"sort"
	"sync"
	"time"
)

type EventType string

const (
	EventPresenceChanged EventType = "presence.changed"
	EventDraftUpdated    EventType = "draft.updated"
	EventDraftSubmitted  EventType = "draft.submitted"
)

// Member es una conexión viva sobre un borrador. Un mismo usuario puede tener varias (pestañas).
type Member struct {
	ConnID   string    `json:"conn_id"`
	UserID   string    `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	Role     string    `json:"role,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}

type Event struct {
	Type    EventType `json:"type"`
	DraftID string    `json:"draft_id"`
	ActorID string    `json:"actor_id,omitempty"`

	Sections []string `json:"sections,omitempty"`
	Version  int64    `json:"version,omitempty"`

	SubmissionID    string `json:"submission_id,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`

	Members []Member  `json:"members,omitempty"`
	At      time.Time `json:"at"`
}

// Hub: presencia + pub/sub por borrador.
type Hub interface {
	Publish(ctx context.Context, draftID string, e Event) error
	Subscribe(ctx context.Context, draftID string) (*Subscription, error)

	Join(ctx context.Context, draftID string, m Member) error
	Touch(ctx context.Context, draftID, connID string) error
	Leave(ctx context.Context, draftID, connID string) error
	Members(ctx context.Context, draftID string) ([]Member, error)

	Close() error
}

// Subscription entrega eventos de un borrador. Close() o cancelar el ctx la cierra.
type Subscription struct {
	events chan Event
	errors chan error
	cancel context.CancelFunc
	once   sync.Once
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{
		events: make(chan Event, 16),
		errors: make(chan error, 4),
		cancel: cancel,
	}
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Errors() <-chan error {
	return s.errors
}

func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// livePresence quita conexiones vencidas y deja una entrada por usuario (la más reciente),
// ordenadas por llegada.
func livePresence(all []Member, now time.Time, ttl time.Duration) (alive []Member, stale []string) {
	byUser := map[string]Member{}
	for _, m := range all {
		if now.Sub(m.LastSeen) > ttl {
			stale = append(stale, m.ConnID)
			continue
		}
		prev, ok := byUser[m.UserID]
		if !ok {
			byUser[m.UserID] = m
			continue
		}
		if m.LastSeen.After(prev.LastSeen) {
			if prev.JoinedAt.Before(m.JoinedAt) {
				m.JoinedAt = prev.JoinedAt
			}
			byUser[m.UserID] = m
		} else if m.JoinedAt.Before(prev.JoinedAt) {
			prev.JoinedAt = m.JoinedAt
			byUser[m.UserID] = prev
		}
	}

	alive = make([]Member, 0, len(byUser))
	for _, m := range byUser {
		alive = append(alive, m)
	}
	sort.Slice(alive, func(i, j int) bool {
		if alive[i].JoinedAt.Equal(alive[j].JoinedAt) {
			return alive[i].UserID < alive[j].UserID
		}
		return alive[i].JoinedAt.Before(alive[j].JoinedAt)
	})
	return alive, stale
}
