package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrClosed = errors.New("realtime: hub closed")

// MemoryHub sirve para una sola instancia (modo dev y tests).
type MemoryHub struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	closed   bool
	nextID   int
	subs     map[string]map[int]*Subscription
	presence map[string]map[string]Member
}

func NewMemoryHub(ttl time.Duration) *MemoryHub {
	if ttl <= 0 {
		ttl = 45 * time.Second
	}
	return &MemoryHub{
		ttl:      ttl,
		now:      time.Now,
		subs:     map[string]map[int]*Subscription{},
		presence: map[string]map[string]Member{},
	}
}

func (h *MemoryHub) Publish(ctx context.Context, draftID string, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if e.DraftID == "" {
		e.DraftID = draftID
	}
	if e.At.IsZero() {
		e.At = h.now()
	}

	for _, s := range h.subs[draftID] {
		// at-most-once: si el suscriptor está lento se pierde el evento (igual que Redis pub/sub)
		select {
		case s.events <- e:
		default:
		}
	}
	return nil
}

func (h *MemoryHub) Subscribe(ctx context.Context, draftID string) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)
	id := h.nextID
	h.nextID++
	if h.subs[draftID] == nil {
		h.subs[draftID] = map[int]*Subscription{}
	}
	h.subs[draftID][id] = sub
	h.mu.Unlock()

	go func() {
		<-subCtx.Done()

		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[draftID][id]; ok {
			delete(h.subs[draftID], id)
			if len(h.subs[draftID]) == 0 {
				delete(h.subs, draftID)
			}
			close(sub.events)
			close(sub.errors)
		}
	}()

	return sub, nil
}

func (h *MemoryHub) Join(ctx context.Context, draftID string, m Member) error {
	if strings.TrimSpace(m.ConnID) == "" || strings.TrimSpace(m.UserID) == "" {
		return errors.New("realtime: member requires conn_id and user_id")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	now := h.now()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.LastSeen = now
	if h.presence[draftID] == nil {
		h.presence[draftID] = map[string]Member{}
	}
	h.presence[draftID][m.ConnID] = m
	return nil
}

func (h *MemoryHub) Touch(ctx context.Context, draftID, connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.presence[draftID][connID]
	if !ok {
		return nil
	}
	m.LastSeen = h.now()
	h.presence[draftID][connID] = m
	return nil
}

func (h *MemoryHub) Leave(ctx context.Context, draftID, connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.presence[draftID], connID)
	if len(h.presence[draftID]) == 0 {
		delete(h.presence, draftID)
	}
	return nil
}

func (h *MemoryHub) Members(ctx context.Context, draftID string) ([]Member, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	all := make([]Member, 0, len(h.presence[draftID]))
	for _, m := range h.presence[draftID] {
		all = append(all, m)
	}
	alive, stale := livePresence(all, h.now(), h.ttl)
	for _, id := range stale {
		delete(h.presence[draftID], id)
	}
	return alive, nil
}

// Close cierra todas las suscripciones abiertas.
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := make([]*Subscription, 0)
	for _, byID := range h.subs {
		for _, s := range byID {
			subs = append(subs, s)
		}
	}
	h.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}
