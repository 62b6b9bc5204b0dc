package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHub reparte presencia y eventos entre instancias del servicio.
// Presencia: hash <ns>:presence:<draftID> (field = conn_id, value = Member JSON).
// Eventos: canal <ns>:draft:<draftID>:events (Event JSON, at-most-once).
type RedisHub struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

func NewRedisHub(rdb *redis.Client, namespace string, ttl time.Duration) (*RedisHub, error) {
	if rdb == nil {
		return nil, errors.New("realtime: redis client required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	if ttl <= 0 {
		ttl = 45 * time.Second
	}
	return &RedisHub{
		rdb:       rdb,
		namespace: namespace,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

func (h *RedisHub) presenceKey(draftID string) string {
	return h.namespace + ":presence:" + draftID
}

func (h *RedisHub) eventsChannel(draftID string) string {
	return h.namespace + ":draft:" + draftID + ":events"
}

// Ping para health checks.
func (h *RedisHub) Ping(ctx context.Context) error {
	return h.rdb.Ping(ctx).Err()
}

func (h *RedisHub) Publish(ctx context.Context, draftID string, e Event) error {
	if e.DraftID == "" {
		e.DraftID = draftID
	}
	if e.At.IsZero() {
		e.At = h.now()
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := h.rdb.Publish(ctx, h.eventsChannel(draftID), b).Err(); err != nil {
		return fmt.Errorf("failed to publish draft event: %w", err)
	}
	return nil
}

// Subscribe espera la confirmación de Redis antes de volver, así un Publish inmediato no se pierde.
func (h *RedisHub) Subscribe(ctx context.Context, draftID string) (*Subscription, error) {
	pubsub := h.rdb.Subscribe(ctx, h.eventsChannel(draftID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to draft events: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	go func() {
		defer close(sub.events)
		defer close(sub.errors)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					select {
					case sub.errors <- fmt.Errorf("failed to unmarshal draft event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case sub.events <- e:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

func (h *RedisHub) Join(ctx context.Context, draftID string, m Member) error {
	if strings.TrimSpace(m.ConnID) == "" || strings.TrimSpace(m.UserID) == "" {
		return errors.New("realtime: member requires conn_id and user_id")
	}
	now := h.now()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.LastSeen = now
	return h.writeMember(ctx, draftID, m)
}

func (h *RedisHub) Touch(ctx context.Context, draftID, connID string) error {
	key := h.presenceKey(draftID)
	raw, err := h.rdb.HGet(ctx, key, connID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read presence: %w", err)
	}

	var m Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return fmt.Errorf("failed to decode presence: %w", err)
	}
	m.LastSeen = h.now()
	return h.writeMember(ctx, draftID, m)
}

func (h *RedisHub) writeMember(ctx context.Context, draftID string, m Member) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	key := h.presenceKey(draftID)
	pipe := h.rdb.TxPipeline()
	pipe.HSet(ctx, key, m.ConnID, b)
	// si todas las instancias mueren, la presencia se limpia sola
	pipe.Expire(ctx, key, 2*h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write presence: %w", err)
	}
	return nil
}

func (h *RedisHub) Leave(ctx context.Context, draftID, connID string) error {
	if err := h.rdb.HDel(ctx, h.presenceKey(draftID), connID).Err(); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

func (h *RedisHub) Members(ctx context.Context, draftID string) ([]Member, error) {
	key := h.presenceKey(draftID)
	raw, err := h.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	all := make([]Member, 0, len(raw))
	var broken []string
	for connID, v := range raw {
		var m Member
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			broken = append(broken, connID)
			continue
		}
		all = append(all, m)
	}

	alive, stale := livePresence(all, h.now(), h.ttl)
	if drop := append(stale, broken...); len(drop) > 0 {
		_ = h.rdb.HDel(ctx, key, drop...).Err()
	}
	return alive, nil
}

// Close cierra el cliente Redis.
func (h *RedisHub) Close() error {
	return h.rdb.Close()
}
