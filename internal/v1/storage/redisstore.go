package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/metrics"
)

// RedisStore persists each room's chat history in a Redis sorted set keyed
// by room, scored by message timestamp — standing in for the "cloud
// document store" option spec §6 names, via ZADD/ZRANGE/ZREM/DEL
// rather than a Firebase-style equality+orderBy+limit query. Wrapped in a
// circuit breaker, matching the teacher's internal/v1/bus/redis.go wiring.
type RedisStore struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewRedisStore wraps an existing Redis client. addr/password connections
// are the caller's concern (main wires one client shared across the bus
// and storage, or two separate ones); this constructor just adds the
// circuit breaker this package needs.
func NewRedisStore(client *redis.Client) *RedisStore {
	st := gobreaker.Settings{
		Name:        "redis_storage",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis_storage").Set(stateVal)
		},
	}
	return &RedisStore{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

func key(roomID string) string {
	return fmt.Sprintf("chat:%s", roomID)
}

func (s *RedisStore) execute(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	metrics.RedisOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis_storage").Inc()
		metrics.RedisOperationsTotal.WithLabelValues(op, "circuit_open").Inc()
		logging.Warn(ctx, "redis storage circuit breaker open", zap.String("op", op))
		return err
	}
	if err != nil {
		metrics.RedisOperationsTotal.WithLabelValues(op, "error").Inc()
		return err
	}
	metrics.RedisOperationsTotal.WithLabelValues(op, "success").Inc()
	return nil
}

// SaveMessage ZADDs the message, scored by its timestamp.
func (s *RedisStore) SaveMessage(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redisstore: encode message: %w", err)
	}

	return s.execute(ctx, "save_message", func() error {
		return s.client.ZAdd(ctx, key(msg.RoomID), redis.Z{
			Score:  float64(msg.Timestamp),
			Member: data,
		}).Err()
	})
}

// GetMessages ZRANGEs the room's set in ascending score order, returning
// up to the most recent limit messages (spec §6's default 50).
func (s *RedisStore) GetMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var raw []string
	err := s.execute(ctx, "get_messages", func() error {
		var zErr error
		raw, zErr = s.client.ZRange(ctx, key(roomID), 0, -1).Result()
		return zErr
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(raw))
	for _, member := range raw {
		var m Message
		if err := json.Unmarshal([]byte(member), &m); err != nil {
			logging.Warn(ctx, "redisstore: skipping undecodable message", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// DeleteRoomMessages removes the room's sorted set entirely.
func (s *RedisStore) DeleteRoomMessages(ctx context.Context, roomID string) error {
	return s.execute(ctx, "delete_room_messages", func() error {
		return s.client.Del(ctx, key(roomID)).Err()
	})
}

// AddReaction is read-modify-write: a sorted set member can't be patched
// in place, so the matching message is found, removed, updated, and
// re-added at its original score.
func (s *RedisStore) AddReaction(ctx context.Context, roomID, messageID, userID, emoji string) ([]Reaction, error) {
	var reactions []Reaction

	err := s.execute(ctx, "add_reaction", func() error {
		raw, err := s.client.ZRange(ctx, key(roomID), 0, -1).Result()
		if err != nil {
			return err
		}

		for _, member := range raw {
			var m Message
			if err := json.Unmarshal([]byte(member), &m); err != nil {
				continue
			}
			if m.ID != messageID {
				continue
			}

			m.Reactions = toggleReaction(m.Reactions, userID, emoji)
			reactions = m.Reactions

			updated, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("redisstore: encode updated message: %w", err)
			}

			pipe := s.client.TxPipeline()
			pipe.ZRem(ctx, key(roomID), member)
			pipe.ZAdd(ctx, key(roomID), redis.Z{Score: float64(m.Timestamp), Member: updated})
			_, err = pipe.Exec(ctx)
			return err
		}
		return fmt.Errorf("redisstore: message %s not found in room %s", messageID, roomID)
	})
	if err != nil {
		return nil, err
	}
	return reactions, nil
}
