// Package session хранит эфемерное состояние гостевого пробного режима в Redis.
//
// Состояние одной сессии лежит в хеше guest:{token}:
// поля is_guest, guest_id, notes и tool:{kind} со счётчиками попыток.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

const (
	keyPrefix     = "guest:"
	fieldIsGuest  = "is_guest"
	fieldGuestID  = "guest_id"
	fieldNotes    = "notes"
	toolFieldPref = "tool:"
)

// RedisStore хранилище гостевых сессий.
type RedisStore struct {
	db  *redis.Client
	ttl time.Duration
}

// NewRedisStore создаёт хранилище; ttl задаёт срок жизни сессии с момента последней записи.
func NewRedisStore(db *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{db: db, ttl: ttl}
}

func key(session string) string {
	return keyPrefix + session
}

// InitGuest помечает сессию как гостевую, если она ещё не помечена.
// Все поля и TTL выставляются одной транзакцией MULTI/EXEC; уже записанные поля не перезаписываются.
// Возвращает текущее состояние и признак того, что сессия создана этим вызовом.
func (s *RedisStore) InitGuest(ctx context.Context, session, guestID string) (models.GuestState, bool, error) {
	const op = "session.InitGuest"
	k := key(session)

	var created *redis.BoolCmd
	_, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.HSetNX(ctx, k, fieldGuestID, guestID)
		pipe.HSetNX(ctx, k, fieldIsGuest, "1")
		pipe.HSetNX(ctx, k, fieldNotes, 0)
		s.expire(ctx, pipe, k)
		return nil
	})
	if err != nil {
		return models.GuestState{}, false, fmt.Errorf("%s: %w: %w", op, models.ErrTransientStore, err)
	}

	state, err := s.Get(ctx, session)
	if err != nil {
		return models.GuestState{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return state, created.Val(), nil
}

// Get возвращает состояние сессии; для неизвестной сессии IsGuest == false.
func (s *RedisStore) Get(ctx context.Context, session string) (models.GuestState, error) {
	const op = "session.Get"

	fields, err := s.db.HGetAll(ctx, key(session)).Result()
	if err != nil {
		return models.GuestState{}, fmt.Errorf("%s: %w: %w", op, models.ErrTransientStore, err)
	}

	state := models.GuestState{ToolAttempts: make(map[models.ToolKind]int)}
	for field, value := range fields {
		switch {
		case field == fieldIsGuest:
			state.IsGuest = value == "1"
		case field == fieldGuestID:
			state.GuestID = value
		case field == fieldNotes:
			state.NoteCount, _ = strconv.Atoi(value)
		case strings.HasPrefix(field, toolFieldPref):
			n, _ := strconv.Atoi(value)
			state.ToolAttempts[models.ToolKind(strings.TrimPrefix(field, toolFieldPref))] = n
		}
	}
	return state, nil
}

// IncrTool увеличивает счётчик попыток инструмента и возвращает новое значение.
func (s *RedisStore) IncrTool(ctx context.Context, session string, tool models.ToolKind) (int, error) {
	const op = "session.IncrTool"
	n, err := s.incr(ctx, key(session), toolFieldPref+string(tool))
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", op, models.ErrTransientStore, err)
	}
	return n, nil
}

// IncrNotes увеличивает счётчик созданных гостем заметок.
func (s *RedisStore) IncrNotes(ctx context.Context, session string) (int, error) {
	const op = "session.IncrNotes"
	n, err := s.incr(ctx, key(session), fieldNotes)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", op, models.ErrTransientStore, err)
	}
	return n, nil
}

// incr увеличивает поле хеша и продлевает TTL сессии в одной транзакции.
func (s *RedisStore) incr(ctx context.Context, k, field string) (int, error) {
	var n *redis.IntCmd
	_, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.HIncrBy(ctx, k, field, 1)
		s.expire(ctx, pipe, k)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(n.Val()), nil
}

func (s *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, k string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
}

// Delete удаляет все гостевые ключи сессии; false, если удалять было нечего.
func (s *RedisStore) Delete(ctx context.Context, session string) (bool, error) {
	const op = "session.Delete"
	n, err := s.db.Del(ctx, key(session)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, models.ErrTransientStore, err)
	}
	return n > 0, nil
}
