package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Mirror хранит присутствие на уровне кластера, чтобы online/offline считались
// по всем инстансам, а не по локальному реестру.
type Mirror interface {
	Connected(ctx context.Context, userID domain.UserID, connID string) (first bool, err error)
	Disconnected(ctx context.Context, userID domain.UserID, connID string) (Departure, error)
	Touch(ctx context.Context, userID domain.UserID) error
	OnlineUsers(ctx context.Context) ([]domain.UserID, error)
}

// Departure: итог снятия соединения в зеркале.
type Departure int

const (
	// DepartureUnknown: зеркало не знало это соединение (например, Connected тогда не прошёл).
	DepartureUnknown Departure = iota
	DepartureRemaining
	DepartureLast
)

// SREM соединения, проверка SCARD и снятие из online-множества одной операцией:
// Connected с другого инстанса не может вклиниться между ними.
var disconnectScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
if redis.call('SCARD', KEYS[1]) > 0 then
	return 1
end
redis.call('SREM', KEYS[2], ARGV[2])
return 2
`)

const (
	connsKeyPrefix = "messaging:presence:conns:"
	onlineSetKey   = "messaging:presence:online"
)

type RedisMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisMirror(rdb *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisMirror{rdb: rdb, ttl: ttl}
}

func connsKey(userID domain.UserID) string { return connsKeyPrefix + userID.String() }

func (m *RedisMirror) Connected(ctx context.Context, userID domain.UserID, connID string) (bool, error) {
	key := connsKey(userID)

	pipe := m.rdb.TxPipeline()
	added := pipe.SAdd(ctx, key, connID)
	card := pipe.SCard(ctx, key)
	pipe.Expire(ctx, key, m.ttl)
	pipe.SAdd(ctx, onlineSetKey, userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence connected: %w", err)
	}
	return added.Val() == 1 && card.Val() == 1, nil
}

func (m *RedisMirror) Disconnected(ctx context.Context, userID domain.UserID, connID string) (Departure, error) {
	res, err := disconnectScript.Run(ctx, m.rdb,
		[]string{connsKey(userID), onlineSetKey},
		connID, userID.String()).Int()
	if err != nil {
		return DepartureUnknown, fmt.Errorf("presence disconnected: %w", err)
	}
	switch res {
	case 2:
		return DepartureLast, nil
	case 1:
		return DepartureRemaining, nil
	default:
		return DepartureUnknown, nil
	}
}

// Touch продлевает TTL: упавший инстанс не оставит пользователя online навсегда.
func (m *RedisMirror) Touch(ctx context.Context, userID domain.UserID) error {
	return m.rdb.Expire(ctx, connsKey(userID), m.ttl).Err()
}

func (m *RedisMirror) OnlineUsers(ctx context.Context) ([]domain.UserID, error) {
	ids, err := m.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence online users: %w", err)
	}

	pipe := m.rdb.Pipeline()
	cards := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cards[i] = pipe.SCard(ctx, connsKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("presence online users: %w", err)
	}

	out := make([]domain.UserID, 0, len(ids))
	var expired []any
	for i, id := range ids {
		if cards[i].Val() == 0 {
			expired = append(expired, id)
			continue
		}
		v, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.UserID(v))
	}
	if len(expired) > 0 {
		m.rdb.SRem(ctx, onlineSetKey, expired...)
	}
	return out, nil
}
