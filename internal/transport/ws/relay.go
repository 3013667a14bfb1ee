package ws

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "messaging:user:"
	broadcastChannel  = "messaging:broadcast"
)

// Sink: локальная доставка на этом инстансе (Gateway).
type Sink interface {
	DeliverLocal(uid domain.UserID, frame []byte) int
	BroadcastLocal(frame []byte) int
}

// RedisRelay публикует кадры в Redis; каждый инстанс подписан и доставляет их своим соединениям.
type RedisRelay struct {
	rdb *redis.Client
}

func NewRedisRelay(rdb *redis.Client) *RedisRelay {
	return &RedisRelay{rdb: rdb}
}

func UserChannel(uid domain.UserID) string { return userChannelPrefix + uid.String() }

func (r *RedisRelay) PublishToUser(ctx context.Context, uid domain.UserID, frame []byte) error {
	return r.rdb.Publish(ctx, UserChannel(uid), frame).Err()
}

func (r *RedisRelay) PublishBroadcast(ctx context.Context, frame []byte) error {
	return r.rdb.Publish(ctx, broadcastChannel, frame).Err()
}

// Run блокируется до отмены ctx. ready (может быть nil) закрывается, когда подписка активна.
func (r *RedisRelay) Run(ctx context.Context, sink Sink, ready chan<- struct{}) error {
	pubsub := r.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			route(sink, msg.Channel, []byte(msg.Payload))
		}
	}
}

func route(sink Sink, channel string, frame []byte) {
	if channel == broadcastChannel {
		sink.BroadcastLocal(frame)
		return
	}
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return
	}
	uid, err := domain.ParseUserID(raw)
	if err != nil {
		slog.Debug("ws relay bad channel", "channel", channel, "err", err)
		return
	}
	sink.DeliverLocal(uid, frame)
}
