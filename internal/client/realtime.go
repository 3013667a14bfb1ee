package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/protocol"

	"github.com/gorilla/websocket"
)

var ErrRealtimeClosed = errors.New("realtime: connection closed")

// Realtime: websocket-клиент шлюза: Emit пишет события, Run читает входящие.
type Realtime struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
}

// DialRealtime подключается к /ws и сразу делает join.
func DialRealtime(ctx context.Context, wsURL, token string, me domain.UserID) (*Realtime, error) {
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, hdr)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	rt := &Realtime{conn: conn, closed: make(chan struct{})}
	if err := rt.Emit(protocol.Join{UserID: me}); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (r *Realtime) Emit(ev protocol.Inbound) error {
	frame, err := protocol.EncodeInbound(ev)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	select {
	case <-r.closed:
		return ErrRealtimeClosed
	default:
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return r.conn.WriteMessage(websocket.TextMessage, frame)
}

// Run доставляет входящие события в handle до закрытия соединения или отмены ctx.
func (r *Realtime) Run(ctx context.Context, handle func(context.Context, protocol.Outbound)) error {
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closed:
				return nil
			default:
			}
			return err
		}
		ev, err := protocol.DecodeOutbound(data)
		if err != nil {
			// новые типы событий сервера старый клиент пропускает
			continue
		}
		handle(ctx, ev)
	}
}

func (r *Realtime) Close() error {
	var err error
	r.once.Do(func() {
		close(r.closed)
		r.writeMu.Lock()
		_ = r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		r.writeMu.Unlock()
		err = r.conn.Close()
	})
	return err
}
