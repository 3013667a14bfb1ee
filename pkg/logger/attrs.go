package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Ключи атрибутов, общие для HTTP, WS и gRPC логов.
const (
	KeyUserID = "user_id"
	KeyConnID = "conn_id"
	KeyEvent  = "event"
)

func UserID(v int64) slog.Attr    { return slog.Int64(KeyUserID, v) }
func ConnID(v string) slog.Attr   { return slog.String(KeyConnID, v) }
func Event(name string) slog.Attr { return slog.String(KeyEvent, name) }

// ensureInstanceID: явный id > INSTANCE_ID > POD_NAME > hostname-uuid8.
// Нужен, чтобы различать инстансы за общим redis relay.
func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	for _, key := range []string{"INSTANCE_ID", "POD_NAME"} {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}

	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "messaging"
	}
	return hn + "-" + uuid.NewString()[:8]
}

func commonAttr(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return attrs
}
