package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"
	"github.com/cwrk-planet/messaging-service/pkg/logger"
)

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

type TokenVerifier interface {
	UserID(token string) (domain.UserID, error)
}

// Auth требует Authorization: Bearer <jwt>; user id берётся из токена.
func Auth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= len("Bearer ") {
				httputil.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			uid, err := tokens.UserID(strings.TrimSpace(auth[len("Bearer "):]))
			if err != nil {
				logger.FromCtx(r.Context()).Debug("auth rejected", "err", err)
				httputil.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := WithUserID(r.Context(), uid)
			ctx = logger.WithLogger(ctx, logger.FromCtx(ctx).With(logger.UserID(int64(uid))))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUserID(ctx context.Context, uid domain.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, uid)
}

func UserIDFromCtx(ctx context.Context) domain.UserID {
	if v, ok := ctx.Value(ctxKeyUserID).(domain.UserID); ok {
		return v
	}
	return 0
}
