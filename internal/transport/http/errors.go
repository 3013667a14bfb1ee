package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"
	"github.com/cwrk-planet/messaging-service/pkg/logger"
)

// mapErr: доменные ошибки -> статус и текст для клиента. Внутренние ошибки наружу не отдаём.
func mapErr(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrSelfConversation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrMessageNotFound):
		return http.StatusNotFound, "message not found"
	default:
		return http.StatusInternalServerError, "server error"
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := mapErr(err)
	if status >= http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("handler."+op+":", slog.Any("err", err))
	}
	httputil.JSON(w, status, ErrorResponse{Message: msg})
}
