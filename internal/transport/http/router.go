package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/messaging-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler        *Handler
	Tokens         httpmw.TokenVerifier
	WS             http.HandlerFunc
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	// WS живёт дольше любого request timeout и без сжатия
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{httputil.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		pr.Use(middleware.Compress(5))
		pr.Use(middleware.Timeout(d.RequestTimeout))
		pr.Use(httpmw.Auth(d.Tokens))

		h := d.Handler
		pr.Route("/messages", func(rm chi.Router) {
			rm.Get("/conversations/list", h.ListConversations)
			rm.Get("/unread/count", h.UnreadCount)
			rm.Post("/", h.SendMessage)
			rm.Get("/{userId}", h.GetMessages)
			rm.Put("/{messageId}/read", h.MarkAsRead)
			rm.Put("/{userId}/conversation/read", h.MarkConversationAsRead)
		})
		pr.Get("/presence/{userId}", h.Presence)
	})

	return r
}
