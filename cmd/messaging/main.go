package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/messaging-service/config"
	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/memstore"
	"github.com/cwrk-planet/messaging-service/internal/pg"
	"github.com/cwrk-planet/messaging-service/internal/postgres"
	"github.com/cwrk-planet/messaging-service/internal/presence"
	"github.com/cwrk-planet/messaging-service/internal/security"
	"github.com/cwrk-planet/messaging-service/internal/service"
	grpcx "github.com/cwrk-planet/messaging-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/messaging-service/internal/transport/http"
	"github.com/cwrk-planet/messaging-service/internal/transport/ws"
	"github.com/cwrk-planet/messaging-service/migrations"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// repos: хранилище, выбранное по storage.driver.
type repos struct {
	messages service.MessageRepository
	users    service.UserRepository
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*repos, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		st := memstore.New()
		for _, u := range cfg.Storage.Seed {
			st.AddUser(domain.User{ID: domain.UserID(u.ID), Username: u.Username})
		}
		slog.Warn("storage: in-memory, data is lost on restart", "seed_users", len(cfg.Storage.Seed))
		return &repos{messages: st.Messages(), users: st.Users(), close: func() {}}, nil
	}

	pool, err := pg.NewPool(ctx, cfg.Postgres.ToPGConfig())
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.Migrate {
		if err := pg.Migrate(ctx, pool, migrations.FS); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &repos{
		messages: postgres.NewMessageRepository(pool),
		users:    postgres.NewUserRepository(pool),
		close:    pool.Close,
	}, nil
}

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting messaging-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.close()

	// --- redis (опционально) ---
	opts := ws.Options{ServerFanout: cfg.Realtime.Fanout()}
	var relay *ws.RedisRelay
	if cfg.Redis.Enabled() {
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb := redis.NewClient(ropts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		opts.Mirror = presence.NewRedisMirror(rdb, cfg.Redis.PresenceTTL)
		if cfg.Redis.Relay {
			relay = ws.NewRedisRelay(rdb)
			opts.Relay = relay
		}
	}

	// --- presence & gateway ---
	registry := presence.NewRegistry()
	gw := ws.NewGateway(registry, store.messages, opts)

	// --- services ---
	msgSvc := service.NewMessageService(store.messages, store.users, gw)
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0, cfg.Auth.ClockSkew)

	// --- WS ---
	wsSrv := ws.NewServer(gw, tokens, ws.ServerConfig{
		PingInterval:   cfg.Realtime.PingInterval,
		ReadLimit:      cfg.Realtime.ReadLimit,
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		RequireToken:   cfg.Realtime.RequireToken,
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:        httpx.NewHandler(msgSvc, gw),
		Tokens:         tokens,
		WS:             wsSrv.HandleWS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	// WriteTimeout не ставим: он рвёт hijacked WS-соединения
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor(cfg.GRPC.CallTimeout)),
	)
	grpcx.Register(grpcServer, grpcx.NewServer(gw, msgSvc))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// --- run ---
	errCh := make(chan error, 3)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	if relay != nil {
		go func() {
			if err := relay.Run(ctx, gw, nil); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	hs.Shutdown()
	if err := wsSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("ws shutdown", "err", err)
	}
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	slog.Info("stopped")
}
