package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/memory"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/session"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

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
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	uploadMax, _ := cfg.UploadMaxSize()
	wsMax, _ := cfg.WSMaxMessageSize()

	// --- stores ---
	registry := memory.NewRegistry()
	channels := memory.NewChannelStore(cfg.Chat.DefaultChannels...)
	convs := memory.NewConversationStore()
	typing := memory.NewTypingTracker()

	// --- services ---
	chatSvc := service.NewChatService(channels, convs, registry)
	chatSvc.SetMaxMessageLength(cfg.Chat.MaxMessageLength)
	reactionSvc := service.NewReactionService(channels, convs)
	reactionSvc.EnablePrivateReceipts(cfg.Chat.PrivateReadReceipts)
	uploadSvc, err := service.NewUploadService(cfg.Uploads.Dir, cfg.Uploads.URLPrefix, uploadMax)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}

	m := metrics.New()

	// --- session router & WS ---
	hub := ws.NewHub(m)
	router := session.NewRouter(session.Deps{
		Registry:      registry,
		Channels:      channels,
		Conversations: convs,
		Typing:        typing,
		Chat:          chatSvc,
		Reactions:     reactionSvc,
		Metrics:       m,
	}, hub, cfg.Chat.InboxSize)

	wsServer := ws.NewServer(hub, router, ws.Options{
		MaxMessageSize: wsMax,
		SendBuffer:     cfg.WS.SendBuffer,
		PingEvery:      cfg.PingInterval(),
		WriteWait:      cfg.WriteWait(),
		RateRPS:        cfg.WS.RateLimit.RPS,
		RateBurst:      cfg.WS.RateLimit.Burst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, m)

	// --- HTTP ---
	handler := httpx.NewHandler(registry, channels, uploadSvc, m)
	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpx.NewRouter(handler, wsServer, httpx.RouterOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			APITimeout:     cfg.APITimeout(),
			Metrics:        m.Handler(),
		}),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	// --- gRPC health ---
	grpcSrv := grpcx.NewServer(cfg.GRPCCallTimeout())

	// --- run ---
	routerCtx, stopRouter := context.WithCancel(context.Background())
	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		_ = router.Run(routerCtx)
	}()

	errCh := make(chan error, 2)

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
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	grpcSrv.SetServing(true)

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	grpcSrv.SetServing(false)
	// hijacked sockets are not tracked by Shutdown
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	hub.CloseAll()
	stopRouter()
	<-routerDone
	grpcSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
