package http

import (
	"net/http"
	"strings"
	"time"

	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/lo"
)

type RouterOptions struct {
	AllowedOrigins []string
	APITimeout     time.Duration
	Metrics        http.Handler
}

func NewRouter(h *Handler, wsServer *ws.Server, opts RouterOptions) http.Handler {
	if opts.APITimeout <= 0 {
		opts.APITimeout = 30 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.WithRequestLogger)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: !lo.Contains(origins, "*"),
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Chat server is running"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/ws", wsServer.HandleWS)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewareChi.Timeout(opts.APITimeout))
		api.Get("/channels", h.ListChannels)
		api.Get("/channels/{name}/messages", h.GetChannelHistory)
		api.Get("/users", h.ListUsers)
		api.Post("/upload", h.Upload)
	})

	prefix := strings.TrimSuffix(h.uploads.URLPrefix(), "/")
	files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(h.uploads.Dir())))
	r.Method(http.MethodGet, prefix+"/*", files)

	return r
}
