package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/DoyleJ11/second-law-lobby/internal/coordinator"
	"github.com/DoyleJ11/second-law-lobby/internal/ws"
)

type Options struct {
	AllowedOrigins []string
	// RateLimit is requests per minute per client IP and endpoint; zero disables it.
	RateLimit int
	PublicURL string
	WS        ws.Options
	// History serves /rooms/{code}/history when set.
	History HistoryReader
}

func SetupRoutes(c *coordinator.Coordinator, opts Options, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET"},
			AllowCredentials: false,
		}))
	}
	if opts.RateLimit > 0 {
		r.Use(httprate.Limit(opts.RateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint)))
	}

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(c, opts.WS, log))
	r.Route("/rooms", func(r chi.Router) {
		r.Get("/code", SuggestCode(c, log))
		r.Get("/{code}", GetRoom(c, log))
		r.Get("/{code}/qr", RoomQR(c, opts.PublicURL, log))
		if opts.History != nil {
			r.Get("/{code}/history", RoomHistory(opts.History, log))
		}
	})
	return r
}
