// Пакет server — HTTP-маршрутизатор и *http.Server teaser-сервиса.
// Жизненным циклом сервера управляет supervisor.HTTPService.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/api/handlers"
	"github.com/MiotyRan/Leashbot/internal/api/middleware"
	"github.com/MiotyRan/Leashbot/internal/config"
	uihandlers "github.com/MiotyRan/Leashbot/internal/ui/handlers"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
	"github.com/MiotyRan/Leashbot/internal/ui/static"
)

// Server — HTTP-сервер teaser-сервиса.
type Server struct {
	httpServer *http.Server
}

// New собирает маршруты: страницы, статику, публичное API, /api/admin
// (CORS и ограничение частоты по IP), health и /metrics.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.Handler, pages *uihandlers.PageHandler) *Server {
	router := chi.NewRouter()

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger(logger))
	router.Use(i18n.Middleware())

	handlers.Register(router, api, adminCORS(cfg.CORS), adminRateLimit(cfg.RateLimit))

	router.Get("/", pages.HandleTeaser)
	router.Get("/admin/teaser", pages.HandleAdmin)
	router.Post("/set-language", uihandlers.HandleSetLanguage)

	router.Handle("/static/media/*", http.StripPrefix("/static/media/", diskFiles(cfg.Storage.MediaDir)))
	router.Handle("/static/selfies/*", http.StripPrefix("/static/selfies/", diskFiles(cfg.Storage.SelfieDir)))
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{httpServer: srv}
}

// HTTPServer возвращает сервер для запуска под супервизором.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler возвращает корневой маршрутизатор.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func adminCORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

func adminRateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apierrors.RateLimited(w, "Trop de requêtes, réessayez plus tard")
		}),
	)
}

// diskFiles раздаёт файлы каталога без листинга директорий.
func diskFiles(root string) http.Handler {
	fileServer := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
