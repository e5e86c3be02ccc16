// routes.go — таблица маршрутов API.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register регистрирует маршруты health, публичного API и /api/admin.
// adminMiddlewares применяются только к группе /api/admin.
func Register(r chi.Router, h *Handler, adminMiddlewares ...func(http.Handler) http.Handler) {
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)

	r.Get("/api/meteo", h.Meteo)
	r.Get("/api/musique/now-playing", h.NowPlaying)
	r.Get("/api/maree", h.Maree)
	r.Get("/api/selfies/latest", h.LatestSelfies)
	r.Get("/api/zones/{zone}", h.ZonePlaylist)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminMiddlewares...)

		r.Get("/config", h.GetConfig)
		r.Post("/save-all", h.SaveAll)
		r.Post("/save-draft", h.SaveDraft)
		r.Get("/backups", h.ListBackups)
		r.Post("/restore", h.Restore)
		r.Post("/reset", h.Reset)
		r.Get("/zone/{zone}", h.GetZone)
		r.Post("/zone/{zone}", h.SaveZone)

		r.Get("/media/{zone}", h.ListMedia)
		r.Post("/upload", h.Upload)
		r.Delete("/media/{zone}/{id}", h.DeleteMedia)
		r.Post("/add-url-content", h.AddURLContent)

		r.Post("/test-weather", h.TestWeather)
		r.Post("/test-tide", h.TestTide)
		r.Post("/test-selfie", h.TestSelfie)
		r.Post("/test-dj", h.TestDJ)

		r.Get("/system-status", h.SystemStatus)
		r.Get("/widget-status", h.WidgetStatus)
		r.Post("/cleanup", h.RunCleanup)
		r.Post("/selfies/cleanup", h.SelfieCleanup)
		r.Get("/logs", h.Logs)
		r.Get("/backup", h.DownloadBackup)

		r.Get("/stats", h.GetStats)
		r.Get("/stats/timeseries", h.TimeSeries)
		r.Get("/stats/zones", h.ZoneStats)
		r.Get("/stats/detailed", h.DetailedStats)

		r.Get("/activity", h.ListActivity)
		r.Get("/selfies", h.ListSelfies)
		r.Get("/selfies/search", h.SearchSelfies)
	})
}
