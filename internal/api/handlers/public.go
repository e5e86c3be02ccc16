// public.go — API, которое опрашивает экран тизера.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/settings"
)

// Meteo — GET /api/meteo?ville=&lat=&lon=. Всегда 200: при ошибке — запасная погода.
func (h *Handler) Meteo(w http.ResponseWriter, r *http.Request) {
	lat, errLat := queryFloat(r, "lat")
	lon, errLon := queryFloat(r, "lon")
	if errLat != nil || errLon != nil {
		apierrors.ValidationError(w, "Coordonnées invalides")
		return
	}

	q := external.WeatherQuery{City: r.URL.Query().Get("ville"), Lat: lat, Lon: lon}
	if rt := h.runtime(r); rt != nil {
		q.APIKey = rt.WeatherAPIKey
		q.Location = rt.WeatherLocation
	}
	writeJSON(w, http.StatusOK, h.Weather.Current(r.Context(), q))
}

// NowPlaying — GET /api/musique/now-playing. Пустой объект, если чарт недоступен.
func (h *Handler) NowPlaying(w http.ResponseWriter, r *http.Request) {
	track := h.Music.NowPlaying(r.Context())
	if track == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// Maree — GET /api/maree?lat=&lon=. Всегда 200: при ошибке — расчётный прилив.
func (h *Handler) Maree(w http.ResponseWriter, r *http.Request) {
	lat, errLat := queryFloat(r, "lat")
	lon, errLon := queryFloat(r, "lon")
	if errLat != nil || errLon != nil {
		apierrors.ValidationError(w, "Coordonnées invalides")
		return
	}

	q := external.TideQuery{Lat: lat, Lon: lon}
	if rt := h.runtime(r); rt != nil {
		q.APIKey = rt.TideAPIKey
		if q.Lat == nil || q.Lon == nil {
			q.Lat, q.Lon = &rt.TideLat, &rt.TideLon
		}
	}
	writeJSON(w, http.StatusOK, h.Tide.Next(r.Context(), q))
}

// LatestSelfies — GET /api/selfies/latest?limit=&month=.
func (h *Handler) LatestSelfies(w http.ResponseWriter, r *http.Request) {
	def := h.SelfieLimit
	if rt := h.runtime(r); rt != nil && rt.SelfieCount > 0 {
		def = rt.SelfieCount
	}
	limit, err := queryInt(r, "limit", def)
	if err != nil || limit < 1 || limit > 50 {
		apierrors.ValidationError(w, "Paramètre limit invalide (1-50)")
		return
	}

	items, err := h.Selfies.Latest(limit, r.URL.Query().Get("month"))
	if err != nil {
		if errors.Is(err, selfie.ErrInvalidMonth) {
			apierrors.ValidationError(w, "Mois invalide, format attendu AAAA-MM")
			return
		}
		h.internalError(w, "latest_selfies", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"selfies": items,
		"count":   len(items),
	})
}

// zonePlaylist — содержимое зоны для экрана.
type zonePlaylist struct {
	Zone     model.Zone        `json:"zone"`
	Title    string            `json:"title"`
	Enabled  bool              `json:"enabled"`
	Duration int               `json:"duration"`
	Content  []model.MediaItem `json:"content"`
}

// ZonePlaylist — GET /api/zones/{zone}. Порядок задаётся content_order,
// остальные элементы идут следом, новые первыми. Выключенная зона пуста.
func (h *Handler) ZonePlaylist(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	pl, err := h.playlist(r, zone)
	if err != nil {
		h.internalError(w, "zone_playlist", err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (h *Handler) playlist(r *http.Request, zone model.Zone) (*zonePlaylist, error) {
	zs, err := h.Settings.Zone(r.Context(), zone)
	if err != nil {
		return nil, err
	}
	pl := &zonePlaylist{
		Zone:     zone,
		Title:    zs.Title,
		Enabled:  zs.Enabled,
		Duration: zs.Duration,
		Content:  []model.MediaItem{},
	}
	if pl.Title == "" {
		pl.Title = zone.Title()
	}
	if !zs.Enabled {
		return pl, nil
	}

	items, err := h.Media.List(zone)
	if err != nil {
		return nil, err
	}
	pl.Content = model.OrderItems(items, zs.ContentOrder)
	for i := range pl.Content {
		pl.Content[i].Order = i
		if zs.Duration > 0 {
			pl.Content[i].Duration = zs.Duration
		}
	}
	return pl, nil
}

// runtime читает действующие настройки; ошибка логируется, вызывающий
// продолжает со значениями из конфигурации процесса.
func (h *Handler) runtime(r *http.Request) *settings.Runtime {
	if h.Settings == nil {
		return nil
	}
	rt, err := h.Settings.Runtime(r.Context())
	if err != nil {
		h.logger.Warn("Настройки недоступны, используются значения по умолчанию",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return rt
}
