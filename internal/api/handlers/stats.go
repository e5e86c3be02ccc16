// stats.go — статистика, журнал действий и обзор селфи.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/stats"
)

// GetStats — GET /api/admin/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	storage, err := h.Stats.StorageOverview()
	if err != nil {
		h.internalError(w, "stats", err)
		return
	}
	selfies, err := h.Selfies.Stats()
	if err != nil {
		h.internalError(w, "stats", err)
		return
	}
	totals, err := h.Stats.Totals()
	if err != nil {
		h.internalError(w, "stats", err)
		return
	}

	zones := make(map[model.Zone]int, len(model.AllZones))
	for _, z := range model.AllZones {
		zones[z] = totals.Zones[z].Files
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"storage":      storage,
		"selfies":      selfies,
		"zones":        zones,
		"totals":       totals,
		"generated_at": time.Now().Format(time.RFC3339),
	})
}

// TimeSeries — GET /api/admin/stats/timeseries?period=7d|30d|month.
func (h *Handler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "7d"
	}
	series, err := h.Stats.TimeSeries(period)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidPeriod) {
			apierrors.ValidationError(w, "Période invalide (7d, 30d, month)")
			return
		}
		h.internalError(w, "timeseries", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// ZoneStats — GET /api/admin/stats/zones.
func (h *Handler) ZoneStats(w http.ResponseWriter, r *http.Request) {
	shares, err := h.Stats.ZoneDistribution()
	if err != nil {
		h.internalError(w, "zone_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": shares})
}

// DetailedStats — GET /api/admin/stats/detailed.
func (h *Handler) DetailedStats(w http.ResponseWriter, r *http.Request) {
	d, err := h.Stats.Detailed()
	if err != nil {
		h.internalError(w, "detailed_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListActivity — GET /api/admin/activity?limit=. Новые записи первыми.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit < 1 {
		apierrors.ValidationError(w, "Paramètre limit invalide")
		return
	}
	items := h.Activity.Recent(r.Context(), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": items,
		"count":      len(items),
		"total":      h.Activity.Len(),
	})
}

// ListSelfies — GET /api/admin/selfies: месяцы и статистика.
func (h *Handler) ListSelfies(w http.ResponseWriter, r *http.Request) {
	months, err := h.Selfies.AvailableMonths()
	if err != nil {
		h.internalError(w, "list_selfies", err)
		return
	}
	st, err := h.Selfies.Stats()
	if err != nil {
		h.internalError(w, "list_selfies", err)
		return
	}
	if months == nil {
		months = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months, "stats": st})
}

// SearchSelfies — GET /api/admin/selfies/search?q=&limit=. Поиск по имени клиента и файлу.
func (h *Handler) SearchSelfies(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		apierrors.ValidationError(w, "Paramètre q requis")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 200 {
		apierrors.ValidationError(w, "Paramètre limit invalide (1-200)")
		return
	}
	items, err := h.Selfies.Search(q, limit)
	if err != nil {
		h.internalError(w, "search_selfies", err)
		return
	}
	if items == nil {
		items = []model.SelfieItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "selfies": items, "count": len(items)})
}
