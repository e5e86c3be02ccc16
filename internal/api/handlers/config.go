// config.go — конфигурация тизера: чтение, сохранение, черновик, резервные копии, зоны.
package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/settings"
)

// GetConfig — GET /api/admin/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	vals, err := h.Settings.Get(r.Context())
	if err != nil {
		h.internalError(w, "get_config", err)
		return
	}
	writeJSON(w, http.StatusOK, vals)
}

// SaveAll — POST /api/admin/save-all.
func (h *Handler) SaveAll(w http.ResponseWriter, r *http.Request) {
	var input settings.Values
	if err := decodeJSON(r, &input); err != nil || input == nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}

	res, err := h.Settings.SaveAll(r.Context(), input)
	if err != nil {
		if errors.Is(err, settings.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.internalError(w, "save_all", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Configuration sauvegardée avec succès",
		"saved_items": res.SavedItems,
		"backup":      res.Backup,
	})
}

// SaveDraft — POST /api/admin/save-draft. Черновик не валидируется.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var draft settings.Values
	if err := decodeJSON(r, &draft); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.Settings.SaveDraft(r.Context(), draft); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Draft sauvegardé"})
}

// ListBackups — GET /api/admin/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := h.Settings.ListBackups()
	if err != nil {
		h.internalError(w, "list_backups", err)
		return
	}
	if list == nil {
		list = []settings.BackupInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": list, "count": len(list)})
}

type restoreRequest struct {
	Filename string `json:"filename" validate:"required"`
}

// Restore — POST /api/admin/restore {filename}.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Nom de fichier requis")
		return
	}

	res, err := h.Settings.Restore(r.Context(), req.Filename)
	if err != nil {
		switch {
		case errors.Is(err, settings.ErrNotFound):
			apierrors.NotFound(w, "Sauvegarde introuvable: "+req.Filename)
		case errors.Is(err, settings.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.internalError(w, "restore", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Configuration restaurée",
		"filename":    res.Filename,
		"backup_date": res.BackupDate,
		"saved_items": res.SavedItems,
	})
}

// Reset — POST /api/admin/reset. Перед сбросом создаётся резервная копия.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	backupName, err := h.Settings.Reset(r.Context())
	if err != nil {
		h.internalError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Configuration réinitialisée",
		"backup":  backupName,
	})
}

// zoneConfig — настройки зоны вместе с её медиа.
type zoneConfig struct {
	Zone         model.Zone        `json:"zone"`
	Title        string            `json:"title"`
	Duration     int               `json:"duration"`
	Enabled      bool              `json:"enabled"`
	ContentOrder []string          `json:"content_order"`
	Content      []model.MediaItem `json:"content"`
}

// GetZone — GET /api/admin/zone/{zone}.
func (h *Handler) GetZone(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	zs, err := h.Settings.Zone(r.Context(), zone)
	if err != nil {
		h.internalError(w, "get_zone", err)
		return
	}
	items, err := h.Media.List(zone)
	if err != nil {
		h.internalError(w, "get_zone", err)
		return
	}
	items = model.OrderItems(items, zs.ContentOrder)
	for i := range items {
		items[i].Order = i
	}

	resp := zoneConfig{
		Zone:         zone,
		Title:        zs.Title,
		Duration:     zs.Duration,
		Enabled:      zs.Enabled,
		ContentOrder: zs.ContentOrder,
		Content:      items,
	}
	if resp.Title == "" {
		resp.Title = zone.Title()
	}
	if resp.ContentOrder == nil {
		resp.ContentOrder = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveZone — POST /api/admin/zone/{zone}.
func (h *Handler) SaveZone(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	current, err := h.Settings.Zone(r.Context(), zone)
	if err != nil {
		h.internalError(w, "save_zone", err)
		return
	}
	// Поля, которых нет в теле, сохраняют текущие значения.
	zs := current
	if err := decodeJSON(r, &zs); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}

	if err := h.Settings.SaveZone(r.Context(), zone, zs); err != nil {
		if errors.Is(err, settings.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.internalError(w, "save_zone", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Zone " + string(zone) + " configurée",
	})
}
