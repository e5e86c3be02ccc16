// media.go — медиа зон: список, загрузка, удаление, добавление по URL.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/service"
)

// multipartMemory — часть multipart-формы, которая держится в памяти.
const multipartMemory = 32 << 20

// ListMedia — GET /api/admin/media/{zone}.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	items, err := h.Media.List(zone)
	if err != nil {
		h.internalError(w, "list_media", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zone": zone, "content": items})
}

// Upload — POST /api/admin/upload, multipart: files[] (или files) и zone.
// Непрошедшие проверку файлы пропускаются; если не прошёл ни один — 413 или 415.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, "Requête trop volumineuse")
			return
		}
		apierrors.ValidationError(w, "Formulaire multipart invalide")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	zone, err := model.ParseUploadZone(r.FormValue("zone"))
	if err != nil {
		apierrors.ValidationError(w, "Zone invalide")
		return
	}

	headers := r.MultipartForm.File["files[]"]
	headers = append(headers, r.MultipartForm.File["files"]...)
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Aucun fichier reçu")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.internalError(w, "upload", fmt.Errorf("ошибка чтения %s: %w", fh.Filename, err))
			return
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Reader:      f,
		})
	}

	uploaded, rejected := h.Media.SaveUploads(r.Context(), zone, files)
	if len(uploaded) == 0 {
		h.rejectUpload(w, rejected)
		return
	}
	if uploaded == nil {
		uploaded = []service.UploadedFile{}
	}
	if rejected == nil {
		rejected = []service.RejectedFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("%d fichier(s) uploadé(s)", len(uploaded)),
		"uploaded_count": len(uploaded),
		"files":          uploaded,
		"rejected":       rejected,
	})
}

// rejectUpload выбирает код по первой причине отказа.
func (h *Handler) rejectUpload(w http.ResponseWriter, rejected []service.RejectedFile) {
	if len(rejected) == 0 {
		apierrors.ValidationError(w, "Aucun fichier valide")
		return
	}
	first := rejected[0]
	msg := fmt.Sprintf("%s: %s", first.Filename, first.Reason)
	switch {
	case errors.Is(first.Err, service.ErrTooLarge):
		apierrors.PayloadTooLarge(w, msg)
	case errors.Is(first.Err, service.ErrUnsupportedType):
		apierrors.UnsupportedMediaType(w, msg)
	case errors.Is(first.Err, model.ErrInvalidZone):
		apierrors.ValidationError(w, msg)
	default:
		h.internalError(w, "upload", first.Err)
	}
}

// DeleteMedia — DELETE /api/admin/media/{zone}/{id}; id — ID элемента или имя файла.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "id")

	freed, err := h.Media.Delete(zone, key)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Élément non trouvé")
			return
		}
		h.internalError(w, "delete_media", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Élément supprimé",
		"freed_bytes": freed,
	})
}

type addURLRequest struct {
	Zone     string `json:"zone" validate:"required"`
	URL      string `json:"url" validate:"required,max=8192"`
	Title    string `json:"title" validate:"max=200"`
	Download bool   `json:"download"`
}

// AddURLContent — POST /api/admin/add-url-content {zone, url, title, download}.
// download=true скачивает файл в зону, иначе сохраняется ссылка.
func (h *Handler) AddURLContent(w http.ResponseWriter, r *http.Request) {
	var req addURLRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Zone et URL requis (URL de 8192 caractères maximum)")
		return
	}
	zone, err := model.ParseZone(req.Zone)
	if err != nil {
		apierrors.ValidationError(w, "Zone invalide")
		return
	}

	var item *model.MediaItem
	if req.Download {
		item, err = h.Media.FetchRemoteAndStore(r.Context(), zone, req.URL, req.Title)
	} else {
		item, err = h.Media.AddURLReference(zone, req.URL, req.Title)
	}
	if err != nil {
		h.logger.Warn("Не удалось добавить контент по URL",
			slog.String("zone", string(zone)),
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			apierrors.ValidationError(w, "URL invalide")
		case errors.Is(err, service.ErrTooLarge):
			apierrors.PayloadTooLarge(w, "Fichier distant trop volumineux")
		case errors.Is(err, service.ErrUnsupportedType):
			apierrors.UnsupportedMediaType(w, "Type de contenu non supporté")
		case errors.Is(err, service.ErrFetchFailed):
			apierrors.UpstreamError(w, "Téléchargement impossible: "+err.Error())
		default:
			h.internalError(w, "add_url_content", err)
		}
		return
	}

	msg := "URL ajoutée avec succès"
	if req.Download {
		msg = "Contenu téléchargé avec succès"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
		"id":      item.ID,
		"item":    item,
	})
}
