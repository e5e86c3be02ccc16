// system.go — состояние системы, очистка, журналы сервера, выгрузка.
package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

// logTailLines — сколько последних строк журнала отдаёт /logs.
const logTailLines = 1000

// depUp объединяет состояние circuit breaker адаптера и проверку dephealth.
// Без dephealth решает только breaker.
func (h *Handler) depUp(name string, breakerOK bool) bool {
	if !breakerOK {
		return false
	}
	if h.Health == nil {
		return true
	}
	healthy, known := h.Health.HealthByName()[name]
	return !known || healthy
}

// SystemStatus — GET /api/admin/system-status.
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	storage, err := h.Stats.StorageOverview()
	if err != nil {
		h.internalError(w, "system_status", err)
		return
	}
	selfieOK := h.Selfies.TestConnectivity().Success

	weather := h.depUp("weather", h.Weather.Available())
	tide := h.depUp("tide", h.Tide.Available())
	music := h.depUp("music", h.Music.Available())
	dj := h.DJ.Endpoint() != "" && h.depUp("dj", true)

	active := 0
	for _, up := range []bool{selfieOK, dj, music} {
		if up {
			active++
		}
	}

	resp := map[string]any{
		"server": true,
		"apis": map[string]bool{
			"weather": weather,
			"tide":    tide,
			"music":   music,
		},
		"modules": map[string]any{
			"active": active,
			"total":  3,
			"selfie": selfieOK,
			"dj":     dj,
		},
		"storage": map[string]any{
			"total_mb":    storage.TotalSizeMB,
			"total_gb":    storage.TotalSizeGB,
			"total_files": storage.TotalFiles,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.Health != nil {
		resp["dependencies"] = h.Health.HealthByName()
	}
	writeJSON(w, http.StatusOK, resp)
}

// WidgetStatus — GET /api/admin/widget-status. Всегда 200.
func (h *Handler) WidgetStatus(w http.ResponseWriter, r *http.Request) {
	online := func(up bool) string {
		if up {
			return "online"
		}
		return "offline"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"weather": online(h.depUp("weather", h.Weather.Available())),
		"selfie":  online(h.Selfies.TestConnectivity().Success),
		"music":   online(h.depUp("music", h.Music.Available())),
	})
}

type cleanupRequest struct {
	Days int `json:"days" validate:"gte=0,lte=3650"`
}

// RunCleanup — POST /api/admin/cleanup {days}. Без days — cleanup_days из настроек.
func (h *Handler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Nombre de jours invalide")
		return
	}
	if req.Days == 0 {
		if rt := h.runtime(r); rt != nil {
			req.Days = rt.CleanupDays
		}
	}

	res, err := h.Cleanup.RunOnce(r.Context(), req.Days)
	if err != nil {
		h.internalError(w, "cleanup", err)
		return
	}
	deleted, freed := 0, 0.0
	if res.Media != nil {
		deleted, freed = res.Media.DeletedFiles, res.Media.FreedMB
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Nettoyage terminé",
		"deleted_files": deleted,
		"freed_mb":      freed,
	})
}

type selfieCleanupRequest struct {
	KeepMonths int `json:"keep_months" validate:"gte=0,lte=120"`
}

// SelfieCleanup — POST /api/admin/selfies/cleanup {keep_months}. Удаляются целые месяцы.
func (h *Handler) SelfieCleanup(w http.ResponseWriter, r *http.Request) {
	req := selfieCleanupRequest{}
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil || req.KeepMonths == 0 {
		apierrors.ValidationError(w, "keep_months doit être compris entre 1 et 120")
		return
	}

	res, err := h.Selfies.CleanupOlderThan(req.KeepMonths)
	if err != nil {
		h.internalError(w, "selfie_cleanup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d selfie(s) supprimé(s)", res.DeletedFiles),
		"result":  res,
	})
}

// Logs — GET /api/admin/logs: последние строки самого свежего *.log.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	path, err := latestLog(h.LogsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusOK, map[string]any{
				"logs": "Aucun fichier de log trouvé",
				"file": nil,
				"size": 0,
			})
			return
		}
		h.internalError(w, "logs", err)
		return
	}

	lines, err := tailLines(path, logTailLines)
	if err != nil {
		h.internalError(w, "logs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": strings.Join(lines, "\n"),
		"file": path,
		"size": len(lines),
	})
}

// latestLog возвращает самый свежий по mtime *.log в dir.
func latestLog(dir string) (string, error) {
	if dir == "" {
		return "", fs.ErrNotExist
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return "", err
	}
	type logFile struct {
		path string
		mod  time.Time
	}
	files := make([]logFile, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, logFile{path: m, mod: info.ModTime()})
	}
	if len(files) == 0 {
		return "", fs.ErrNotExist
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })
	return files[0].path, nil
}

// tailLines читает файл построчно и оставляет последние n строк.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	start := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) < n {
			ring = append(ring, sc.Text())
			continue
		}
		ring[start] = sc.Text()
		start = (start + 1) % n
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала %s: %w", path, err)
	}
	return append(ring[start:], ring[:start]...), nil
}

// DownloadBackup — GET /api/admin/backup: выгрузка во вложении.
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	if h.Backup == nil {
		apierrors.ServiceUnavailable(w, "Sauvegarde indisponible")
		return
	}
	res, err := h.Backup.Export(r.Context())
	if err != nil {
		h.record(model.ActivityError, "Erreur sauvegarde", err.Error())
		h.internalError(w, "backup", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
