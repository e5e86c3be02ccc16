// Пакет handlers — HTTP-обработчики публичного API экрана и API администрирования.
// Обработчики только разбирают запрос и вызывают сервисный слой.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/activity"
	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/backup"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/service"
	"github.com/MiotyRan/Leashbot/internal/settings"
	"github.com/MiotyRan/Leashbot/internal/stats"
)

// maxJSONBody — предел тела JSON-запроса.
const maxJSONBody = 1 << 20

// HealthReporter — состояние внешних зависимостей по имени (weather, tide, music, dj).
type HealthReporter interface {
	HealthByName() map[string]bool
}

// Deps — зависимости обработчиков. Health и Ready могут быть nil.
type Deps struct {
	Media    *service.MediaService
	Selfies  *selfie.Store
	Settings *settings.Service
	Activity *activity.Log
	Stats    *stats.Aggregator
	Weather  *external.WeatherClient
	Tide     *external.TideClient
	Music    *external.MusicClient
	DJ       *external.DJClient
	Cleanup  *service.CleanupService
	Backup   *backup.Exporter
	Health   HealthReporter
	Ready    ReadinessChecker

	// LogsDir — каталог *.log для /logs.
	LogsDir string
	// MaxUploadBytes — предел multipart-запроса целиком.
	MaxUploadBytes int64
	// SelfieLimit — число селфи по умолчанию для /api/selfies/latest.
	SelfieLimit int
}

// Handler — обработчики API тизера.
type Handler struct {
	Deps
	validate *validator.Validate
	logger   *slog.Logger
}

// New создаёт обработчики.
func New(deps Deps, logger *slog.Logger) *Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 512 << 20
	}
	if deps.SelfieLimit <= 0 {
		deps.SelfieLimit = 3
	}
	return &Handler{
		Deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Пустое тело допустимо.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// zoneParam разбирает {zone} из пути. При ошибке ответ уже записан.
func zoneParam(w http.ResponseWriter, r *http.Request) (model.Zone, bool) {
	zone, err := model.ParseZone(chi.URLParam(r, "zone"))
	if err != nil {
		apierrors.ValidationError(w, "Zone invalide")
		return "", false
	}
	return zone, true
}

// queryInt возвращает целый параметр запроса или def, если он пуст.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// queryFloat возвращает указатель на дробный параметр; пустой — nil.
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// record пишет запись журнала, если журнал подключён.
func (h *Handler) record(typ model.ActivityType, message, details string) {
	if h.Activity != nil {
		h.Activity.Record(typ, message, details, nil)
	}
}

// internalError логирует ошибку и отвечает 500.
func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("Ошибка обработки запроса",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, err.Error())
}
