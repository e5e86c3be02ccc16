// Пакет activity — журнал действий администратора.
// Записи хранятся новыми первыми, не более MaxRecords; после каждого Append
// весь список атомарно переписывается в JSON-файл. Запись сериализуется мьютексом.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

// MaxRecords — ёмкость журнала; старые записи вытесняются молча.
const MaxRecords = 100

// Translator — источник локализованных подписей относительного времени.
type Translator interface {
	Tf(ctx context.Context, key string, args ...any) string
}

// Log — журнал действий. Список в памяти загружается один раз при открытии
// и является источником истины; файл — его копия.
type Log struct {
	mu      sync.Mutex
	path    string
	records []model.ActivityRecord
	tr      Translator
	logger  *slog.Logger
	now     func() time.Time
}

// Open загружает журнал из файла. Отсутствующий файл — пустой журнал,
// повреждённый — тоже пустой, с предупреждением в лог.
func Open(path string, tr Translator, logger *slog.Logger) (*Log, error) {
	l := &Log{
		path:   path,
		tr:     tr,
		logger: logger.With(slog.String("component", "activity")),
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("ошибка чтения журнала %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &l.records); err != nil {
		l.logger.Warn("Журнал действий повреждён, начинаем с пустого",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		l.records = nil
	}
	if len(l.records) > MaxRecords {
		l.records = l.records[:MaxRecords]
	}
	return l, nil
}

// Append добавляет запись в начало журнала и сохраняет файл.
// При ошибке записи файла запись остаётся в памяти.
func (l *Log) Append(typ model.ActivityType, message, details string, sizeMB *float64) (model.ActivityRecord, error) {
	rec := model.ActivityRecord{
		ID:        newID(),
		Type:      typ,
		Message:   message,
		Details:   details,
		SizeMB:    sizeMB,
		CreatedAt: l.now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]model.ActivityRecord, 0, min(len(l.records)+1, MaxRecords))
	records = append(records, rec)
	records = append(records, l.records...)
	if len(records) > MaxRecords {
		records = records[:MaxRecords]
	}
	l.records = records

	if err := l.persist(); err != nil {
		l.logger.Error("Ошибка сохранения журнала действий",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return rec, err
	}
	return rec, nil
}

// Record — Append без возврата ошибки, для вызова из операций,
// чей результат не зависит от журнала.
func (l *Log) Record(typ model.ActivityType, message, details string, sizeMB *float64) {
	if l == nil {
		return
	}
	_, _ = l.Append(typ, message, details, sizeMB)
}

// Recent возвращает не более limit последних записей (и не более MaxRecords)
// с вычисленными time_ago, icon и style. Язык подписей берётся из ctx.
func (l *Log) Recent(ctx context.Context, limit int) []model.ActivityView {
	l.mu.Lock()
	n := min(max(limit, 0), len(l.records))
	snapshot := make([]model.ActivityRecord, n)
	copy(snapshot, l.records[:n])
	l.mu.Unlock()

	now := l.now()
	views := make([]model.ActivityView, 0, n)
	for _, rec := range snapshot {
		icon, style := Decoration(rec.Type)
		views = append(views, model.ActivityView{
			ActivityRecord: rec,
			TimeAgo:        l.timeAgo(ctx, now.Sub(rec.CreatedAt)),
			Icon:           icon,
			Style:          style,
		})
	}
	return views
}

// Len — текущее число записей.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// persist переписывает файл целиком. Вызывается под l.mu.
func (l *Log) persist() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации журнала: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("не удалось создать директорию журнала: %w", err)
	}
	return filestore.WriteAtomic(l.path, data)
}

func (l *Log) timeAgo(ctx context.Context, d time.Duration) string {
	switch {
	case d < time.Minute:
		return l.tf(ctx, "time.just_now")
	case d < time.Hour:
		return l.tf(ctx, "time.minutes_ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return l.tf(ctx, "time.hours_ago", int(d/time.Hour))
	default:
		return l.tf(ctx, "time.days_ago", int(d/(24*time.Hour)))
	}
}

func (l *Log) tf(ctx context.Context, key string, args ...any) string {
	if l.tr == nil {
		return key
	}
	return l.tr.Tf(ctx, key, args...)
}

var decorations = map[model.ActivityType][2]string{
	model.ActivityUpload:  {"fa-upload", "success"},
	model.ActivityConfig:  {"fa-cog", "info"},
	model.ActivityAPITest: {"fa-plug", "info"},
	model.ActivityCleanup: {"fa-broom", "warning"},
	model.ActivityBackup:  {"fa-download", "info"},
	model.ActivityError:   {"fa-exclamation-triangle", "danger"},
	model.ActivitySystem:  {"fa-server", "secondary"},
	model.ActivityMedia:   {"fa-photo-video", "primary"},
	model.ActivitySelfie:  {"fa-camera", "primary"},
}

// Decoration возвращает иконку и стиль отображения для типа записи.
func Decoration(typ model.ActivityType) (icon, style string) {
	if d, ok := decorations[typ]; ok {
		return d[0], d[1]
	}
	return "fa-info-circle", "secondary"
}

// newID — короткий случайный идентификатор записи (8 hex-символов).
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
