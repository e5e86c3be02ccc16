// cleanup.go — фоновая очистка старых медиа и селфи.
//
// По тикеру (cleanup.interval) сервис читает действующие настройки экрана:
// при включённом auto_cleanup удаляет медиа старше cleanup_days и месяцы селфи
// старше selfie.keep_months. Ручной запуск из админки — RunOnce.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/settings"
)

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teaser_cleanup_runs_total",
		Help: "Количество запусков очистки",
	}, []string{"trigger"})

	cleanupFilesDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teaser_cleanup_files_deleted_total",
		Help: "Количество файлов, удалённых очисткой",
	}, []string{"target"})

	cleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teaser_cleanup_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// MediaCleaner — удаление старых медиа.
type MediaCleaner interface {
	CleanupOlderThan(ctx context.Context, days int) (*MediaCleanupResult, error)
}

// SelfieCleaner — удаление старых месяцев селфи.
type SelfieCleaner interface {
	CleanupOlderThan(keepMonths int) (*selfie.CleanupResult, error)
}

// RuntimeSource — действующие настройки экрана.
type RuntimeSource interface {
	Runtime(ctx context.Context) (*settings.Runtime, error)
}

// CleanupOptions — параметры фоновой очистки.
type CleanupOptions struct {
	Interval time.Duration
	// Days — срок хранения медиа, если в настройках не задан cleanup_days.
	Days int
	// Auto — значение по умолчанию, когда настройки недоступны (runtime == nil).
	Auto       bool
	KeepMonths int
}

// CleanupResult — итог одного запуска.
type CleanupResult struct {
	Media    *MediaCleanupResult   `json:"media,omitempty"`
	Selfies  *selfie.CleanupResult `json:"selfies,omitempty"`
	Skipped  bool                  `json:"skipped"`
	Duration time.Duration         `json:"-"`
}

// CleanupService — периодическая очистка хранилища.
type CleanupService struct {
	media   MediaCleaner
	selfies SelfieCleaner
	runtime RuntimeSource
	opts    CleanupOptions
	logger  *slog.Logger

	mu sync.Mutex // один запуск одновременно
}

// NewCleanupService создаёт сервис очистки. selfies может быть nil.
func NewCleanupService(
	media MediaCleaner,
	selfies SelfieCleaner,
	runtime RuntimeSource,
	opts CleanupOptions,
	logger *slog.Logger,
) *CleanupService {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}
	return &CleanupService{
		media:   media,
		selfies: selfies,
		runtime: runtime,
		opts:    opts,
		logger:  logger.With(slog.String("component", "cleanup")),
	}
}

// Serve — цикл тикера до отмены ctx. Подходит для suture.Service.
func (c *CleanupService) Serve(ctx context.Context) error {
	c.logger.Info("Фоновая очистка запущена", slog.String("interval", c.opts.Interval.String()))

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Фоновая очистка остановлена")
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.RunScheduled(ctx); err != nil {
				c.logger.Error("Ошибка фоновой очистки", slog.String("error", err.Error()))
			}
		}
	}
}

// RunScheduled выполняет плановую очистку, если она разрешена настройками.
func (c *CleanupService) RunScheduled(ctx context.Context) (*CleanupResult, error) {
	auto, days := c.opts.Auto, c.opts.Days
	if c.runtime != nil {
		rt, err := c.runtime.Runtime(ctx)
		if err != nil {
			return nil, fmt.Errorf("чтение настроек очистки: %w", err)
		}
		auto = rt.AutoCleanup
		if rt.CleanupDays > 0 {
			days = rt.CleanupDays
		}
	}
	if !auto {
		c.logger.Debug("Автоочистка выключена, запуск пропущен")
		return &CleanupResult{Skipped: true}, nil
	}
	return c.run(ctx, "schedule", days, true)
}

// RunOnce — ручная очистка медиа старше days дней (0 — значение по умолчанию).
// Селфи не затрагиваются: для них отдельный эндпоинт.
func (c *CleanupService) RunOnce(ctx context.Context, days int) (*CleanupResult, error) {
	if days <= 0 {
		days = c.opts.Days
	}
	return c.run(ctx, "manual", days, false)
}

func (c *CleanupService) run(ctx context.Context, trigger string, days int, withSelfies bool) (*CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	res := &CleanupResult{}
	cleanupRunsTotal.WithLabelValues(trigger).Inc()

	media, err := c.media.CleanupOlderThan(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("очистка медиа: %w", err)
	}
	res.Media = media
	cleanupFilesDeletedTotal.WithLabelValues("media").Add(float64(media.DeletedFiles))

	if withSelfies && c.selfies != nil && c.opts.KeepMonths > 0 {
		sr, err := c.selfies.CleanupOlderThan(c.opts.KeepMonths)
		if err != nil {
			// Медиа уже очищены, ошибка селфи не отменяет результат.
			c.logger.Error("Ошибка очистки селфи", slog.String("error", err.Error()))
		} else {
			res.Selfies = sr
			cleanupFilesDeletedTotal.WithLabelValues("selfies").Add(float64(sr.DeletedFiles))
		}
	}

	res.Duration = time.Since(start)
	cleanupDurationSeconds.Observe(res.Duration.Seconds())

	c.logger.Info("Очистка завершена",
		slog.String("trigger", trigger),
		slog.Int("days", days),
		slog.Int("media_deleted", media.DeletedFiles),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}
