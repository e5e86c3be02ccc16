// Пакет backup — полная выгрузка состояния витрины: статистика хранилища,
// селфи, конфигурация и состав зон. Копия пишется в директорию резервных копий,
// возвращается для скачивания и, при настроенном S3, дублируется в бакет.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/settings"
	"github.com/MiotyRan/Leashbot/internal/stats"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

// Version — версия формата выгрузки.
const Version = "1.0"

// StorageSource — занятость диска.
type StorageSource interface {
	StorageOverview() (*stats.StorageOverview, error)
}

// SelfieSource — статистика селфи.
type SelfieSource interface {
	Stats() (*selfie.Stats, error)
}

// ConfigSource — действующая конфигурация.
type ConfigSource interface {
	Get(ctx context.Context) (settings.Values, error)
}

// MediaLister — содержимое зоны.
type MediaLister interface {
	List(zone model.Zone) ([]model.MediaItem, error)
}

// Recorder — журнал действий.
type Recorder interface {
	Record(typ model.ActivityType, message, details string, sizeMB *float64)
}

// Uploader — внешнее хранилище копий.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Snapshot — содержимое выгрузки.
type Snapshot struct {
	TeaserBackup bool                    `json:"teaser_backup"`
	Version      string                  `json:"version"`
	CreatedAt    string                  `json:"created_at"`
	StorageStats *stats.StorageOverview  `json:"storage_stats"`
	SelfieStats  *selfie.Stats           `json:"selfie_stats"`
	Config       settings.Values         `json:"config"`
	Zones        map[model.Zone][]string `json:"zones"`
}

// Result — итог выгрузки.
type Result struct {
	// Filename — имя для скачивания (teaser_backup_<ts>.json).
	Filename string
	// Path — файл в директории резервных копий (backup_teaser_<ts>.json).
	Path string
	Data []byte
}

// Exporter собирает выгрузку.
type Exporter struct {
	dir      string
	storage  StorageSource
	selfies  SelfieSource
	config   ConfigSource
	media    MediaLister
	uploader Uploader
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	uploadTimeout time.Duration
	wg            sync.WaitGroup
}

// Sources — источники данных выгрузки.
type Sources struct {
	Storage StorageSource
	Selfies SelfieSource
	Config  ConfigSource
	Media   MediaLister
}

// NewExporter создаёт Exporter. uploader и recorder могут быть nil.
func NewExporter(dir string, src Sources, uploader Uploader, recorder Recorder, logger *slog.Logger) *Exporter {
	return &Exporter{
		dir:           dir,
		storage:       src.Storage,
		selfies:       src.Selfies,
		config:        src.Config,
		media:         src.Media,
		uploader:      uploader,
		recorder:      recorder,
		logger:        logger.With(slog.String("component", "backup")),
		now:           time.Now,
		uploadTimeout: 2 * time.Minute,
	}
}

// Export собирает снимок, пишет его на диск и запускает выгрузку в S3 в фоне.
// Ошибка S3 не влияет на результат.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации выгрузки: %w", err)
	}

	ts := e.now().Format("20060102_150405")
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию резервных копий: %w", err)
	}
	path := filepath.Join(e.dir, "backup_teaser_"+ts+".json")
	if err := filestore.WriteAtomic(path, data); err != nil {
		return nil, err
	}

	res := &Result{Filename: "teaser_backup_" + ts + ".json", Path: path, Data: data}
	e.logger.Info("Выгрузка создана",
		slog.String("file", filepath.Base(path)),
		slog.Int("bytes", len(data)),
	)
	if e.recorder != nil {
		sizeMB := stats.RoundMB(float64(len(data)) / (1024 * 1024))
		e.recorder.Record(model.ActivityBackup, "Sauvegarde créée", res.Filename, &sizeMB)
	}

	if e.uploader != nil {
		e.wg.Add(1)
		go e.upload(context.WithoutCancel(ctx), filepath.Base(path), data)
	}
	return res, nil
}

// Wait ждёт завершения фоновых выгрузок в S3.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

func (e *Exporter) upload(ctx context.Context, key string, data []byte) {
	defer e.wg.Done()
	ctx, cancel := context.WithTimeout(ctx, e.uploadTimeout)
	defer cancel()

	if err := e.uploader.Upload(ctx, key, data); err != nil {
		e.logger.Error("Ошибка выгрузки копии в S3",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		if e.recorder != nil {
			e.recorder.Record(model.ActivityError, "Échec de l'envoi de la sauvegarde", key, nil)
		}
		return
	}
	e.logger.Info("Копия выгружена в S3", slog.String("key", key))
}

func (e *Exporter) snapshot(ctx context.Context) (*Snapshot, error) {
	overview, err := e.storage.StorageOverview()
	if err != nil {
		return nil, fmt.Errorf("статистика хранилища: %w", err)
	}
	selfieStats, err := e.selfies.Stats()
	if err != nil {
		return nil, fmt.Errorf("статистика селфи: %w", err)
	}
	cfg, err := e.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("конфигурация: %w", err)
	}

	zones := make(map[model.Zone][]string, len(model.AllZones))
	for _, z := range model.AllZones {
		items, err := e.media.List(z)
		if err != nil {
			return nil, fmt.Errorf("зона %s: %w", z, err)
		}
		names := make([]string, 0, len(items))
		for _, it := range items {
			if it.Filename != "" {
				names = append(names, it.Filename)
			} else {
				names = append(names, it.SourceURL)
			}
		}
		zones[z] = names
	}

	return &Snapshot{
		TeaserBackup: true,
		Version:      Version,
		CreatedAt:    e.now().Format(time.RFC3339),
		StorageStats: overview,
		SelfieStats:  selfieStats,
		Config:       cfg,
		Zones:        zones,
	}, nil
}
