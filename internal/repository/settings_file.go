package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

// fileEntry — запись JSON-файла настроек.
type fileEntry struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// fileSettingsRepo — SettingsRepository поверх одного JSON-файла.
// Файл перечитывается на каждую операцию и перезаписывается атомарно.
type fileSettingsRepo struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileSettings создаёт файловый репозиторий настроек (например, data/config.json).
func NewFileSettings(path string) SettingsRepository {
	return &fileSettingsRepo{path: path, now: time.Now}
}

func (r *fileSettingsRepo) Get(_ context.Context, key string) (*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	e, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &model.Setting{Key: key, Value: e.Value, UpdatedAt: e.UpdatedAt}, nil
}

func (r *fileSettingsRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	entries[key] = fileEntry{Value: value, UpdatedAt: r.now().UTC()}
	return r.save(entries)
}

func (r *fileSettingsRepo) List(_ context.Context) ([]model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	settings := make([]model.Setting, 0, len(entries))
	for k, e := range entries {
		settings = append(settings, model.Setting{Key: k, Value: e.Value, UpdatedAt: e.UpdatedAt})
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

func (r *fileSettingsRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return ErrNotFound
	}
	delete(entries, key)
	return r.save(entries)
}

func (r *fileSettingsRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла настроек %s: %w", r.path, err)
	}
	return nil
}

// load читает файл. Отсутствующий файл — пустой набор.
func (r *fileSettingsRepo) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]fileEntry{}, nil
		}
		return nil, fmt.Errorf("ошибка чтения файла настроек %s: %w", r.path, err)
	}
	entries := map[string]fileEntry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла настроек %s: %w", r.path, err)
	}
	return entries, nil
}

func (r *fileSettingsRepo) save(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации настроек: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("не удалось создать директорию настроек: %w", err)
	}
	return filestore.WriteAtomic(r.path, data)
}
