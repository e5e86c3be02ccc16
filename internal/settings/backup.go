package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

const backupPrefix = "config_backup_"

var backupNameRe = regexp.MustCompile(`^config_backup_\d{8}_\d{6}(_\d+)?\.json$`)

// backupFile — содержимое резервной копии.
type backupFile struct {
	BackupCreated  string `json:"backup_created"`
	Version        string `json:"version"`
	OriginalConfig Values `json:"original_config"`
}

// BackupInfo — элемент списка резервных копий.
type BackupInfo struct {
	Filename   string    `json:"filename"`
	Created    time.Time `json:"created"`
	Size       int64     `json:"size"`
	SizeKB     float64   `json:"size_kb"`
	BackupDate string    `json:"backup_date,omitempty"`
}

// RestoreResult — итог восстановления.
type RestoreResult struct {
	Filename   string   `json:"filename"`
	BackupDate string   `json:"backup_date"`
	SavedItems []string `json:"saved_items"`
}

// ListBackups возвращает резервные копии, новые первыми.
func (s *Service) ListBackups() ([]BackupInfo, error) {
	matches, err := filepath.Glob(filepath.Join(s.backupDir, backupPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска резервных копий: %w", err)
	}

	backups := make([]BackupInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		b := BackupInfo{
			Filename: filepath.Base(path),
			Created:  info.ModTime(),
			Size:     info.Size(),
			SizeKB:   round2(float64(info.Size()) / 1024),
		}
		if data, err := os.ReadFile(path); err == nil {
			var bf backupFile
			if json.Unmarshal(data, &bf) == nil {
				b.BackupDate = bf.BackupCreated
			}
		}
		backups = append(backups, b)
	}

	// Имя содержит метку времени, лексикографический порядок совпадает с хронологическим.
	sort.Slice(backups, func(i, j int) bool { return backups[i].Filename > backups[j].Filename })
	return backups, nil
}

// Restore сохраняет конфигурацию из резервной копии через SaveAll.
func (s *Service) Restore(ctx context.Context, name string) (*RestoreResult, error) {
	if !backupNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: недопустимое имя резервной копии %q", ErrValidation, name)
	}

	data, err := os.ReadFile(filepath.Join(s.backupDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("ошибка чтения резервной копии %s: %w", name, err)
	}

	var bf backupFile
	if err := json.Unmarshal(data, &bf); err != nil || bf.OriginalConfig == nil {
		return nil, fmt.Errorf("%w: неверный формат резервной копии %s", ErrValidation, name)
	}

	saved, err := s.SaveAll(ctx, bf.OriginalConfig)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Конфигурация восстановлена", slog.String("backup", name))
	s.record(model.ActivityConfig, "Configuration restaurée", name)
	return &RestoreResult{
		Filename:   name,
		BackupDate: bf.BackupCreated,
		SavedItems: saved.SavedItems,
	}, nil
}

// createBackup пишет config_backup_YYYYmmdd_HHMMSS.json и оставляет keep последних.
func (s *Service) createBackup(config Values) (string, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("не удалось создать директорию резервных копий: %w", err)
	}

	now := s.now()
	data, err := json.MarshalIndent(backupFile{
		BackupCreated:  now.Format(time.RFC3339),
		Version:        Version,
		OriginalConfig: config,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации резервной копии: %w", err)
	}

	base := backupPrefix + now.Format("20060102_150405")
	name := base + ".json"
	for i := 2; fileExists(filepath.Join(s.backupDir, name)); i++ {
		name = base + "_" + strconv.Itoa(i) + ".json"
	}

	if err := filestore.WriteAtomic(filepath.Join(s.backupDir, name), data); err != nil {
		return "", err
	}
	s.pruneBackups()
	return name, nil
}

// pruneBackups удаляет резервные копии сверх keep (самые старые).
func (s *Service) pruneBackups() {
	backups, err := s.ListBackups()
	if err != nil || len(backups) <= s.keep {
		return
	}
	for _, b := range backups[s.keep:] {
		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			s.logger.Warn("Не удалось удалить старую резервную копию",
				slog.String("file", b.Filename),
				slog.String("error", err.Error()),
			)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
