// Пакет attr — сопутствующие файлы метаданных медиа.
// Для файла зоны рядом лежит <имя>.attr.json с постоянным ID;
// URL-ссылка хранится только как <slug>.url.json.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

// AttrSuffix — суффикс файла метаданных.
const AttrSuffix = ".attr.json"

// URLRefSuffix — суффикс записи URL-ссылки.
const URLRefSuffix = ".url.json"

// maxAttrFileSize — максимальный допустимый размер записи (64 КБ): длинные подписанные URL помещаются.
const maxAttrFileSize = 64 << 10

// AttrFilePath возвращает путь к attr.json для файла данных.
// Пример: "/media/left1/photo.jpg" → "/media/left1/photo.jpg.attr.json"
func AttrFilePath(dataFilePath string) string {
	return dataFilePath + AttrSuffix
}

// URLRefPath возвращает путь записи URL-ссылки в директории зоны.
func URLRefPath(zoneDir, slug string) string {
	return filepath.Join(zoneDir, slug+URLRefSuffix)
}

// IsAttrFile проверяет, является ли путь файлом метаданных.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, AttrSuffix)
}

// IsURLRef проверяет, является ли путь записью URL-ссылки.
func IsURLRef(path string) bool {
	return strings.HasSuffix(path, URLRefSuffix)
}

// Write атомарно записывает метаданные.
// Возвращает ошибку, если сериализованные данные превышают maxAttrFileSize.
func Write(path string, meta *model.MediaAttr) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер метаданных (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}
	return filestore.WriteAtomic(path, data)
}

// Read читает метаданные.
func Read(path string) (*model.MediaAttr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных %s: %w", path, err)
	}

	var meta model.MediaAttr
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации метаданных %s: %w", path, err)
	}

	return &meta, nil
}

// Delete удаляет файл метаданных. nil, если файла уже нет.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления метаданных %s: %w", path, err)
	}
	return nil
}

// ScanDir читает все attr.json директории зоны (не рекурсивно).
// Ключ — имя файла данных. Невалидные записи пропускаются.
func ScanDir(dir string) (map[string]*model.MediaAttr, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+AttrSuffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	result := make(map[string]*model.MediaAttr, len(matches))
	for _, path := range matches {
		meta, err := Read(path)
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(path), AttrSuffix)
		result[name] = meta
	}
	return result, nil
}

// ScanURLRefs читает все URL-ссылки директории зоны. Ключ — slug.
func ScanURLRefs(dir string) (map[string]*model.MediaAttr, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+URLRefSuffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	result := make(map[string]*model.MediaAttr, len(matches))
	for _, path := range matches {
		meta, err := Read(path)
		if err != nil || meta.Kind != model.KindURL {
			continue
		}
		result[strings.TrimSuffix(filepath.Base(path), URLRefSuffix)] = meta
	}
	return result, nil
}
