// Пакет filestore — файлы медиа по зонам экрана.
// Каждая зона — отдельная директория; запись атомарная с подсчётом SHA-256,
// совпадение имён разрешается суффиксом-меткой времени, без перезаписи.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

var (
	// ErrNotFound — файла нет в зоне.
	ErrNotFound = errors.New("файл не найден")
	// ErrTooLarge — данные превышают допустимый размер.
	ErrTooLarge = errors.New("превышен максимальный размер файла")
)

// ThumbDirName — поддиректория зоны для миниатюр (не попадает в листинг).
const ThumbDirName = ".thumbs"

// FileStore — управление файлами медиа на диске.
type FileStore struct {
	// root — корень медиа (static/media), внутри директории зон
	root string
	now  func() time.Time
}

// Entry — файл медиа в зоне.
type Entry struct {
	Name     string
	FullPath string
	Kind     model.Kind
	Size     int64
	ModTime  time.Time
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// Name — итоговое имя файла в зоне (может отличаться от запрошенного)
	Name     string
	FullPath string
	Size     int64
	Checksum string
}

// New создаёт FileStore и директории всех зон.
func New(root string) (*FileStore, error) {
	for _, z := range model.AllZones {
		dir := filepath.Join(root, string(z))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию зоны %s: %w", dir, err)
		}
	}
	return &FileStore{root: root, now: time.Now}, nil
}

// Root возвращает корень медиа.
func (fs *FileStore) Root() string {
	return fs.root
}

// ZoneDir возвращает директорию зоны.
func (fs *FileStore) ZoneDir(zone model.Zone) string {
	return filepath.Join(fs.root, string(zone))
}

// ThumbDir возвращает директорию миниатюр зоны.
func (fs *FileStore) ThumbDir(zone model.Zone) string {
	return filepath.Join(fs.root, string(zone), ThumbDirName)
}

// Path возвращает полный путь файла в зоне.
func (fs *FileStore) Path(zone model.Zone, name string) string {
	return filepath.Join(fs.root, string(zone), filepath.Base(name))
}

// List перечисляет медиа зоны (не рекурсивно): только разрешённые расширения,
// без скрытых и служебных файлов; сортировка по времени изменения, новые первыми.
func (fs *FileStore) List(zone model.Zone) ([]Entry, error) {
	dir := fs.ZoneDir(zone)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	result := make([]Entry, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		kind, ok := model.KindFromFilename(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Файл удалён между ReadDir и Info
			continue
		}
		result = append(result, Entry{
			Name:     de.Name(),
			FullPath: filepath.Join(dir, de.Name()),
			Kind:     kind,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ModTime.After(result[j].ModTime)
	})
	return result, nil
}

// Stat возвращает сведения о файле зоны.
func (fs *FileStore) Stat(zone model.Zone, name string) (*Entry, error) {
	path := fs.Path(zone, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, zone, name)
		}
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, zone, name)
	}
	kind, _ := model.KindFromFilename(name)
	return &Entry{
		Name:     filepath.Base(name),
		FullPath: path,
		Kind:     kind,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// Save записывает данные в зону под именем name (после очистки).
// Если имя занято, к нему добавляется суффикс _<unix-nano>; существующий файл не трогается.
// maxBytes > 0 ограничивает размер; при превышении возвращается ErrTooLarge и ничего не остаётся на диске.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → link под свободным именем.
func (fs *FileStore) Save(zone model.Zone, name string, r io.Reader, maxBytes int64) (*SaveResult, error) {
	dir := fs.ZoneDir(zone)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию зоны %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	hasher := sha256.New()
	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}

	size, err := io.Copy(f, io.TeeReader(src, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if maxBytes > 0 && size > maxBytes {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, maxBytes)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	finalName, err := fs.publish(dir, tmpPath, SanitizeFilename(name))
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	return &SaveResult{
		Name:     finalName,
		FullPath: filepath.Join(dir, finalName),
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// publish делает temp-файл видимым под первым свободным именем.
// os.Link не перезаписывает существующий файл, поэтому одновременные загрузки
// с одинаковым именем получают разные имена.
func (fs *FileStore) publish(dir, tmpPath, name string) (string, error) {
	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		target := filepath.Join(dir, candidate)
		err := os.Link(tmpPath, target)
		if err == nil {
			os.Remove(tmpPath)
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			// ФС без жёстких ссылок: проверка + rename
			if _, statErr := os.Stat(target); os.IsNotExist(statErr) {
				if err := os.Rename(tmpPath, target); err != nil {
					return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
				}
				return candidate, nil
			}
		}
		candidate = withSuffix(name, fs.now().UnixNano()+int64(attempt))
	}
	return "", fmt.Errorf("не удалось подобрать свободное имя для %s", name)
}

// withSuffix добавляет числовой суффикс перед расширением: photo.jpg → photo_1700000000.jpg.
func withSuffix(name string, n int64) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "_" + strconv.FormatInt(n, 10) + ext
}

// Replace атомарно заменяет содержимое существующего файла (temp → fsync → rename).
func (fs *FileStore) Replace(zone model.Zone, name string, data []byte) error {
	path := fs.Path(zone, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, zone, name)
		}
		return fmt.Errorf("ошибка получения информации о файле %s: %w", path, err)
	}
	return WriteAtomic(path, data)
}

// Delete удаляет файл зоны и возвращает освобождённый размер.
// Если файла нет — ErrNotFound, директория не меняется.
func (fs *FileStore) Delete(zone model.Zone, name string) (int64, error) {
	entry, err := fs.Stat(zone, name)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(entry.FullPath); err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, zone, name)
		}
		return 0, fmt.Errorf("ошибка удаления файла %s: %w", entry.FullPath, err)
	}
	return entry.Size, nil
}

// Usage суммирует размер, число файлов и поддиректорий зоны (рекурсивно).
func (fs *FileStore) Usage(zone model.Zone) (size int64, files int, dirs int, err error) {
	return DirUsage(fs.ZoneDir(zone))
}

// DirUsage суммирует размер, число файлов и поддиректорий dir (рекурсивно).
// Отсутствующая директория — нули без ошибки.
func DirUsage(dir string) (size int64, files int, dirs int, err error) {
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			dirs++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		files++
		return nil
	})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка обхода директории %s: %w", dir, err)
	}
	return size, files, dirs, nil
}

// WriteAtomic записывает данные через temp → fsync → rename.
func WriteAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// SanitizeFilename убирает путь и небезопасные символы, расширение приводится к нижнему регистру.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(name)
	base := Sanitize(strings.TrimSuffix(name, ext))
	if runes := []rune(base); len(runes) > 80 {
		base = string(runes[:80])
	}

	var e strings.Builder
	for _, r := range strings.ToLower(ext) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			e.WriteRune(r)
		}
	}
	if e.Len() == 0 {
		return base
	}
	return base + "." + e.String()
}

// Sanitize оставляет буквы (включая акценты), цифры, дефис и подчёркивание; пробелы → "_".
// Пустой результат заменяется на "file".
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
