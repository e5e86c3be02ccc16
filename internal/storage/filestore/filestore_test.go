package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return fs
}

// TestNew_CreatesZoneDirectories проверяет создание директорий всех зон.
func TestNew_CreatesZoneDirectories(t *testing.T) {
	fs := newStore(t)

	for _, z := range model.AllZones {
		info, err := os.Stat(fs.ZoneDir(z))
		if err != nil {
			t.Fatalf("директория зоны %s не создана: %v", z, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s не является директорией", z)
		}
	}
}

// TestSave проверяет сохранение файла с подсчётом SHA-256.
func TestSave(t *testing.T) {
	fs := newStore(t)

	content := []byte("Bonjour! Données de test.")
	result, err := fs.Save(model.ZoneLeft1, "photo.jpg", bytes.NewReader(content), 0)
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Name != "photo.jpg" {
		t.Errorf("имя: ожидалось photo.jpg, получено %s", result.Name)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expected := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expected[:]) {
		t.Errorf("checksum не совпадает: %s", result.Checksum)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}
}

// TestSave_CollisionKeepsOriginal — совпадение имени даёт новое имя, оригинал не меняется.
func TestSave_CollisionKeepsOriginal(t *testing.T) {
	fs := newStore(t)

	first, err := fs.Save(model.ZoneCenter, "promo.png", bytes.NewReader([]byte("original")), 0)
	if err != nil {
		t.Fatalf("первое сохранение: %v", err)
	}
	second, err := fs.Save(model.ZoneCenter, "promo.png", bytes.NewReader([]byte("second")), 0)
	if err != nil {
		t.Fatalf("второе сохранение: %v", err)
	}

	if first.Name == second.Name {
		t.Fatalf("имена совпадают: %s", first.Name)
	}
	if !strings.HasPrefix(second.Name, "promo_") || !strings.HasSuffix(second.Name, ".png") {
		t.Errorf("ожидался суффикс-метка времени перед расширением: %s", second.Name)
	}

	data, err := os.ReadFile(first.FullPath)
	if err != nil {
		t.Fatalf("оригинал пропал: %v", err)
	}
	if string(data) != "original" {
		t.Errorf("оригинал перезаписан: %q", data)
	}

	entries, err := fs.List(model.ZoneCenter)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("ожидалось 2 файла в зоне, получено %d", len(entries))
	}
}

// TestSave_TooLarge — превышение лимита не оставляет файлов.
func TestSave_TooLarge(t *testing.T) {
	fs := newStore(t)

	_, err := fs.Save(model.ZoneLeft2, "big.mp4", bytes.NewReader(make([]byte, 2048)), 1024)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получено %v", err)
	}

	entries, err := os.ReadDir(fs.ZoneDir(model.ZoneLeft2))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("в зоне остались файлы: %d", len(entries))
	}
}

// TestSave_SanitizesName — путь и небезопасные символы убираются.
func TestSave_SanitizesName(t *testing.T) {
	fs := newStore(t)

	result, err := fs.Save(model.ZoneLeft3, "../../etc/Été 2024!.JPG", bytes.NewReader([]byte("x")), 0)
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if result.Name != "Été_2024.jpg" {
		t.Errorf("имя: получено %q", result.Name)
	}
	if filepath.Dir(result.FullPath) != fs.ZoneDir(model.ZoneLeft3) {
		t.Errorf("файл вне директории зоны: %s", result.FullPath)
	}
}

// TestList_FiltersAndSorts — только разрешённые расширения, новые первыми.
func TestList_FiltersAndSorts(t *testing.T) {
	fs := newStore(t)
	dir := fs.ZoneDir(model.ZoneLeft1)

	write := func(name string, mtime time.Time) {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Now()
	write("old.jpg", now.Add(-2*time.Hour))
	write("new.mp4", now.Add(-time.Minute))
	write("notes.txt", now)
	write(".gitkeep", now)
	write("old.jpg.attr.json", now)
	if err := os.MkdirAll(filepath.Join(dir, ThumbDirName), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := fs.List(model.ZoneLeft1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ожидалось 2 элемента, получено %d", len(entries))
	}
	if entries[0].Name != "new.mp4" || entries[0].Kind != model.KindVideo {
		t.Errorf("первым ожидался new.mp4 (video), получено %s (%s)", entries[0].Name, entries[0].Kind)
	}
	if entries[1].Name != "old.jpg" || entries[1].Kind != model.KindImage {
		t.Errorf("вторым ожидался old.jpg (image), получено %s", entries[1].Name)
	}
}

// TestDelete_NotFound — удаление отсутствующего файла не меняет директорию.
func TestDelete_NotFound(t *testing.T) {
	fs := newStore(t)
	if _, err := fs.Save(model.ZoneCenter, "keep.jpg", bytes.NewReader([]byte("keep")), 0); err != nil {
		t.Fatal(err)
	}

	_, err := fs.Delete(model.ZoneCenter, "missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}

	entries, _ := fs.List(model.ZoneCenter)
	if len(entries) != 1 || entries[0].Name != "keep.jpg" {
		t.Errorf("директория изменилась: %+v", entries)
	}
}

// TestDelete проверяет удаление и возврат освобождённого размера.
func TestDelete(t *testing.T) {
	fs := newStore(t)
	res, err := fs.Save(model.ZoneLeft1, "gone.gif", bytes.NewReader([]byte("12345")), 0)
	if err != nil {
		t.Fatal(err)
	}

	freed, err := fs.Delete(model.ZoneLeft1, res.Name)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if freed != 5 {
		t.Errorf("освобождено %d байт, ожидалось 5", freed)
	}
	if _, err := os.Stat(res.FullPath); !os.IsNotExist(err) {
		t.Error("файл не удалён")
	}
}

// TestReplace — атомарная замена содержимого.
func TestReplace(t *testing.T) {
	fs := newStore(t)
	res, err := fs.Save(model.ZoneLeft1, "img.png", bytes.NewReader([]byte("before")), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Replace(model.ZoneLeft1, res.Name, []byte("after")); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	data, _ := os.ReadFile(res.FullPath)
	if string(data) != "after" {
		t.Errorf("содержимое: %q", data)
	}
	if err := fs.Replace(model.ZoneLeft1, "nope.png", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestUsage — рекурсивный подсчёт с миниатюрами.
func TestUsage(t *testing.T) {
	fs := newStore(t)
	if _, err := fs.Save(model.ZoneCenter, "a.jpg", bytes.NewReader(make([]byte, 100)), 0); err != nil {
		t.Fatal(err)
	}
	thumbs := fs.ThumbDir(model.ZoneCenter)
	if err := os.MkdirAll(thumbs, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(thumbs, "a.jpg"), make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	size, files, dirs, err := fs.Usage(model.ZoneCenter)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if size != 110 || files != 2 || dirs != 1 {
		t.Errorf("Usage = (%d, %d, %d), ожидалось (110, 2, 1)", size, files, dirs)
	}
}
