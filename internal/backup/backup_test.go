package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/settings"
	"github.com/MiotyRan/Leashbot/internal/stats"
)

type fakeSources struct {
	storageErr error
}

func (f fakeSources) StorageOverview() (*stats.StorageOverview, error) {
	if f.storageErr != nil {
		return nil, f.storageErr
	}
	return &stats.StorageOverview{TotalSize: 2048, TotalFiles: 2}, nil
}

func (fakeSources) Stats() (*selfie.Stats, error) {
	return &selfie.Stats{TotalSelfies: 4}, nil
}

func (fakeSources) Get(context.Context) (settings.Values, error) {
	return settings.Values{"carousel_speed": 5}, nil
}

func (fakeSources) List(zone model.Zone) ([]model.MediaItem, error) {
	if zone == model.ZoneCenter {
		return []model.MediaItem{
			{Filename: "promo.mp4"},
			{SourceURL: "https://example.com/a.jpg"},
		}, nil
	}
	return nil, nil
}

type recorderStub struct {
	mu      sync.Mutex
	records []model.ActivityType
}

func (r *recorderStub) Record(typ model.ActivityType, _, _ string, _ *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, typ)
}

type uploaderStub struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (u *uploaderStub) Upload(_ context.Context, key string, _ []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return u.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExporter(t *testing.T, src fakeSources, up Uploader, rec Recorder) (*Exporter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backups")
	e := NewExporter(dir, Sources{Storage: src, Selfies: src, Config: src, Media: src}, up, rec, testLogger())
	e.now = func() time.Time { return time.Date(2024, 6, 12, 15, 4, 5, 0, time.UTC) }
	return e, dir
}

// TestExport — выгрузка пишется на диск, содержит все разделы и попадает в журнал.
func TestExport(t *testing.T) {
	rec := &recorderStub{}
	up := &uploaderStub{}
	e, dir := newExporter(t, fakeSources{}, up, rec)

	res, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	e.Wait()

	if res.Filename != "teaser_backup_20240612_150405.json" {
		t.Errorf("имя для скачивания: %s", res.Filename)
	}
	if res.Path != filepath.Join(dir, "backup_teaser_20240612_150405.json") {
		t.Errorf("путь: %s", res.Path)
	}
	onDisk, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("файл копии: %v", err)
	}
	if string(onDisk) != string(res.Data) {
		t.Error("содержимое на диске отличается от возвращённого")
	}

	var snap Snapshot
	if err := json.Unmarshal(res.Data, &snap); err != nil {
		t.Fatalf("разбор выгрузки: %v", err)
	}
	if !snap.TeaserBackup || snap.Version != Version || snap.CreatedAt != "2024-06-12T15:04:05Z" {
		t.Errorf("заголовок: %+v", snap)
	}
	if snap.StorageStats.TotalFiles != 2 || snap.SelfieStats.TotalSelfies != 4 {
		t.Errorf("статистика: %+v / %+v", snap.StorageStats, snap.SelfieStats)
	}
	if got := snap.Zones[model.ZoneCenter]; len(got) != 2 || got[0] != "promo.mp4" || got[1] != "https://example.com/a.jpg" {
		t.Errorf("состав center: %v", got)
	}
	if got, ok := snap.Zones[model.ZoneLeft1]; !ok || len(got) != 0 {
		t.Errorf("пустая зона должна присутствовать: %v", snap.Zones)
	}

	if len(up.keys) != 1 || up.keys[0] != "backup_teaser_20240612_150405.json" {
		t.Errorf("выгрузка в S3: %v", up.keys)
	}
	if len(rec.records) != 1 || rec.records[0] != model.ActivityBackup {
		t.Errorf("журнал: %v", rec.records)
	}
}

// TestExport_UploadFailure — ошибка S3 не ломает выгрузку, но пишется в журнал.
func TestExport_UploadFailure(t *testing.T) {
	rec := &recorderStub{}
	e, _ := newExporter(t, fakeSources{}, &uploaderStub{err: errors.New("bucket недоступен")}, rec)

	if _, err := e.Export(context.Background()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	e.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.records) != 2 || rec.records[1] != model.ActivityError {
		t.Errorf("журнал: %v", rec.records)
	}
}

// TestExport_SourceError — ошибка источника прерывает выгрузку до записи файла.
func TestExport_SourceError(t *testing.T) {
	e, dir := newExporter(t, fakeSources{storageErr: errors.New("диск недоступен")}, nil, nil)

	if _, err := e.Export(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("директория копий не должна создаваться")
	}
}

// TestS3Uploader — PUT уходит в S3-совместимый endpoint по пути bucket/prefix/key.
func TestS3Uploader(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := NewS3Uploader(context.Background(), S3Options{
		Bucket:     "teaser",
		Region:     "eu-west-3",
		Endpoint:   srv.URL,
		Prefix:     "/kiosk/",
		MaxElapsed: 5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewS3Uploader: %v", err)
	}

	if err := u.Upload(context.Background(), "backup_teaser_1.json", []byte(`{"teaser_backup":true}`)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) == 0 || !strings.HasPrefix(paths[0], "PUT /teaser/kiosk/backup_teaser_1.json") {
		t.Errorf("запросы: %v", paths)
	}
}

// TestNewS3Uploader_NoBucket — без бакета клиент не создаётся.
func TestNewS3Uploader_NoBucket(t *testing.T) {
	if _, err := NewS3Uploader(context.Background(), S3Options{Region: "eu-west-3"}, testLogger()); err == nil {
		t.Error("ожидалась ошибка")
	}
}
