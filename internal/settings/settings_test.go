package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/repository"
)

type recorderStub struct {
	mu      sync.Mutex
	records []string
}

func (r *recorderStub) Record(typ model.ActivityType, message, _ string, _ *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, string(typ)+":"+message)
}

func newService(t *testing.T) (*Service, *recorderStub, string) {
	t.Helper()
	dir := t.TempDir()
	rec := &recorderStub{}
	svc := New(
		repository.NewFileSettings(filepath.Join(dir, "config.json")),
		Defaults{WeatherLocation: "Biarritz,FR", TideLat: 43.4832, TideLon: -1.5586, DJURL: "http://localhost:8001"},
		Options{BackupDir: filepath.Join(dir, "backups"), Keep: 3},
		rec,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, rec, dir
}

// TestGet_Defaults — без сохранённых ключей возвращаются значения по умолчанию.
func TestGet_Defaults(t *testing.T) {
	svc, _, _ := newService(t)

	vals, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if vals["weather_location"] != "Biarritz,FR" || vals["carousel_speed"] != 5 {
		t.Errorf("значения по умолчанию: %v", vals)
	}
	if vals["last_accessed"] == nil || vals["version"] != Version {
		t.Errorf("служебные поля: %v / %v", vals["last_accessed"], vals["version"])
	}
	zones := vals["zones"].(map[model.Zone]model.ZoneSettings)
	if zones[model.ZoneCenter].Title != "Zone Centrale (Carrousel)" || zones[model.ZoneLeft2].Duration != 5 {
		t.Errorf("зоны по умолчанию: %+v", zones)
	}
}

// TestSaveAll_MergesAndBacksUp — сохранённые значения перекрывают значения
// по умолчанию, создаётся резервная копия и запись журнала.
func TestSaveAll_MergesAndBacksUp(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()

	res, err := svc.SaveAll(ctx, Values{
		"carousel_speed": float64(12),
		"video_volume":   "0.5",
		"debug_mode":     true,
		"dj_url":         "http://dj.local:8001",
		"zones": map[string]any{
			"left1": map[string]any{"title": "Promo", "enabled": false, "duration": float64(8)},
		},
		"last_accessed": "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if len(res.SavedItems) != 5 || res.Backup == "" {
		t.Errorf("результат: %+v", res)
	}

	rt, err := svc.Runtime(ctx)
	if err != nil {
		t.Fatalf("Runtime: %v", err)
	}
	if rt.CarouselSpeed != 12 || rt.VideoVolume != 0.5 || !rt.Debug || rt.DJURL != "http://dj.local:8001" {
		t.Errorf("Runtime: %+v", rt)
	}
	if z := rt.Zones[model.ZoneLeft1]; z.Title != "Promo" || z.Enabled || z.Duration != 8 {
		t.Errorf("left1: %+v", z)
	}
	if z := rt.Zones[model.ZoneCenter]; z.Title != "Zone Centrale (Carrousel)" || !z.Enabled {
		t.Errorf("center не должен меняться: %+v", z)
	}

	backups, err := svc.ListBackups()
	if err != nil || len(backups) != 1 {
		t.Fatalf("резервные копии: %+v, %v", backups, err)
	}
	if len(rec.records) != 1 || rec.records[0] != "config:Configuration sauvegardée" {
		t.Errorf("журнал: %v", rec.records)
	}
}

// TestSaveAll_Validation — недопустимые значения отклоняют весь набор.
func TestSaveAll_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input Values
	}{
		{"неизвестный ключ", Values{"theme": "dark"}},
		{"скорость вне диапазона", Values{"carousel_speed": float64(31)}},
		{"дробное целое", Values{"cleanup_days": 2.5}},
		{"громкость больше 1", Values{"video_volume": 1.5}},
		{"широта", Values{"tide_lat": float64(-91)}},
		{"не bool", Values{"auto_cleanup": "peut-être"}},
		{"не строка", Values{"weather_location": float64(3)}},
		{"плохой URL", Values{"dj_url": "pas une url"}},
		{"неизвестная зона", Values{"zones": map[string]any{"left9": map[string]any{"duration": float64(5)}}}},
		{"длительность зоны", Values{"zones": map[string]any{"left1": map[string]any{"duration": float64(0)}}}},
		{"selfie_count", Values{"selfie_count": float64(11), "carousel_speed": float64(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, dir := newService(t)
			_, err := svc.SaveAll(context.Background(), tt.input)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ожидалась ErrValidation, получено %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "config.json")); !os.IsNotExist(err) {
				t.Error("при ошибке валидации ничего не должно записываться")
			}
		})
	}
}

// TestSaveDraft — черновик не влияет на действующие значения.
func TestSaveDraft(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if err := svc.SaveDraft(ctx, Values{"carousel_speed": float64(99), "anything": "ok"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	vals, err := svc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if vals["carousel_speed"] != 5 || vals["draft"] != nil {
		t.Errorf("черновик попал в конфигурацию: %v", vals)
	}

	draft, err := svc.Draft(ctx)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft["anything"] != "ok" {
		t.Errorf("черновик: %v", draft)
	}
}

// TestSaveZone проверяет сохранение одной зоны и валидацию.
func TestSaveZone(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	err := svc.SaveZone(ctx, model.ZoneLeft3, model.ZoneSettings{Enabled: true, Duration: 10, ContentOrder: []string{"b.jpg", "a.jpg"}})
	if err != nil {
		t.Fatalf("SaveZone: %v", err)
	}
	zs, err := svc.Zone(ctx, model.ZoneLeft3)
	if err != nil {
		t.Fatal(err)
	}
	if zs.Duration != 10 || zs.Title != "Zone Gauche 3" || len(zs.ContentOrder) != 2 {
		t.Errorf("left3: %+v", zs)
	}

	if err := svc.SaveZone(ctx, model.ZoneLeft1, model.ZoneSettings{Duration: 0}); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
}

// TestBackups_KeepAndRestore — хранятся только keep последних копий, восстановление
// возвращает сохранённые значения.
func TestBackups_KeepAndRestore(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		svc.now = func() time.Time { return tick }
		if _, err := svc.SaveAll(ctx, Values{"carousel_speed": float64(i)}); err != nil {
			t.Fatalf("SaveAll %d: %v", i, err)
		}
	}

	backups, err := svc.ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 3 {
		t.Fatalf("ожидалось 3 копии, получено %d", len(backups))
	}
	if backups[0].Filename != "config_backup_20240612_150005.json" {
		t.Errorf("новейшая копия: %s", backups[0].Filename)
	}

	// Копия после второго сохранения удалена, после третьего — на месте.
	res, err := svc.Restore(ctx, "config_backup_20240612_150003.json")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.BackupDate == "" {
		t.Error("дата копии не заполнена")
	}
	rt, _ := svc.Runtime(ctx)
	if rt.CarouselSpeed != 3 {
		t.Errorf("после восстановления carousel_speed=%d, ожидалось 3", rt.CarouselSpeed)
	}

	if _, err := svc.Restore(ctx, "config_backup_20240612_150002.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := svc.Restore(ctx, "../config.json"); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
}

// TestBackups_SameSecond — копии в одну секунду получают разные имена.
func TestBackups_SameSecond(t *testing.T) {
	svc, _, _ := newService(t)
	fixed := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	names := map[string]bool{}
	for i := 0; i < 3; i++ {
		res, err := svc.SaveAll(context.Background(), Values{"carousel_speed": float64(i + 1)})
		if err != nil {
			t.Fatal(err)
		}
		names[res.Backup] = true
	}
	if len(names) != 3 {
		t.Errorf("имена копий совпали: %v", names)
	}
	if !names["config_backup_20240612_150000_3.json"] {
		t.Errorf("ожидался суффикс _3: %v", names)
	}
}

// TestReset — сброс создаёт копию и возвращает значения по умолчанию.
func TestReset(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SaveAll(ctx, Values{"carousel_speed": float64(20)}); err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	name, err := svc.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if name == "" {
		t.Error("имя копии пустое")
	}
	vals, _ := svc.Get(ctx)
	if vals["carousel_speed"] != 5 {
		t.Errorf("после сброса carousel_speed=%v", vals["carousel_speed"])
	}

	// Копия перед сбросом восстанавливается без ошибок (служебные поля отбрасываются).
	if _, err := svc.Restore(ctx, name); err != nil {
		t.Fatalf("Restore после Reset: %v", err)
	}
	rt, _ := svc.Runtime(ctx)
	if rt.CarouselSpeed != 20 {
		t.Errorf("carousel_speed=%d, ожидалось 20", rt.CarouselSpeed)
	}
	if got := fmt.Sprint(rec.records); got == "" {
		t.Error("журнал пуст")
	}
}
