package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MiotyRan/Leashbot/internal/api/handlers"
	"github.com/MiotyRan/Leashbot/internal/config"
	uihandlers "github.com/MiotyRan/Leashbot/internal/ui/handlers"
)

func newTestServer(t *testing.T, requests int) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         8000,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		Storage: config.StorageConfig{
			MediaDir:  filepath.Join(dir, "media"),
			SelfieDir: filepath.Join(dir, "selfies"),
		},
		RateLimit: config.RateLimitConfig{Requests: requests, Window: time.Minute},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"https://kiosk.example"}},
	}

	srv := New(cfg, logger,
		handlers.New(handlers.Deps{}, logger),
		uihandlers.NewPageHandler(uihandlers.PageDeps{}, logger),
	)
	if srv.HTTPServer().Addr != ":8000" {
		t.Errorf("адрес %q", srv.HTTPServer().Addr)
	}
	return srv.Handler(), dir
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestEmbeddedStatic(t *testing.T) {
	h, _ := newTestServer(t, 10)
	for _, path := range []string{"/static/css/teaser.css", "/static/css/admin.css", "/static/js/teaser.js", "/static/js/admin.js"} {
		if rec := get(h, path); rec.Code != http.StatusOK {
			t.Errorf("%s: статус %d", path, rec.Code)
		}
	}
	if rec := get(h, "/static/js/missing.js"); rec.Code != http.StatusNotFound {
		t.Errorf("отсутствующий файл: статус %d", rec.Code)
	}
}

func TestDiskStatic(t *testing.T) {
	h, dir := newTestServer(t, 10)
	zone := filepath.Join(dir, "media", "left1")
	if err := os.MkdirAll(zone, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(zone, "a.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(h, "/static/media/left1/a.jpg")
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg" {
		t.Errorf("файл зоны: статус %d, тело %q", rec.Code, rec.Body.String())
	}
	if rec := get(h, "/static/media/left1/"); rec.Code != http.StatusNotFound {
		t.Errorf("листинг директории: статус %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, 10)
	get(h, "/static/css/teaser.css")

	rec := get(h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "teaser_http_requests_total") {
		t.Error("нет метрики запросов")
	}
}

func TestAdminRateLimit(t *testing.T) {
	h, _ := newTestServer(t, 2)

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/restore", strings.NewReader(`{}`))
		req.RemoteAddr = "10.0.0.7:5000"
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := post(); rec.Code != http.StatusBadRequest {
			t.Fatalf("запрос %d: статус %d", i, rec.Code)
		}
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("статус %d, ожидался 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMITED") {
		t.Errorf("тело: %s", rec.Body.String())
	}

	// Публичное API не ограничивается.
	for i := 0; i < 5; i++ {
		if rec := get(h, "/static/css/teaser.css"); rec.Code != http.StatusOK {
			t.Fatalf("статика: статус %d", rec.Code)
		}
	}
}

func TestAdminCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/config", nil)
	req.Header.Set("Origin", "https://kiosk.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://kiosk.example" {
		t.Errorf("Access-Control-Allow-Origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/admin/config", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("чужой источник разрешён: %q", got)
	}
}
