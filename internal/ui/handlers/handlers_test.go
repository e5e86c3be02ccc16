package handlers

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

	"github.com/MiotyRan/Leashbot/internal/activity"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
	"github.com/MiotyRan/Leashbot/internal/repository"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/service"
	"github.com/MiotyRan/Leashbot/internal/settings"
	"github.com/MiotyRan/Leashbot/internal/stats"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
)

type healthStub map[string]bool

func (s healthStub) HealthByName() map[string]bool { return s }

// newPageHandler собирает PageHandler поверх настоящих сервисов; все
// сторонние API отвечают ошибкой, страницы должны показать запасные данные.
func newPageHandler(t *testing.T, health HealthReporter) (*PageHandler, string, *activity.Log) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	log, err := activity.Open(filepath.Join(dir, "activity.json"), nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	store, err := filestore.New(filepath.Join(dir, "media"))
	if err != nil {
		t.Fatal(err)
	}
	media := service.NewMediaService(store, service.MediaOptions{WebPrefix: "/static/media"}, nil, log, logger)
	selfies, err := selfie.New(filepath.Join(dir, "selfies"), selfie.Options{}, log, logger)
	if err != nil {
		t.Fatal(err)
	}
	cfg := settings.New(
		repository.NewFileSettings(filepath.Join(dir, "config.json")),
		settings.Defaults{WeatherAPIKey: "key", WeatherLocation: "Paris,FR", TideAPIKey: "key", SelfieCount: 3},
		settings.Options{BackupDir: filepath.Join(dir, "backups"), Keep: 3},
		log, logger,
	)
	bundle, err := i18n.Load(logger)
	if err != nil {
		t.Fatal(err)
	}

	h := NewPageHandler(PageDeps{
		Media:    media,
		Settings: cfg,
		Selfies:  selfies,
		Activity: log,
		Stats:    stats.New(store, selfies),
		Weather:  external.NewWeatherClient(external.WeatherOptions{URL: down.URL, Timeout: time.Second}, nil, logger),
		Tide:     external.NewTideClient(external.TideOptions{URL: down.URL, Timeout: time.Second}, nil, logger),
		Music:    external.NewMusicClient(external.MusicOptions{ChartURL: down.URL, Timeout: time.Second}, nil, logger),
		DJ:       external.NewDJClient("", time.Second, nil, logger),
		Bundle:   bundle,
		Health:   health,
	}, logger)
	return h, filepath.Join(dir, "media"), log
}

func serve(handler http.HandlerFunc, target, lang string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if lang != "" {
		req.AddCookie(&http.Cookie{Name: i18n.LangCookieName, Value: lang})
	}
	rec := httptest.NewRecorder()
	i18n.Middleware()(handler).ServeHTTP(rec, req)
	return rec
}

func TestHandleTeaser_FallbacksAndMedia(t *testing.T) {
	h, mediaDir, _ := newPageHandler(t, nil)
	zoneDir := filepath.Join(mediaDir, string(model.ZoneLeft1))
	if err := os.MkdirAll(zoneDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(zoneDir, "photo.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := serve(h.HandleTeaser, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Paris",
		"Mojito IA",
		"Aucune musique en cours",
		"/static/media/left1/photo.jpg",
		`data-zone="center"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("нет %q на экране", want)
		}
	}
}

func TestHandleTeaser_English(t *testing.T) {
	h, _, _ := newPageHandler(t, nil)
	body := serve(h.HandleTeaser, "/", "en").Body.String()
	if !strings.Contains(body, `<html lang="en">`) || !strings.Contains(body, "Cocktail of the moment") {
		t.Error("страница не переведена на английский")
	}
}

func TestHandleAdmin(t *testing.T) {
	h, _, log := newPageHandler(t, healthStub{"weather": false})
	log.Record(model.ActivityConfig, "Configuration sauvegardée", "", nil)

	rec := serve(h.HandleAdmin, "/admin/teaser", "fr")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Administration du Teaser",
		"Configuration sauvegardée",
		"Zone Gauche 1",
		"Zone Centrale (Carrousel)",
		"Hors ligne",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("нет %q в админке", want)
		}
	}
}

func TestDepUp(t *testing.T) {
	h, _, _ := newPageHandler(t, healthStub{"weather": false, "tide": true})
	if h.depUp("weather", true) {
		t.Error("weather: проверка dephealth не учтена")
	}
	if !h.depUp("tide", true) || !h.depUp("music", true) {
		t.Error("tide/music должны быть доступны")
	}
	if h.depUp("tide", false) {
		t.Error("открытый breaker должен давать offline")
	}
}

func TestHandleSetLanguage(t *testing.T) {
	tests := []struct {
		name     string
		form     string
		referer  string
		wantLang string
		wantLoc  string
	}{
		{"en", "lang=en", "/", "en", "/"},
		{"fr", "lang=fr", "", "fr", "/admin/teaser"},
		{"unsupported", "lang=ru", "/admin/teaser", "fr", "/admin/teaser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/set-language", strings.NewReader(tt.form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			rec := httptest.NewRecorder()
			HandleSetLanguage(rec, req)

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("статус %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
				t.Errorf("Location %q, ожидался %q", loc, tt.wantLoc)
			}
			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Value != tt.wantLang {
				t.Errorf("cookie: %+v", cookies)
			}
		})
	}
}
