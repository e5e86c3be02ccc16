package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearTeaserEnv убирает переменные TEASER_* на время теста.
func clearTeaserEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, orig, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, orig) })
		}
	}
}

// TestLoad_Defaults — без файла и переменных используются значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	clearTeaserEnv(t)

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, ожидалось 8000", cfg.Server.Port)
	}
	if cfg.Storage.MediaDir != "static/media" {
		t.Errorf("Storage.MediaDir = %q", cfg.Storage.MediaDir)
	}
	if cfg.Upload.MaxVideoBytes != 100<<20 {
		t.Errorf("Upload.MaxVideoBytes = %d, ожидалось %d", cfg.Upload.MaxVideoBytes, 100<<20)
	}
	if cfg.Selfie.CacheTTL != time.Minute {
		t.Errorf("Selfie.CacheTTL = %v, ожидалась 1m", cfg.Selfie.CacheTTL)
	}
	if cfg.Log.SlogLevel != slog.LevelInfo {
		t.Errorf("Log.SlogLevel = %v, ожидался info", cfg.Log.SlogLevel)
	}
	if cfg.Tide.Lat != 43.4832 || cfg.Tide.Lon != -1.5586 {
		t.Errorf("Tide = (%v, %v)", cfg.Tide.Lat, cfg.Tide.Lon)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

// TestLoad_EnvOverrides — переменные окружения перекрывают значения по умолчанию.
func TestLoad_EnvOverrides(t *testing.T) {
	clearTeaserEnv(t)
	t.Setenv("TEASER_SERVER_PORT", "9090")
	t.Setenv("TEASER_WEATHER_API_KEY", "secret")
	t.Setenv("TEASER_SELFIE_CACHE_TTL", "30s")
	t.Setenv("TEASER_LOG_LEVEL", "debug")
	t.Setenv("TEASER_CORS_ALLOWED_ORIGINS", "http://a.local, http://b.local")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, ожидалось 9090", cfg.Server.Port)
	}
	if cfg.Weather.APIKey != "secret" {
		t.Errorf("Weather.APIKey = %q", cfg.Weather.APIKey)
	}
	if cfg.Selfie.CacheTTL != 30*time.Second {
		t.Errorf("Selfie.CacheTTL = %v, ожидалось 30s", cfg.Selfie.CacheTTL)
	}
	if cfg.Log.SlogLevel != slog.LevelDebug {
		t.Errorf("Log.SlogLevel = %v, ожидался debug", cfg.Log.SlogLevel)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

// TestLoad_YAMLFile — файл перекрывает значения по умолчанию, окружение перекрывает файл.
func TestLoad_YAMLFile(t *testing.T) {
	clearTeaserEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8100
storage:
  media_dir: /srv/media
tide:
  lat: 44.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEASER_SERVER_PORT", "8200")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 8200 {
		t.Errorf("Server.Port = %d, ожидалось 8200 (из окружения)", cfg.Server.Port)
	}
	if cfg.Storage.MediaDir != "/srv/media" {
		t.Errorf("Storage.MediaDir = %q, ожидалось /srv/media", cfg.Storage.MediaDir)
	}
	if cfg.Tide.Lat != 44.5 {
		t.Errorf("Tide.Lat = %v, ожидалось 44.5", cfg.Tide.Lat)
	}
}

// TestLoad_Invalid — недопустимые значения отклоняются.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт вне диапазона", "TEASER_SERVER_PORT", "70000"},
		{"неизвестный формат логов", "TEASER_LOG_FORMAT", "xml"},
		{"неизвестный уровень", "TEASER_LOG_LEVEL", "trace"},
		{"широта вне диапазона", "TEASER_TIDE_LAT", "95"},
		{"некорректный URL DJ", "TEASER_DJ_URL", "not a url"},
		{"нулевой лимит селфи", "TEASER_SELFIE_DEFAULT_LIMIT", "0"},
		{"видео меньше изображения", "TEASER_UPLOAD_MAX_VIDEO_BYTES", "1024"},
		{"S3 без региона", "TEASER_BACKUP_S3_BUCKET", "teaser-backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTeaserEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := LoadFile(""); err == nil {
				t.Errorf("%s=%s: ожидалась ошибка валидации", tt.key, tt.val)
			}
		})
	}
}

// TestEnvTransformFunc — преобразование имён переменных в ключи koanf.
func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"TEASER_SERVER_PORT":      "server.port",
		"TEASER_WEATHER_API_KEY":  "weather.api_key",
		"TEASER_BACKUP_S3_BUCKET": "backup.s3_bucket",
		"TEASER_CONFIG_FILE":      "",
		"TEASER_DEBUG":            "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, ожидалось %q", in, got, want)
		}
	}
}

// TestParseLogLevel — разбор уровней логирования.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидалось %v", tt.in, got, tt.want)
		}
	}
}

// TestSetupLogger_File — при заданном log.file логи дублируются в файл.
func TestSetupLogger_File(t *testing.T) {
	clearTeaserEnv(t)
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "teaser.log")
	cfg.Log.Format = "text"

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(cfg)
	logger.Info("проверка записи")

	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatalf("файл логов не создан: %v", err)
	}
	if len(data) == 0 {
		t.Error("файл логов пуст")
	}
}
