// Пакет config — загрузка и валидация конфигурации teaser-сервиса.
// Источники (по возрастанию приоритета): значения по умолчанию, YAML-файл,
// переменные окружения TEASER_*.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "TEASER_"

// ConfigFileEnvVar — переменная окружения с путём к YAML-файлу конфигурации.
const ConfigFileEnvVar = "TEASER_CONFIG_FILE"

// Config содержит все параметры конфигурации.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Storage   StorageConfig   `koanf:"storage"`
	Upload    UploadConfig    `koanf:"upload"`
	Weather   WeatherConfig   `koanf:"weather"`
	Tide      TideConfig      `koanf:"tide"`
	Music     MusicConfig     `koanf:"music"`
	DJ        DJConfig        `koanf:"dj"`
	Selfie    SelfieConfig    `koanf:"selfie"`
	Cleanup   CleanupConfig   `koanf:"cleanup"`
	Database  DatabaseConfig  `koanf:"database"`
	Backup    BackupConfig    `koanf:"backup"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	CORS      CORSConfig      `koanf:"cors"`
	Dephealth DephealthConfig `koanf:"dephealth"`
}

// ServerConfig — параметры HTTP-сервера.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig — параметры логирования.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json text"`
	// Файл, дублирующий вывод логов (читается эндпоинтом /logs). Пусто — только stdout.
	File string `koanf:"file"`

	// Разобранный уровень, заполняется в validate().
	SlogLevel slog.Level `koanf:"-"`
}

// StorageConfig — каталоги хранения.
type StorageConfig struct {
	MediaDir  string `koanf:"media_dir" validate:"required"`
	SelfieDir string `koanf:"selfie_dir" validate:"required"`
	DataDir   string `koanf:"data_dir" validate:"required"`
	LogsDir   string `koanf:"logs_dir"`
}

// UploadConfig — ограничения на загружаемые файлы.
type UploadConfig struct {
	MaxImageBytes  int64         `koanf:"max_image_bytes" validate:"gt=0"`
	MaxVideoBytes  int64         `koanf:"max_video_bytes" validate:"gt=0"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	FetchUserAgent string        `koanf:"fetch_user_agent" validate:"required"`
}

// WeatherConfig — параметры погодного провайдера (OpenWeather).
type WeatherConfig struct {
	APIKey   string        `koanf:"api_key"`
	Location string        `koanf:"location" validate:"required"`
	URL      string        `koanf:"url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// TideConfig — параметры провайдера приливов (WorldTides).
type TideConfig struct {
	APIKey  string        `koanf:"api_key"`
	Lat     float64       `koanf:"lat" validate:"latitude"`
	Lon     float64       `koanf:"lon" validate:"longitude"`
	URL     string        `koanf:"url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// MusicConfig — параметры музыкального чарта (Deezer).
type MusicConfig struct {
	ChartURL string        `koanf:"chart_url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DJConfig — адрес модуля DJ/Jukebox.
type DJConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// SelfieConfig — параметры хранилища селфи.
type SelfieConfig struct {
	CacheTTL     time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	CacheSize    int           `koanf:"cache_size" validate:"min=1"`
	DefaultLimit int           `koanf:"default_limit" validate:"min=1,max=50"`
	KeepMonths   int           `koanf:"keep_months" validate:"min=1,max=120"`
}

// CleanupConfig — фоновая очистка старых медиа.
type CleanupConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Days     int           `koanf:"days" validate:"min=1,max=365"`
	Auto     bool          `koanf:"auto"`
}

// DatabaseConfig — PostgreSQL для хранения настроек. Пустой DSN — JSON-файл.
type DatabaseConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns" validate:"min=1"`
}

// BackupConfig — резервные копии и необязательная выгрузка в S3.
type BackupConfig struct {
	Dir        string `koanf:"dir" validate:"required"`
	Keep       int    `koanf:"keep" validate:"min=1"`
	S3Bucket   string `koanf:"s3_bucket"`
	S3Region   string `koanf:"s3_region"`
	S3Endpoint string `koanf:"s3_endpoint" validate:"omitempty,url"`
	S3Prefix   string `koanf:"s3_prefix"`
}

// RateLimitConfig — ограничение частоты запросов к /api/admin.
type RateLimitConfig struct {
	Requests int           `koanf:"requests" validate:"min=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

// CORSConfig — разрешённые источники для /api/admin.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DephealthConfig — мониторинг внешних API через topologymetrics.
type DephealthConfig struct {
	Enabled       bool          `koanf:"enabled"`
	CheckInterval time.Duration `koanf:"check_interval" validate:"gt=0"`
	Group         string        `koanf:"group" validate:"required"`
	Name          string        `koanf:"name"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			MediaDir:  "static/media",
			SelfieDir: "static/selfies",
			DataDir:   "data",
			LogsDir:   "logs",
		},
		Upload: UploadConfig{
			MaxImageBytes:  10 << 20,
			MaxVideoBytes:  100 << 20,
			FetchTimeout:   30 * time.Second,
			FetchUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
		Weather: WeatherConfig{
			Location: "Paris,FR",
			URL:      "https://api.openweathermap.org/data/2.5/weather",
			Timeout:  5 * time.Second,
		},
		Tide: TideConfig{
			Lat:     43.4832,
			Lon:     -1.5586,
			URL:     "https://www.worldtides.info/api/v3",
			Timeout: 10 * time.Second,
		},
		Music: MusicConfig{
			ChartURL: "https://api.deezer.com/chart/0/tracks?limit=50",
			Timeout:  5 * time.Second,
		},
		DJ: DJConfig{
			URL:     "http://localhost:8001",
			Timeout: 5 * time.Second,
		},
		Selfie: SelfieConfig{
			CacheTTL:     time.Minute,
			CacheSize:    128,
			DefaultLimit: 3,
			KeepMonths:   6,
		},
		Cleanup: CleanupConfig{
			Interval: 24 * time.Hour,
			Days:     30,
			Auto:     false,
		},
		Database: DatabaseConfig{
			MaxConns: 4,
		},
		Backup: BackupConfig{
			Dir:  "data/backups",
			Keep: 10,
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Dephealth: DephealthConfig{
			Enabled:       false,
			CheckInterval: time.Minute,
			Group:         "teaser",
		},
	}
}

// Load загружает конфигурацию: значения по умолчанию, затем YAML-файл
// (TEASER_CONFIG_FILE или ./config.yaml, если существует), затем переменные окружения.
func Load() (*Config, error) {
	path := os.Getenv(ConfigFileEnvVar)
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return LoadFile(path)
}

// LoadFile загружает конфигурацию с явным путём к YAML-файлу (пустой путь — без файла).
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("загрузка значений по умолчанию: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("загрузка файла %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("загрузка переменных окружения: %w", err)
	}

	// CORS-источники из окружения приходят строкой через запятую.
	if raw, ok := k.Get("cors.allowed_origins").(string); ok {
		if err := k.Set("cors.allowed_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("cors.allowed_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransformFunc преобразует TEASER_WEATHER_API_KEY в weather.api_key:
// первый сегмент после префикса — секция, остаток — ключ.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config_file" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	return section + "." + rest
}

// validate проверяет теги validator и перекрёстные ограничения.
func (c *Config) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: недопустимое значение %v (правило %s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("валидация конфигурации: %w", err)
	}

	level, err := parseLogLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	c.Log.SlogLevel = level

	if c.Upload.MaxVideoBytes < c.Upload.MaxImageBytes {
		return fmt.Errorf("upload.max_video_bytes: значение %d должно быть >= upload.max_image_bytes (%d)",
			c.Upload.MaxVideoBytes, c.Upload.MaxImageBytes)
	}

	if c.Backup.S3Bucket != "" && c.Backup.S3Region == "" {
		return fmt.Errorf("backup.s3_region: обязателен при заданном backup.s3_bucket")
	}

	return nil
}

// ActivityFile — путь к журналу действий администратора.
func (c *Config) ActivityFile() string {
	return filepath.Join(c.Storage.DataDir, "activity.json")
}

// SettingsFile — путь к JSON-файлу настроек (используется без PostgreSQL).
func (c *Config) SettingsFile() string {
	return filepath.Join(c.Storage.DataDir, "config.json")
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// Если задан log.file, вывод дублируется в файл.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel,
	}

	var out io.Writer = os.Stdout
	var fileErr error
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			fileErr = err
		} else if f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			fileErr = err
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	if fileErr != nil {
		logger.Warn("Не удалось открыть файл логов, вывод только в stdout",
			slog.String("file", cfg.Log.File),
			slog.String("error", fileErr.Error()),
		)
	}
	return logger
}

// --- Вспомогательные функции ---

// splitList разбивает строку через запятую, отбрасывая пустые элементы.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
