// Пакет settings — конфигурация экрана, редактируемая из админки:
// значения по умолчанию, слияние с сохранёнными ключами, валидация,
// черновик, настройки зон, резервные копии, восстановление и сброс.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/repository"
)

var (
	// ErrValidation — недопустимый ключ или значение.
	ErrValidation = errors.New("ошибка валидации настроек")
	// ErrNotFound — резервная копия не найдена.
	ErrNotFound = errors.New("резервная копия не найдена")
)

// Version — версия формата конфигурации и резервных копий.
const Version = "1.0"

// Служебные ключи хранилища.
const (
	keyZones = "zones"
	keyDraft = "draft"
)

// Values — конфигурация в виде плоского набора ключей (как её видит админка).
type Values map[string]any

// Recorder — получатель записей журнала действий.
type Recorder interface {
	Record(typ model.ActivityType, message, details string, sizeMB *float64)
}

// Defaults — значения, которые берутся из конфигурации процесса.
type Defaults struct {
	WeatherAPIKey   string
	WeatherLocation string
	TideAPIKey      string
	TideLat         float64
	TideLon         float64
	AutoCleanup     bool
	CleanupDays     int
	SelfiePath      string
	SelfieCount     int
	DJURL           string
}

// Runtime — типизированный снимок действующей конфигурации.
type Runtime struct {
	WeatherAPIKey   string                            `json:"weather_api_key"`
	WeatherLocation string                            `json:"weather_location"`
	WeatherRefresh  int                               `json:"weather_refresh"`
	TideAPIKey      string                            `json:"tide_api_key"`
	TideLat         float64                           `json:"tide_lat"`
	TideLon         float64                           `json:"tide_lon"`
	TideRefresh     int                               `json:"tide_refresh"`
	CarouselSpeed   int                               `json:"carousel_speed"`
	AutoPlayVideos  bool                              `json:"auto_play_videos"`
	VideoVolume     float64                           `json:"video_volume"`
	AutoCleanup     bool                              `json:"auto_cleanup"`
	CleanupDays     int                               `json:"cleanup_days"`
	Debug           bool                              `json:"debug"`
	SelfiePath      string                            `json:"selfie_path"`
	SelfieCount     int                               `json:"selfie_count"`
	DJURL           string                            `json:"dj_url"`
	MusicRefresh    int                               `json:"music_refresh"`
	Zones           map[model.Zone]model.ZoneSettings `json:"zones"`
}

// Options — параметры резервных копий.
type Options struct {
	BackupDir string
	Keep      int
}

// Service — сервис конфигурации экрана.
type Service struct {
	repo      repository.SettingsRepository
	defaults  Defaults
	backupDir string
	keep      int
	validate  *validator.Validate
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт сервис конфигурации.
func New(repo repository.SettingsRepository, defaults Defaults, opts Options, recorder Recorder, logger *slog.Logger) *Service {
	if opts.Keep <= 0 {
		opts.Keep = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		defaults:  defaults,
		backupDir: opts.BackupDir,
		keep:      opts.Keep,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		recorder:  recorder,
		logger:    logger.With(slog.String("component", "settings")),
		now:       time.Now,
	}
}

// DefaultZones — настройки зон по умолчанию.
func DefaultZones() map[model.Zone]model.ZoneSettings {
	zones := make(map[model.Zone]model.ZoneSettings, len(model.AllZones))
	for _, z := range model.AllZones {
		zones[z] = model.ZoneSettings{Title: z.Title(), Enabled: true, Duration: 5}
	}
	return zones
}

// defaultValues — конфигурация по умолчанию.
func (s *Service) defaultValues() Values {
	d := s.defaults
	if d.WeatherLocation == "" {
		d.WeatherLocation = "Paris,FR"
	}
	if d.CleanupDays <= 0 {
		d.CleanupDays = 30
	}
	if d.SelfiePath == "" {
		d.SelfiePath = "/static/selfies/"
	}
	if d.SelfieCount <= 0 {
		d.SelfieCount = 3
	}
	return Values{
		"weather_api_key":  d.WeatherAPIKey,
		"weather_location": d.WeatherLocation,
		"weather_refresh":  300,
		"tide_api_key":     d.TideAPIKey,
		"tide_lat":         d.TideLat,
		"tide_lon":         d.TideLon,
		"tide_refresh":     3600,
		"carousel_speed":   5,
		"auto_play_videos": true,
		"video_volume":     0.3,
		"auto_cleanup":     d.AutoCleanup,
		"cleanup_days":     d.CleanupDays,
		"debug":            false,
		"selfie_path":      d.SelfiePath,
		"selfie_count":     d.SelfieCount,
		"dj_url":           d.DJURL,
		"music_refresh":    5,
		keyZones:           DefaultZones(),
	}
}

// Get возвращает значения по умолчанию, перекрытые сохранёнными.
// Черновик в результат не входит.
func (s *Service) Get(ctx context.Context) (Values, error) {
	vals := s.defaultValues()

	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}

	for _, st := range stored {
		switch st.Key {
		case keyDraft:
			continue
		case keyZones:
			var zones map[model.Zone]model.ZoneSettings
			if err := json.Unmarshal([]byte(st.Value), &zones); err != nil {
				s.logger.Warn("Повреждённые настройки зон, используются значения по умолчанию",
					slog.String("error", err.Error()),
				)
				continue
			}
			merged := vals[keyZones].(map[model.Zone]model.ZoneSettings)
			for z, zs := range zones {
				if _, err := model.ParseZone(string(z)); err == nil {
					merged[z] = zs
				}
			}
		default:
			var v any
			if err := json.Unmarshal([]byte(st.Value), &v); err != nil {
				v = st.Value
			}
			vals[st.Key] = v
		}
	}

	vals["version"] = Version
	vals["last_accessed"] = s.now().Format(time.RFC3339)
	return vals, nil
}

// Runtime возвращает действующую конфигурацию в типизированном виде.
func (s *Service) Runtime(ctx context.Context) (*Runtime, error) {
	vals, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(vals)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации настроек: %w", err)
	}
	var rt Runtime
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("ошибка разбора настроек: %w", err)
	}
	return &rt, nil
}

// SaveResult — итог сохранения.
type SaveResult struct {
	SavedItems []string `json:"saved_items"`
	Backup     string   `json:"backup,omitempty"`
}

// SaveAll валидирует и сохраняет набор ключей, затем пишет резервную копию
// полной конфигурации. Любая ошибка валидации отклоняет весь набор до записи.
func (s *Service) SaveAll(ctx context.Context, input Values) (*SaveResult, error) {
	normalized, err := s.normalizeAll(ctx, input)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		data, err := json.Marshal(normalized[k])
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации %s: %w", k, err)
		}
		if err := s.repo.Set(ctx, k, string(data)); err != nil {
			return nil, fmt.Errorf("ошибка сохранения %s: %w", k, err)
		}
	}

	result := &SaveResult{SavedItems: keys}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	name, err := s.createBackup(current)
	if err != nil {
		// Резервная копия не блокирует сохранение.
		s.logger.Warn("Не удалось создать резервную копию",
			slog.String("error", err.Error()),
		)
	}
	result.Backup = name

	s.logger.Info("Конфигурация сохранена", slog.Int("keys", len(keys)))
	s.record(model.ActivityConfig, "Configuration sauvegardée",
		fmt.Sprintf("%d paramètre(s) mis à jour", len(keys)))
	return result, nil
}

// SaveDraft сохраняет черновик целиком под отдельным ключом, не трогая
// действующие значения. Валидация не выполняется.
func (s *Service) SaveDraft(ctx context.Context, draft Values) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("%w: черновик не сериализуется: %v", ErrValidation, err)
	}
	if err := s.repo.Set(ctx, keyDraft, string(data)); err != nil {
		return fmt.Errorf("ошибка сохранения черновика: %w", err)
	}
	s.logger.Debug("Черновик сохранён", slog.Int("keys", len(draft)))
	return nil
}

// Draft возвращает сохранённый черновик или nil.
func (s *Service) Draft(ctx context.Context) (Values, error) {
	st, err := s.repo.Get(ctx, keyDraft)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения черновика: %w", err)
	}
	var draft Values
	if err := json.Unmarshal([]byte(st.Value), &draft); err != nil {
		return nil, fmt.Errorf("ошибка разбора черновика: %w", err)
	}
	return draft, nil
}

// Zone возвращает настройки зоны.
func (s *Service) Zone(ctx context.Context, zone model.Zone) (model.ZoneSettings, error) {
	zones, err := s.zones(ctx)
	if err != nil {
		return model.ZoneSettings{}, err
	}
	return zones[zone], nil
}

// SaveZone валидирует и сохраняет настройки одной зоны.
func (s *Service) SaveZone(ctx context.Context, zone model.Zone, zs model.ZoneSettings) error {
	if err := s.validate.Struct(zs); err != nil {
		return fmt.Errorf("%w: зона %s: %s", ErrValidation, zone, describe(err))
	}
	if zs.Title == "" {
		zs.Title = zone.Title()
	}

	zones, err := s.zones(ctx)
	if err != nil {
		return err
	}
	zones[zone] = zs

	data, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("ошибка сериализации зон: %w", err)
	}
	if err := s.repo.Set(ctx, keyZones, string(data)); err != nil {
		return fmt.Errorf("ошибка сохранения зоны %s: %w", zone, err)
	}

	s.logger.Info("Настройки зоны сохранены", slog.String("zone", string(zone)))
	s.record(model.ActivityConfig, "Zone "+string(zone)+" configurée", zs.Title)
	return nil
}

// Reset создаёт резервную копию текущей конфигурации и удаляет все ключи.
func (s *Service) Reset(ctx context.Context) (string, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	name, err := s.createBackup(current)
	if err != nil {
		return "", fmt.Errorf("резервная копия перед сбросом: %w", err)
	}
	if err := s.repo.DeleteAll(ctx); err != nil {
		return "", fmt.Errorf("ошибка сброса настроек: %w", err)
	}

	s.logger.Info("Конфигурация сброшена к значениям по умолчанию", slog.String("backup", name))
	s.record(model.ActivityConfig, "Configuration réinitialisée", "Sauvegarde "+name)
	return name, nil
}

// zones — действующие настройки зон (по умолчанию + сохранённые).
func (s *Service) zones(ctx context.Context) (map[model.Zone]model.ZoneSettings, error) {
	zones := DefaultZones()
	st, err := s.repo.Get(ctx, keyZones)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zones, nil
		}
		return nil, fmt.Errorf("ошибка чтения настроек зон: %w", err)
	}
	var stored map[model.Zone]model.ZoneSettings
	if err := json.Unmarshal([]byte(st.Value), &stored); err != nil {
		s.logger.Warn("Повреждённые настройки зон", slog.String("error", err.Error()))
		return zones, nil
	}
	for z, zs := range stored {
		if _, err := model.ParseZone(string(z)); err == nil {
			zones[z] = zs
		}
	}
	return zones, nil
}

func (s *Service) record(typ model.ActivityType, message, details string) {
	if s.recorder != nil {
		s.recorder.Record(typ, message, details, nil)
	}
}
