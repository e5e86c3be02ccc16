package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindURL
	kindZones
)

type field struct {
	kind     fieldKind
	min, max float64
}

// schema — допустимые ключи и диапазоны.
var schema = map[string]field{
	"weather_api_key":  {kind: kindString},
	"weather_location": {kind: kindString},
	"weather_refresh":  {kind: kindInt, min: 1, max: 3600},
	"tide_api_key":     {kind: kindString},
	"tide_lat":         {kind: kindFloat, min: -90, max: 90},
	"tide_lon":         {kind: kindFloat, min: -180, max: 180},
	"tide_refresh":     {kind: kindInt, min: 1, max: 86400},
	"carousel_speed":   {kind: kindInt, min: 1, max: 30},
	"auto_play_videos": {kind: kindBool},
	"video_volume":     {kind: kindFloat, min: 0, max: 1},
	"auto_cleanup":     {kind: kindBool},
	"cleanup_days":     {kind: kindInt, min: 1, max: 365},
	"debug":            {kind: kindBool},
	"selfie_path":      {kind: kindString},
	"selfie_count":     {kind: kindInt, min: 1, max: 10},
	"dj_url":           {kind: kindURL},
	"music_refresh":    {kind: kindInt, min: 1, max: 60},
	keyZones:           {kind: kindZones},
}

// aliases — альтернативные имена ключей из формы админки.
var aliases = map[string]string{
	"debug_mode": "debug",
}

// metaKeys — служебные поля, которые молча отбрасываются при сохранении.
var metaKeys = map[string]bool{
	"version":       true,
	"last_accessed": true,
	"last_updated":  true,
	"saved_at":      true,
}

// normalizeAll проверяет все ключи и приводит значения к типам схемы.
// Настройки зон сливаются с текущими, чтобы частичный набор зон не стирал остальные.
func (s *Service) normalizeAll(ctx context.Context, input Values) (Values, error) {
	out := make(Values, len(input))
	for rawKey, raw := range input {
		if metaKeys[rawKey] {
			continue
		}
		key := rawKey
		if alias, ok := aliases[rawKey]; ok {
			key = alias
		}
		f, ok := schema[key]
		if !ok {
			return nil, fmt.Errorf("%w: неизвестный ключ %q", ErrValidation, rawKey)
		}

		if f.kind == kindZones {
			zones, err := s.normalizeZones(ctx, raw)
			if err != nil {
				return nil, err
			}
			out[key] = zones
			continue
		}

		v, err := s.normalize(key, f, raw)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (s *Service) normalize(key string, f field, raw any) (any, error) {
	switch f.kind {
	case kindString:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s должен быть строкой", ErrValidation, key)
		}
		return strings.TrimSpace(str), nil

	case kindURL:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s должен быть строкой", ErrValidation, key)
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return str, nil
		}
		if err := s.validate.Var(str, "url"); err != nil {
			return nil, fmt.Errorf("%w: %s: недопустимый URL %q", ErrValidation, key, str)
		}
		return str, nil

	case kindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %s должен быть true/false", ErrValidation, key)
			}
			return b, nil
		}
		return nil, fmt.Errorf("%w: %s должен быть true/false", ErrValidation, key)

	case kindInt, kindFloat:
		n, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s должен быть числом", ErrValidation, key)
		}
		if f.kind == kindInt && n != math.Trunc(n) {
			return nil, fmt.Errorf("%w: %s должен быть целым", ErrValidation, key)
		}
		if n < f.min || n > f.max {
			return nil, fmt.Errorf("%w: %s вне диапазона [%g, %g]: %g", ErrValidation, key, f.min, f.max, n)
		}
		if f.kind == kindInt {
			return int(n), nil
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrValidation, key)
}

// normalizeZones разбирает объект зон, проверяет имена и значения,
// сливает с текущими настройками.
func (s *Service) normalizeZones(ctx context.Context, raw any) (map[model.Zone]model.ZoneSettings, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: zones: %v", ErrValidation, err)
	}
	var input map[string]model.ZoneSettings
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("%w: zones должен быть объектом зона → настройки", ErrValidation)
	}

	zones, err := s.zones(ctx)
	if err != nil {
		return nil, err
	}
	for name, zs := range input {
		zone, err := model.ParseZone(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := s.validate.Struct(zs); err != nil {
			return nil, fmt.Errorf("%w: зона %s: %s", ErrValidation, name, describe(err))
		}
		if zs.Title == "" {
			zs.Title = zone.Title()
		}
		zones[zone] = zs
	}
	return zones, nil
}

// toFloat принимает число из JSON или строку формы.
func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("неподдерживаемый тип %T", raw)
}

// describe — первое нарушение validator в читаемом виде.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s: недопустимое значение %v (правило %s)", fe.Field(), fe.Value(), fe.Tag())
	}
	return err.Error()
}
