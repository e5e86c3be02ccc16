package i18n

import (
	"embed"
	"fmt"
	"log/slog"
)

//go:embed locales/*.json
var localeFS embed.FS

// Load создаёт Bundle и загружает встроенные каталоги fr и en.
func Load(logger *slog.Logger) (*Bundle, error) {
	bundle := NewBundle(logger)
	for _, lang := range []string{"fr", "en"} {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := localeFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}
		if err := bundle.LoadMessages(lang, data); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}
