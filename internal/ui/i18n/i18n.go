// Пакет i18n — локализация страниц и вычисляемых подписей.
// Язык по умолчанию — французский (экран и оператор площадки), запасной — английский.
// Язык запроса определяется middleware: cookie "lang" → Accept-Language → "fr".
package i18n

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/text/language"
)

// DefaultLang — язык, если запрос его не задаёт.
const DefaultLang = "fr"

// SupportedLanguages — поддерживаемые языки, первый — по умолчанию.
var SupportedLanguages = []language.Tag{
	language.French,
	language.English,
}

var matcher = language.NewMatcher(SupportedLanguages)

type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — каталоги переводов всех языков.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → translation
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]map[string]string),
		logger:   logger,
	}
}

// LoadMessages загружает плоский JSON-каталог {"key": "translation"} для языка.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	b.catalogs[lang] = messages
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод ключа. Поиск: lang → fr → en → сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, l := range []string{lang, DefaultLang, "en"} {
		if catalog, ok := b.catalogs[l]; ok {
			if msg, ok := catalog[key]; ok {
				return msg
			}
		}
	}
	return key
}

// Translatef — Translate с подстановкой аргументов.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	template := b.Translate(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

// formatFunc — fmt.Sprintf через переменную: формат-строки приходят из каталогов,
// go vet не может их проверить.
//
//nolint:govet
var formatFunc = fmt.Sprintf

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста. По умолчанию — DefaultLang.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// T переводит ключ на язык из контекста. nil-Bundle возвращает ключ.
func (b *Bundle) T(ctx context.Context, key string) string {
	if b == nil {
		return key
	}
	return b.Translate(LangFromContext(ctx), key)
}

// Tf — T с аргументами.
func (b *Bundle) Tf(ctx context.Context, key string, args ...any) string {
	if b == nil {
		if len(args) == 0 {
			return key
		}
		return formatFunc(key, args...)
	}
	return b.Translatef(LangFromContext(ctx), key, args...)
}

// MatchLanguage выбирает язык по заголовку Accept-Language: "fr" или "en".
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	if base.String() == "en" {
		return "en"
	}
	return DefaultLang
}
