// Пакет pages — templ-компоненты страниц: экран тизера и админка.
package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
)

// ZoneView — зона с элементами карусели для рендеринга.
type ZoneView struct {
	Zone    model.Zone
	Title   string
	Enabled bool
	Items   []model.MediaItem
}

// htmlWriter пишет разметку и запоминает первую ошибку записи.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr — атрибут с экранированным значением.
func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + "=\"" + templ.EscapeString(value) + "\"")
}

// url — атрибут-ссылка; небезопасные схемы (javascript: и т.п.) отбрасываются.
func (h *htmlWriter) url(name, value string) {
	h.attr(name, string(templ.URL(value)))
}

// layout — общий каркас HTML-документа.
func layout(lang string, title func(ctx context.Context) string, stylesheet, script string, body func(ctx context.Context, h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<!DOCTYPE html><html")
		h.attr("lang", lang)
		h.raw("><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>")
		h.text(title(ctx))
		h.raw("</title>")
		h.raw("<link rel=\"stylesheet\" href=\"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css\">")
		h.raw("<link rel=\"stylesheet\"")
		h.attr("href", stylesheet)
		h.raw("></head><body>")
		body(ctx, h)
		h.raw("<script")
		h.attr("src", script)
		h.raw("></script></body></html>")
		return h.err
	})
}

// tr — перевод по языку из контекста; nil-Bundle возвращает ключ.
func tr(ctx context.Context, b *i18n.Bundle, key string) string {
	return b.T(ctx, key)
}

// mediaElement выводит один элемент карусели.
func mediaElement(h *htmlWriter, item model.MediaItem, autoPlay bool) {
	switch item.Kind {
	case model.KindVideo:
		h.raw("<video muted loop playsinline")
		if autoPlay {
			h.raw(" autoplay")
		}
		h.url("src", item.Src)
		h.raw("></video>")
	case model.KindURL:
		// Прямая ссылка на файл выводится как файл, страницы и плееры — во iframe.
		if direct, ok := model.DirectURLKind(item.Src); ok && direct == item.DetectedKind {
			mediaElement(h, model.MediaItem{Kind: direct, Src: item.Src, Title: item.Title}, autoPlay)
			return
		}
		h.raw("<iframe loading=\"lazy\"")
		h.url("src", item.Src)
		h.attr("title", item.Title)
		h.raw("></iframe>")
	default:
		h.raw("<img")
		h.url("src", item.Src)
		h.attr("alt", item.Title)
		h.raw(">")
	}
}
