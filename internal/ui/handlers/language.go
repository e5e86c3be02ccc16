// language.go — переключение языка страниц.
package handlers

import (
	"net/http"
	"time"

	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
)

// HandleSetLanguage обрабатывает POST /set-language.
// Ставит cookie "lang" ("fr" или "en", из формы или query) и возвращает на Referer.
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if lang == "" {
		lang = r.URL.Query().Get("lang")
	}
	if lang != "fr" && lang != "en" {
		lang = i18n.DefaultLang
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})

	referer := r.Header.Get("Referer")
	if referer == "" {
		referer = "/admin/teaser"
	}
	http.Redirect(w, r, referer, http.StatusSeeOther)
}
