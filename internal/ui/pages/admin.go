package pages

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/stats"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
)

// AdminStatus — доступность интеграций.
type AdminStatus struct {
	Weather bool
	Tide    bool
	Music   bool
	Selfie  bool
	DJ      bool
}

// AdminData — данные страницы администрирования.
type AdminData struct {
	Lang     string
	Bundle   *i18n.Bundle
	Version  string
	Zones    []ZoneView
	Activity []model.ActivityView
	Totals   *stats.Totals
	Status   AdminStatus
}

// Admin — страница администрирования: зоны с медиа и формами загрузки,
// состояние интеграций, статистика хранилища и лента действий.
func Admin(data AdminData) templ.Component {
	title := func(ctx context.Context) string { return tr(ctx, data.Bundle, "admin.title") }
	return layout(data.Lang, title,
		"/static/css/admin.css", "/static/js/admin.js",
		func(ctx context.Context, h *htmlWriter) {
			t := func(key string) string { return tr(ctx, data.Bundle, key) }

			h.raw("<header><h1>")
			h.text(t("admin.title"))
			h.raw("</h1><nav><a href=\"/\" style=\"color:#fff\">")
			h.text(t("admin.display"))
			h.raw("</a> ")
			for _, lang := range []string{"fr", "en"} {
				h.raw("<form method=\"post\" action=\"/set-language\"><input type=\"hidden\" name=\"lang\"")
				h.attr("value", lang)
				h.raw("><button type=\"submit\">")
				h.text(lang)
				h.raw("</button></form> ")
			}
			h.raw("<small>v")
			h.text(data.Version)
			h.raw("</small></nav></header><main><div>")

			h.raw("<section><h2>")
			h.text(t("admin.zones"))
			h.raw("</h2><div class=\"zones\">")
			for _, z := range data.Zones {
				adminZone(h, t, z)
			}
			h.raw("</div></section></div><div>")

			adminStatus(h, t, data.Status)
			adminStats(h, t, data.Totals)
			adminActions(h, t)
			adminActivity(h, t, data.Activity)

			h.raw("</div></main><div id=\"toast\"></div>")
		})
}

func adminZone(h *htmlWriter, t func(string) string, z ZoneView) {
	h.raw("<div class=\"zone-card\"><strong>")
	h.text(z.Title)
	h.raw("</strong> ")
	if !z.Enabled {
		h.raw("<span class=\"badge warning\">")
		h.text(t("admin.disabled"))
		h.raw("</span>")
	}
	h.raw("<span class=\"badge\">")
	h.text(strconv.Itoa(len(z.Items)) + " " + t("admin.files"))
	h.raw("</span>")

	if len(z.Items) == 0 {
		h.raw("<p class=\"muted\">")
		h.text(t("admin.empty_zone"))
		h.raw("</p>")
	} else {
		h.raw("<ul>")
		for _, item := range z.Items {
			key := item.ID
			if key == "" {
				key = item.Filename
			}
			h.raw("<li><span>")
			h.text(item.Title)
			h.raw(" <span class=\"muted\">")
			h.text(string(item.Kind))
			h.raw("</span></span><button type=\"button\"")
			h.attr("data-zone", string(z.Zone))
			h.attr("data-delete", key)
			h.attr("data-confirm", t("admin.confirm_delete"))
			h.raw(">")
			h.text(t("admin.delete"))
			h.raw("</button></li>")
		}
		h.raw("</ul>")
	}

	h.raw("<form class=\"inline\" data-upload enctype=\"multipart/form-data\"><input type=\"hidden\" name=\"zone\"")
	h.attr("value", string(z.Zone))
	h.raw("><input type=\"file\" name=\"files[]\" multiple accept=\"image/*,video/*\"><button type=\"submit\">")
	h.text(t("admin.upload"))
	h.raw("</button></form>")

	h.raw("<form class=\"inline\" data-add-url><input type=\"hidden\" name=\"zone\"")
	h.attr("value", string(z.Zone))
	h.raw("><input type=\"url\" name=\"url\" required placeholder=\"https://\"><input type=\"text\" name=\"title\"")
	h.attr("placeholder", t("admin.title_placeholder"))
	h.raw("><label><input type=\"checkbox\" name=\"download\"> ")
	h.text(t("admin.download"))
	h.raw("</label><button type=\"submit\">")
	h.text(t("admin.add_url"))
	h.raw("</button></form></div>")
}

func adminStatus(h *htmlWriter, t func(string) string, s AdminStatus) {
	h.raw("<section><h2>")
	h.text(t("admin.status"))
	h.raw("</h2><ul class=\"activity\">")
	rows := []struct {
		key string
		up  bool
	}{
		{"admin.weather_api", s.Weather},
		{"admin.tide_api", s.Tide},
		{"admin.music_api", s.Music},
		{"admin.selfie_module", s.Selfie},
		{"admin.dj_module", s.DJ},
	}
	for _, row := range rows {
		class, label := "badge offline", t("admin.offline")
		if row.up {
			class, label = "badge online", t("admin.online")
		}
		h.raw("<li>")
		h.text(t(row.key))
		h.raw(" <span")
		h.attr("class", class)
		h.raw(">")
		h.text(label)
		h.raw("</span></li>")
	}
	h.raw("</ul></section>")
}

func adminStats(h *htmlWriter, t func(string) string, totals *stats.Totals) {
	h.raw("<section><h2>")
	h.text(t("admin.stats"))
	h.raw("</h2>")
	if totals == nil {
		h.raw("</section>")
		return
	}
	h.raw("<div class=\"stats\">")
	cells := []struct {
		key    string
		bucket stats.Bucket
	}{
		{"admin.images", totals.Images},
		{"admin.videos", totals.Videos},
		{"admin.selfies", totals.Selfies},
	}
	for _, c := range cells {
		h.raw("<div>")
		h.text(t(c.key))
		h.raw("<strong>")
		h.text(strconv.Itoa(c.bucket.Files))
		h.raw("</strong><span class=\"muted\">")
		h.text(strconv.FormatFloat(c.bucket.MB, 'f', -1, 64) + " MB")
		h.raw("</span></div>")
	}
	h.raw("<div>")
	h.text(t("admin.total"))
	h.raw("<strong>")
	h.text(strconv.Itoa(totals.TotalFiles) + " " + t("admin.files"))
	h.raw("</strong><span class=\"muted\">")
	h.text(strconv.FormatFloat(totals.TotalMB, 'f', -1, 64) + " MB")
	h.raw("</span></div></div></section>")
}

func adminActions(h *htmlWriter, t func(string) string) {
	h.raw("<section><h2>")
	h.text(t("admin.actions"))
	h.raw("</h2><div class=\"inline\">")
	buttons := []struct {
		action, key, confirm string
	}{
		{"test-selfie", "admin.test_selfie", ""},
		{"test-dj", "admin.test_dj", ""},
		{"cleanup", "admin.cleanup", ""},
		{"backup", "admin.backup", ""},
		{"reset", "admin.reset", "admin.confirm_reset"},
	}
	for _, b := range buttons {
		h.raw("<button type=\"button\"")
		h.attr("data-action", b.action)
		if b.confirm != "" {
			h.attr("data-confirm", t(b.confirm))
		}
		h.raw(">")
		h.text(t(b.key))
		h.raw("</button> ")
	}
	h.raw("</div></section>")
}

func adminActivity(h *htmlWriter, t func(string) string, items []model.ActivityView) {
	h.raw("<section><h2>")
	h.text(t("admin.activity"))
	h.raw("</h2>")
	if len(items) == 0 {
		h.raw("<p class=\"muted\">")
		h.text(t("admin.no_activity"))
		h.raw("</p></section>")
		return
	}
	h.raw("<ul class=\"activity\">")
	for _, a := range items {
		h.raw("<li><i")
		h.attr("class", "fas "+a.Icon)
		h.raw("></i> <span")
		h.attr("class", "badge "+a.Style)
		h.raw(">")
		h.text(string(a.Type))
		h.raw("</span> ")
		h.text(a.Message)
		h.raw("<div class=\"when\">")
		h.text(a.TimeAgo)
		h.raw("</div></li>")
	}
	h.raw("</ul></section>")
}
