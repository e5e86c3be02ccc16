// Пакет handlers — HTTP-обработчики страниц: экран тизера и админка.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/MiotyRan/Leashbot/internal/activity"
	"github.com/MiotyRan/Leashbot/internal/config"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/service"
	"github.com/MiotyRan/Leashbot/internal/settings"
	"github.com/MiotyRan/Leashbot/internal/stats"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
	"github.com/MiotyRan/Leashbot/internal/ui/pages"
)

// adminActivityLimit — записей журнала на странице админки.
const adminActivityLimit = 15

// HealthReporter — результаты проверок зависимостей по имени.
type HealthReporter interface {
	HealthByName() map[string]bool
}

// PageDeps — источники данных страниц.
type PageDeps struct {
	Media    *service.MediaService
	Settings *settings.Service
	Selfies  *selfie.Store
	Activity *activity.Log
	Stats    *stats.Aggregator
	Weather  *external.WeatherClient
	Tide     *external.TideClient
	Music    *external.MusicClient
	DJ       *external.DJClient
	Bundle   *i18n.Bundle
	Health   HealthReporter
}

// PageHandler — обработчик страниц.
type PageHandler struct {
	deps   PageDeps
	logger *slog.Logger
}

// NewPageHandler создаёт PageHandler.
func NewPageHandler(deps PageDeps, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		deps:   deps,
		logger: logger.With(slog.String("component", "ui.pages")),
	}
}

// HandleTeaser обрабатывает GET / — экран тизера.
// Ошибки источников не ломают страницу: карточка остаётся с запасными данными.
func (h *PageHandler) HandleTeaser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rt := h.runtime(ctx)

	data := pages.TeaserData{
		Lang:           i18n.LangFromContext(ctx),
		Bundle:         h.deps.Bundle,
		Cocktail:       pages.DefaultCocktail,
		Zones:          h.zones(ctx),
		CarouselSpeed:  5,
		AutoPlayVideos: true,
		VideoVolume:    0.5,
		WeatherRefresh: 3600,
		MusicRefresh:   180,
		TideRefresh:    3600,
	}

	wq := external.WeatherQuery{}
	tq := external.TideQuery{}
	selfieCount := 3
	if rt != nil {
		data.CarouselSpeed = rt.CarouselSpeed
		data.AutoPlayVideos = rt.AutoPlayVideos
		data.VideoVolume = rt.VideoVolume
		data.WeatherRefresh = rt.WeatherRefresh
		data.MusicRefresh = rt.MusicRefresh
		data.TideRefresh = rt.TideRefresh
		wq.APIKey, wq.Location = rt.WeatherAPIKey, rt.WeatherLocation
		tq.APIKey, tq.Lat, tq.Lon = rt.TideAPIKey, &rt.TideLat, &rt.TideLon
		if rt.SelfieCount > 0 {
			selfieCount = rt.SelfieCount
		}
	}

	data.Weather = h.deps.Weather.Current(ctx, wq)
	data.Tide = h.deps.Tide.Next(ctx, tq)
	data.Music = h.deps.Music.NowPlaying(ctx)

	selfies, err := h.deps.Selfies.Latest(selfieCount, "")
	if err != nil {
		h.logger.Warn("Не удалось получить последние селфи", slog.String("error", err.Error()))
	}
	data.Selfies = selfies

	h.render(w, r, "teaser", pages.Teaser(data))
}

// HandleAdmin обрабатывает GET /admin/teaser — страница администрирования.
func (h *PageHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totals, err := h.deps.Stats.Totals()
	if err != nil {
		h.logger.Warn("Не удалось посчитать статистику", slog.String("error", err.Error()))
	}

	data := pages.AdminData{
		Lang:     i18n.LangFromContext(ctx),
		Bundle:   h.deps.Bundle,
		Version:  config.Version,
		Zones:    h.zones(ctx),
		Activity: h.deps.Activity.Recent(ctx, adminActivityLimit),
		Totals:   totals,
		Status: pages.AdminStatus{
			Weather: h.depUp("weather", h.deps.Weather.Available()),
			Tide:    h.depUp("tide", h.deps.Tide.Available()),
			Music:   h.depUp("music", h.deps.Music.Available()),
			Selfie:  h.deps.Selfies.TestConnectivity().Success,
			DJ:      h.deps.DJ.Endpoint() != "" && h.depUp("dj", true),
		},
	}

	h.render(w, r, "admin", pages.Admin(data))
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, page string, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Erreur de rendu de la page", http.StatusInternalServerError)
	}
}

// zones собирает зоны в порядке отображения с упорядоченными элементами.
func (h *PageHandler) zones(ctx context.Context) []pages.ZoneView {
	views := make([]pages.ZoneView, 0, len(model.AllZones))
	for _, z := range model.AllZones {
		view := pages.ZoneView{Zone: z, Title: z.Title(), Enabled: true}
		zs, err := h.deps.Settings.Zone(ctx, z)
		if err != nil {
			h.logger.Warn("Не удалось прочитать настройки зоны",
				slog.String("zone", string(z)),
				slog.String("error", err.Error()),
			)
		} else {
			view.Enabled = zs.Enabled
			if zs.Title != "" {
				view.Title = zs.Title
			}
		}

		items, err := h.deps.Media.List(z)
		if err != nil {
			h.logger.Warn("Не удалось прочитать медиа зоны",
				slog.String("zone", string(z)),
				slog.String("error", err.Error()),
			)
		}
		view.Items = model.OrderItems(items, zs.ContentOrder)
		views = append(views, view)
	}
	return views
}

func (h *PageHandler) runtime(ctx context.Context) *settings.Runtime {
	rt, err := h.deps.Settings.Runtime(ctx)
	if err != nil {
		h.logger.Warn("Не удалось прочитать настройки", slog.String("error", err.Error()))
		return nil
	}
	return rt
}

// depUp — результат breaker'а клиента, уточнённый проверкой dephealth, если она есть.
func (h *PageHandler) depUp(name string, breakerOK bool) bool {
	if !breakerOK {
		return false
	}
	if h.deps.Health == nil {
		return true
	}
	healthy, known := h.deps.Health.HealthByName()[name]
	return !known || healthy
}
