package pages

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
)

// Cocktail — промо-карточка коктейля.
type Cocktail struct {
	Nom         string
	Description string
	Image       string
}

// DefaultCocktail — коктейль, который показывает экран.
var DefaultCocktail = Cocktail{
	Nom:         "Mojito IA",
	Description: "Rhum, menthe, citron vert",
	Image:       "cocktail.jpg",
}

// TeaserData — данные экрана тизера.
type TeaserData struct {
	Lang     string
	Bundle   *i18n.Bundle
	Weather  external.Weather
	Music    *external.Track
	Tide     external.Tide
	Cocktail Cocktail
	Zones    []ZoneView
	Selfies  []model.SelfieItem

	CarouselSpeed  int
	AutoPlayVideos bool
	VideoVolume    float64
	WeatherRefresh int
	MusicRefresh   int
	TideRefresh    int
}

// Teaser — страница экрана. Левая колонка: зоны left1..left3; центр: центральная
// зона; правая колонка: часы, погода, прилив, музыка, коктейль, селфи.
func Teaser(data TeaserData) templ.Component {
	title := func(ctx context.Context) string { return tr(ctx, data.Bundle, "teaser.title") }
	return layout(data.Lang, title,
		"/static/css/teaser.css", "/static/js/teaser.js",
		func(ctx context.Context, h *htmlWriter) {
			h.raw("<div class=\"teaser\"")
			h.attr("data-carousel-speed", strconv.Itoa(data.CarouselSpeed))
			h.attr("data-auto-play", strconv.FormatBool(data.AutoPlayVideos))
			h.attr("data-video-volume", strconv.FormatFloat(data.VideoVolume, 'f', 2, 64))
			h.attr("data-weather-refresh", strconv.Itoa(data.WeatherRefresh))
			h.attr("data-music-refresh", strconv.Itoa(data.MusicRefresh))
			h.attr("data-tide-refresh", strconv.Itoa(data.TideRefresh))
			h.raw(">")

			var center *ZoneView
			h.raw("<div class=\"column\">")
			for i := range data.Zones {
				z := &data.Zones[i]
				if z.Zone == model.ZoneCenter {
					center = z
					continue
				}
				zoneBlock(h, *z, data.AutoPlayVideos)
			}
			h.raw("</div>")

			h.raw("<div class=\"column\">")
			if center != nil {
				zoneBlock(h, *center, data.AutoPlayVideos)
			}
			h.raw("</div>")

			h.raw("<div class=\"column\">")
			h.raw("<div class=\"card\"><div id=\"current-time\"></div><div id=\"current-date\"></div></div>")
			weatherCard(ctx, h, data)
			tideCard(ctx, h, data)
			musicCard(ctx, h, data)
			cocktailCard(ctx, h, data)
			selfieCard(ctx, h, data)
			h.raw("</div>")

			h.raw("</div>")
		})
}

func zoneBlock(h *htmlWriter, z ZoneView, autoPlay bool) {
	h.raw("<div class=\"card zone\"")
	h.attr("data-zone", string(z.Zone))
	h.attr("aria-label", z.Title)
	h.raw(">")
	if z.Enabled && len(z.Items) > 0 {
		h.raw("<div class=\"slide active\">")
		mediaElement(h, z.Items[0], autoPlay)
		h.raw("</div>")
	}
	h.raw("</div>")
}

func weatherCard(ctx context.Context, h *htmlWriter, data TeaserData) {
	h.raw("<div class=\"card\"><h2>")
	h.text(tr(ctx, data.Bundle, "teaser.weather"))
	h.raw("</h2><div class=\"weather\"><i id=\"weather-icon\"")
	h.attr("class", "fas "+data.Weather.Icone)
	h.raw("></i><div><div class=\"temp\" id=\"weather-temp\">")
	h.text(strconv.Itoa(data.Weather.Temperature) + "°C")
	h.raw("</div><div id=\"weather-city\">")
	h.text(data.Weather.Ville)
	h.raw("</div><div id=\"weather-desc\">")
	h.text(data.Weather.Description)
	h.raw("</div></div></div></div>")
}

func tideCard(ctx context.Context, h *htmlWriter, data TeaserData) {
	h.raw("<div class=\"card\"><h2>")
	h.text(tr(ctx, data.Bundle, "teaser.tide"))
	h.raw("</h2><div id=\"tide-text\">")
	h.text(data.Tide.Text)
	h.raw("</div></div>")
}

func musicCard(ctx context.Context, h *htmlWriter, data TeaserData) {
	h.raw("<div class=\"card\"><h2>")
	h.text(tr(ctx, data.Bundle, "teaser.now_playing"))
	h.raw("</h2><div class=\"music\">")
	if data.Music == nil {
		h.raw("<img id=\"track-cover\" src=\"/static/media/musique.jpg\" alt=\"\"><div><div class=\"track-title\" id=\"track-title\">")
		h.text(tr(ctx, data.Bundle, "teaser.no_music"))
		h.raw("</div><div class=\"track-artist\" id=\"track-artist\"></div></div></div>")
		h.raw("<audio id=\"track-preview\" controls></audio></div>")
		return
	}
	cover := data.Music.Cover
	if cover == "" {
		cover = "/static/media/musique.jpg"
	}
	h.raw("<img id=\"track-cover\"")
	h.url("src", cover)
	h.attr("alt", data.Music.Titre)
	h.raw("><div><div class=\"track-title\" id=\"track-title\">")
	h.text(data.Music.Titre)
	h.raw("</div><div class=\"track-artist\" id=\"track-artist\">")
	h.text(data.Music.Artiste)
	h.raw("</div></div></div><audio id=\"track-preview\" controls")
	if data.Music.Preview != "" {
		h.url("src", data.Music.Preview)
		h.raw(" style=\"display:block\"")
	}
	h.raw("></audio></div>")
}

func cocktailCard(ctx context.Context, h *htmlWriter, data TeaserData) {
	c := data.Cocktail
	h.raw("<div class=\"card cocktail\"><h2>")
	h.text(tr(ctx, data.Bundle, "teaser.cocktail"))
	h.raw("</h2><img")
	h.url("src", "/static/media/"+c.Image)
	h.attr("alt", c.Nom)
	h.raw("><strong>")
	h.text(c.Nom)
	h.raw("</strong><div>")
	h.text(c.Description)
	h.raw("</div></div>")
}

func selfieCard(ctx context.Context, h *htmlWriter, data TeaserData) {
	h.raw("<div class=\"card\"><h2>")
	h.text(tr(ctx, data.Bundle, "teaser.selfies"))
	h.raw("</h2><div class=\"selfies\" id=\"selfies\">")
	for _, s := range data.Selfies {
		h.raw("<figure><img")
		h.url("src", s.Path)
		if s.ClientName != nil {
			h.attr("alt", *s.ClientName)
		} else {
			h.attr("alt", "")
		}
		h.raw("><figcaption>")
		h.text(s.DisplayTime)
		h.raw("</figcaption></figure>")
	}
	h.raw("</div></div>")
}
