package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"
)

// ErrMissingAPIKey — ключ API не задан.
var ErrMissingAPIKey = errors.New("не задан ключ API")

// Weather — погода для карточки экрана.
type Weather struct {
	Ville       string `json:"ville"`
	Temperature int    `json:"temperature"`
	Description string `json:"description"`
	Icone       string `json:"icone"`
}

// DefaultWeather — запасной ответ при любой ошибке.
func DefaultWeather() Weather {
	return Weather{
		Ville:       "Paris",
		Temperature: 23,
		Description: "Ensoleillé",
		Icone:       "fa-sun",
	}
}

// WeatherQuery — место запроса: координаты приоритетнее названия города.
// APIKey и Location переопределяют значения из конфигурации, если заданы.
type WeatherQuery struct {
	City     string
	Lat      *float64
	Lon      *float64
	APIKey   string
	Location string
}

// WeatherOptions — параметры OpenWeather.
type WeatherOptions struct {
	APIKey   string
	Location string
	URL      string
	Timeout  time.Duration
}

// WeatherProbe — результат проверки ключа из админки.
type WeatherProbe struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// WeatherClient — адаптер OpenWeather (текущая погода).
type WeatherClient struct {
	c        *client
	apiKey   string
	location string
	baseURL  string
}

// NewWeatherClient создаёт адаптер погоды. httpClient может быть nil.
func NewWeatherClient(opts WeatherOptions, httpClient *http.Client, logger *slog.Logger) *WeatherClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Location == "" {
		opts.Location = "Paris,FR"
	}
	return &WeatherClient{
		c:        newClient("weather", opts.Timeout, httpClient, logger),
		apiKey:   opts.APIKey,
		location: opts.Location,
		baseURL:  normalizeURL(opts.URL),
	}
}

// Endpoint — адрес API для мониторинга зависимостей.
func (w *WeatherClient) Endpoint() string {
	return w.baseURL
}

// Available — false, пока circuit breaker адаптера разомкнут.
func (w *WeatherClient) Available() bool {
	return w.c.State() != gobreaker.StateOpen
}

type owmResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current возвращает текущую погоду. Ошибки не возвращаются:
// при любой неудаче — DefaultWeather().
func (w *WeatherClient) Current(ctx context.Context, q WeatherQuery) Weather {
	apiKey := w.apiKey
	if q.APIKey != "" {
		apiKey = q.APIKey
	}
	if apiKey == "" {
		w.c.fallback(ErrMissingAPIKey)
		return DefaultWeather()
	}

	withCoords := q.Lat != nil && q.Lon != nil
	var data owmResponse
	if err := w.c.getJSON(ctx, w.buildURL(apiKey, q), &data); err != nil {
		w.c.fallback(err)
		return DefaultWeather()
	}
	if len(data.Weather) == 0 || data.Name == "" {
		w.c.fallback(fmt.Errorf("неполный ответ weather"))
		return DefaultWeather()
	}

	city := data.Name
	if withCoords && data.Sys.Country != "" {
		city = data.Name + ", " + data.Sys.Country
	}
	return Weather{
		Ville:       city,
		Temperature: int(math.Round(data.Main.Temp)),
		Description: capitalize(data.Weather[0].Description),
		Icone:       "fa-" + WeatherIcon(data.Weather[0].Icon),
	}
}

// Probe проверяет ключ и место без circuit breaker и без запасного ответа.
func (w *WeatherClient) Probe(ctx context.Context, apiKey, location string) (*WeatherProbe, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var data owmResponse
	if err := w.c.getJSONDirect(ctx, w.buildURL(apiKey, WeatherQuery{City: location}), &data); err != nil {
		return nil, err
	}
	probe := &WeatherProbe{
		Location:    data.Name,
		Temperature: data.Main.Temp,
		Humidity:    data.Main.Humidity,
		WindSpeed:   data.Wind.Speed,
	}
	if len(data.Weather) > 0 {
		probe.Description = data.Weather[0].Description
	}
	return probe, nil
}

func (w *WeatherClient) buildURL(apiKey string, q WeatherQuery) string {
	params := url.Values{}
	switch {
	case q.Lat != nil && q.Lon != nil:
		params.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(*q.Lon, 'f', -1, 64))
	case q.City != "":
		params.Set("q", q.City)
	case q.Location != "":
		params.Set("q", q.Location)
	default:
		params.Set("q", w.location)
	}
	params.Set("appid", apiKey)
	params.Set("units", "metric")
	params.Set("lang", "fr")
	return w.baseURL + "?" + params.Encode()
}

var weatherIcons = map[string]string{
	"01d": "sun", "01n": "moon",
	"02d": "cloud-sun", "02n": "cloud-moon",
	"03d": "cloud", "03n": "cloud",
	"04d": "cloud-meatball", "04n": "cloud-meatball",
	"09d": "cloud-rain", "09n": "cloud-rain",
	"10d": "umbrella", "10n": "umbrella",
	"11d": "bolt", "11n": "bolt",
	"13d": "snowflake", "13n": "snowflake",
	"50d": "smog", "50n": "smog",
}

// WeatherIcon переводит код иконки OpenWeather в имя Font Awesome (без "fa-").
// Неизвестный код: поиск по двум первым символам, затем "cloud".
func WeatherIcon(code string) string {
	if icon, ok := weatherIcons[code]; ok {
		return icon
	}
	if len(code) >= 2 {
		if icon, ok := weatherIcons[code[:2]]; ok {
			return icon
		}
		// В карте нет ключей из двух символов, ищем любую иконку с тем же префиксом.
		for _, suffix := range []string{"d", "n"} {
			if icon, ok := weatherIcons[code[:2]+suffix]; ok {
				return icon
			}
		}
	}
	return "cloud"
}

// capitalize: первая буква заглавная, остальные строчные.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
