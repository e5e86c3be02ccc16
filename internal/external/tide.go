package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Tide — ближайший прилив.
type Tide struct {
	Type string `json:"type"`
	Time string `json:"time"`
	Text string `json:"text"`
}

// TideQuery — переопределения запроса. Пустые поля — значения из конфигурации;
// координаты применяются только парой.
type TideQuery struct {
	APIKey string
	Lat    *float64
	Lon    *float64
}

// TideOptions — параметры WorldTides.
type TideOptions struct {
	APIKey  string
	Lat     float64
	Lon     float64
	URL     string
	Timeout time.Duration
}

// TideProbe — результат проверки из админки.
type TideProbe struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	NextTide string  `json:"next_tide"`
}

// TideClient — адаптер WorldTides v3 (экстремумы на 24 часа).
type TideClient struct {
	c       *client
	apiKey  string
	lat     float64
	lon     float64
	baseURL string
	now     func() time.Time
}

// NewTideClient создаёт адаптер приливов. httpClient может быть nil.
func NewTideClient(opts TideOptions, httpClient *http.Client, logger *slog.Logger) *TideClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &TideClient{
		c:       newClient("tide", opts.Timeout, httpClient, logger),
		apiKey:  opts.APIKey,
		lat:     opts.Lat,
		lon:     opts.Lon,
		baseURL: normalizeURL(opts.URL),
		now:     time.Now,
	}
}

// Endpoint — адрес API для мониторинга зависимостей.
func (t *TideClient) Endpoint() string {
	return t.baseURL
}

// Available — false, пока circuit breaker адаптера разомкнут.
func (t *TideClient) Available() bool {
	return t.c.State() != gobreaker.StateOpen
}

type worldTidesResponse struct {
	Status   int    `json:"status"`
	Error    string `json:"error"`
	Extremes []struct {
		Dt     int64   `json:"dt"`
		Height float64 `json:"height"`
		Type   string  `json:"type"`
	} `json:"extremes"`
}

// Next возвращает ближайший прилив. При любой ошибке — FallbackTide.
func (t *TideClient) Next(ctx context.Context, q TideQuery) Tide {
	la, lo := t.lat, t.lon
	if q.Lat != nil && q.Lon != nil {
		la, lo = *q.Lat, *q.Lon
	}
	apiKey := t.apiKey
	if q.APIKey != "" {
		apiKey = q.APIKey
	}
	now := t.now()

	if apiKey == "" {
		t.c.fallback(ErrMissingAPIKey)
		return FallbackTide(now, la, lo)
	}

	var data worldTidesResponse
	if err := t.c.getJSON(ctx, t.buildURL(apiKey, la, lo), &data); err != nil {
		t.c.fallback(err)
		return FallbackTide(now, la, lo)
	}

	tide, ok := firstExtremeAfter(data, now)
	if !ok {
		t.c.fallback(fmt.Errorf("нет экстремумов после %s", now.Format(time.RFC3339)))
		// Без экстремумов слоты считаются без смещения по координатам.
		return FallbackTide(now, 0, 0)
	}
	return tide
}

// Probe проверяет ключ и координаты без circuit breaker.
func (t *TideClient) Probe(ctx context.Context, apiKey string, lat, lon float64) (*TideProbe, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var data worldTidesResponse
	if err := t.c.getJSONDirect(ctx, t.buildURL(apiKey, lat, lon), &data); err != nil {
		return nil, err
	}
	if data.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, data.Error)
	}
	probe := &TideProbe{Lat: lat, Lon: lon}
	if tide, ok := firstExtremeAfter(data, t.now()); ok {
		probe.NextTide = tide.Text
	}
	return probe, nil
}

func (t *TideClient) buildURL(apiKey string, lat, lon float64) string {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("length", "86400")
	params.Set("datum", "LAT")
	params.Set("key", apiKey)
	return t.baseURL + "?extremes&" + params.Encode()
}

func firstExtremeAfter(data worldTidesResponse, now time.Time) (Tide, bool) {
	for _, e := range data.Extremes {
		at := time.Unix(e.Dt, 0).In(now.Location())
		if !at.After(now) {
			continue
		}
		typ := "basse"
		if e.Type == "High" {
			typ = "haute"
		}
		hm := at.Format("15h04")
		return Tide{Type: typ, Time: hm, Text: "Marée " + typ + " à " + hm}, true
	}
	return Tide{}, false
}

// FallbackTide — расчётный прилив: два слота в сутки (6h30 и 18h30),
// сдвинутые на int(lon*0.5) часов только для побережья Франции
// (-5 < lon < 5 и 42 < lat < 51). Первый слот позже текущего часа,
// иначе первый слот.
func FallbackTide(now time.Time, lat, lon float64) Tide {
	offset := 0
	if lon > -5 && lon < 5 && lat > 42 && lat < 51 {
		offset = int(lon * 0.5)
	}
	slots := []int{mod24(6 + offset), mod24(18 + offset)}

	next := slots[0]
	for _, h := range slots {
		if now.Hour() < h {
			next = h
			break
		}
	}
	hm := fmt.Sprintf("%02dh30", next)
	return Tide{Type: "haute", Time: hm, Text: "Marée haute à " + hm}
}

// mod24 — остаток по модулю 24, всегда неотрицательный.
func mod24(h int) int {
	return ((h % 24) + 24) % 24
}
