package external

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Track — трек «сейчас играет».
type Track struct {
	Titre   string `json:"titre"`
	Artiste string `json:"artiste"`
	Cover   string `json:"cover"`
	Preview string `json:"preview"`
}

// MusicOptions — параметры чарта Deezer.
type MusicOptions struct {
	ChartURL string
	Timeout  time.Duration
}

// MusicClient — адаптер чарта Deezer.
type MusicClient struct {
	c        *client
	chartURL string
	pick     func(n int) int
}

// NewMusicClient создаёт адаптер чарта. httpClient может быть nil.
func NewMusicClient(opts MusicOptions, httpClient *http.Client, logger *slog.Logger) *MusicClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &MusicClient{
		c:        newClient("music", opts.Timeout, httpClient, logger),
		chartURL: opts.ChartURL,
		pick:     rand.IntN,
	}
}

// Endpoint — адрес API для мониторинга зависимостей.
func (m *MusicClient) Endpoint() string {
	return m.chartURL
}

// Available — false, пока circuit breaker адаптера разомкнут.
func (m *MusicClient) Available() bool {
	return m.c.State() != gobreaker.StateOpen
}

type deezerChart struct {
	Data []struct {
		Title   string `json:"title"`
		Preview string `json:"preview"`
		Artist  struct {
			Name string `json:"name"`
		} `json:"artist"`
		Album struct {
			CoverSmall string `json:"cover_small"`
		} `json:"album"`
	} `json:"data"`
}

// NowPlaying возвращает случайный трек чарта. nil — чарт недоступен или пуст.
func (m *MusicClient) NowPlaying(ctx context.Context) *Track {
	var chart deezerChart
	if err := m.c.getJSON(ctx, m.chartURL, &chart); err != nil {
		m.c.fallback(err)
		return nil
	}
	if len(chart.Data) == 0 {
		m.c.fallback(fmt.Errorf("пустой чарт"))
		return nil
	}
	t := chart.Data[m.pick(len(chart.Data))]
	return &Track{
		Titre:   t.Title,
		Artiste: t.Artist.Name,
		Cover:   t.Album.CoverSmall,
		Preview: t.Preview,
	}
}
