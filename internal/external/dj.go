package external

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DJClient проверяет доступность модуля DJ/Jukebox (GET <url>/api/status).
type DJClient struct {
	c          *client
	defaultURL string
}

// NewDJClient создаёт клиент проверки DJ. httpClient может быть nil.
func NewDJClient(defaultURL string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *DJClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DJClient{
		c:          newClient("dj", timeout, httpClient, logger),
		defaultURL: normalizeURL(defaultURL),
	}
}

// Endpoint — адрес статуса DJ по умолчанию.
func (d *DJClient) Endpoint() string {
	if d.defaultURL == "" {
		return ""
	}
	return d.defaultURL + "/api/status"
}

// Status запрашивает статус модуля по baseURL (пусто — адрес из настроек).
// Пустое тело ответа даёт {"connected": true}.
func (d *DJClient) Status(ctx context.Context, baseURL string) (map[string]any, error) {
	if baseURL == "" {
		baseURL = d.defaultURL
	}
	var status map[string]any
	if err := d.c.getJSONDirect(ctx, normalizeURL(baseURL)+"/api/status", &status); err != nil {
		d.c.logger.Warn("Модуль DJ недоступен",
			slog.String("url", baseURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if status == nil {
		status = map[string]any{"connected": true}
	}
	return status, nil
}
