// Пакет external — адаптеры сторонних API экрана: погода (OpenWeather),
// приливы (WorldTides), музыкальный чарт (Deezer) и проверка модуля DJ.
// Каждый адаптер работает через собственный circuit breaker; любая ошибка,
// включая открытый breaker, даёт запасной результат.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrUpstream — сторонний API ответил неуспешным статусом.
var ErrUpstream = errors.New("ошибка стороннего API")

// maxResponseBytes — предел тела ответа стороннего API.
const maxResponseBytes = 2 << 20

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teaser_external_requests_total",
		Help: "Запросы к сторонним API по адаптеру и результату",
	}, []string{"adapter", "result"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teaser_external_fallbacks_total",
		Help: "Количество запасных ответов по адаптеру",
	}, []string{"adapter"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teaser_circuit_breaker_state",
		Help: "Состояние circuit breaker (0=closed, 1=half-open, 2=open)",
	}, []string{"adapter"})
)

// client — общий HTTP-клиент адаптера с circuit breaker.
type client struct {
	name       string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// newClient создаёт клиент адаптера. httpClient == nil — собственный клиент с timeout.
func newClient(name string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	log := logger.With(slog.String("component", name+"_client"))

	breakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		// Открываемся после 5 подряд неудачных запросов.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Отменённый клиентом запрос не говорит о состоянии провайдера.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Смена состояния circuit breaker",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &client{
		name:       name,
		httpClient: httpClient,
		cb:         cb,
		logger:     log,
	}
}

// getJSON выполняет GET через circuit breaker и декодирует JSON-ответ в out.
func (c *client) getJSON(ctx context.Context, reqURL string, out any) error {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			requestsTotal.WithLabelValues(c.name, "rejected").Inc()
		} else {
			requestsTotal.WithLabelValues(c.name, "failure").Inc()
		}
		return err
	}
	requestsTotal.WithLabelValues(c.name, "success").Inc()

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("разбор ответа %s: %w", c.name, err)
	}
	return nil
}

// getJSONDirect — как getJSON, но без circuit breaker. Используется
// проверками подключения из админки, которым нужен реальный ответ.
func (c *client) getJSONDirect(ctx context.Context, reqURL string, out any) error {
	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return err
	}
	if len(body) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("разбор ответа %s: %w", c.name, err)
	}
	return nil
}

// fetch выполняет запрос и читает тело. Статус, отличный от 200, — ErrUpstream.
func (c *client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: %s вернул статус %d", ErrUpstream, c.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s: %w", c.name, err)
	}
	return body, nil
}

// fallback учитывает запасной ответ и пишет предупреждение.
func (c *client) fallback(err error) {
	fallbacksTotal.WithLabelValues(c.name).Inc()
	attrs := []any{slog.String("adapter", c.name)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	c.logger.Warn("Используется запасной ответ", attrs...)
}

// State — текущее состояние circuit breaker адаптера.
func (c *client) State() gobreaker.State {
	return c.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// normalizeURL убирает завершающий слэш из базового URL.
func normalizeURL(u string) string {
	return strings.TrimRight(u, "/")
}
