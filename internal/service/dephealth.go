// dephealth.go — мониторинг внешних API через topologymetrics SDK.
//
// Teaser наблюдает за погодой, приливами, музыкальным чартом и модулем DJ
// (HTTP checker, некритичные: у каждого адаптера есть запасной ответ) и,
// если настройки хранятся в PostgreSQL, за пулом соединений (critical).
//
// Метрики доступны на /metrics:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// Endpoint — HTTP-зависимость для мониторинга.
type Endpoint struct {
	Name string
	URL  string
}

// DephealthOptions — параметры мониторинга.
type DephealthOptions struct {
	ServiceID     string
	Group         string
	CheckInterval time.Duration
	Endpoints     []Endpoint
	// DB и DSN задаются вместе, если настройки хранятся в PostgreSQL.
	DB  *sql.DB
	DSN string
	// Registerer — nil означает глобальный registry Prometheus.
	Registerer prometheus.Registerer
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис. Endpoint с пустым URL пропускается.
func NewDephealthService(opts DephealthOptions, logger *slog.Logger) (*DephealthService, error) {
	dhOpts := []dephealth.Option{dephealth.WithLogger(logger)}

	if opts.DB != nil && opts.DSN != "" {
		dhOpts = append(dhOpts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(opts.DB)),
			dephealth.FromURL(opts.DSN),
			dephealth.CheckInterval(opts.CheckInterval),
			dephealth.Critical(true),
		))
	}

	for _, ep := range opts.Endpoints {
		if ep.URL == "" {
			continue
		}
		dhOpts = append(dhOpts, dephealth.HTTP(ep.Name,
			dephealth.FromURL(ep.URL),
			dephealth.WithHTTPHealthPath(healthPath(ep.URL)),
			dephealth.CheckInterval(opts.CheckInterval),
			dephealth.Critical(false),
		))
	}

	if opts.Registerer != nil {
		dhOpts = append(dhOpts, dephealth.WithRegisterer(opts.Registerer))
	}

	dh, err := dephealth.New(opts.ServiceID, opts.Group, dhOpts...)
	if err != nil {
		return nil, err
	}
	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Serve — Start, ожидание отмены ctx, Stop. Подходит для suture.Service.
func (ds *DephealthService) Serve(ctx context.Context) error {
	if err := ds.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	ds.Stop()
	return ctx.Err()
}

// Health — состояние зависимостей: ключ "имя:хост:порт", true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// HealthByName сворачивает Health до имени зависимости: зависимость здорова,
// если здоровы все её адреса.
func (ds *DephealthService) HealthByName() map[string]bool {
	out := make(map[string]bool)
	for key, ok := range ds.dh.Health() {
		name, _, _ := strings.Cut(key, ":")
		prev, seen := out[name]
		out[name] = ok && (!seen || prev)
	}
	return out
}

// healthPath — путь из URL зависимости, по умолчанию "/".
func healthPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
