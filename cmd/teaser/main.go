// Точка входа teaser-сервиса: экран тизера для площадки и админка.
// Загружает конфигурацию, при заданном DSN подключается к PostgreSQL и
// применяет миграции, создаёт хранилища, адаптеры внешних API и сервисы,
// затем запускает дерево suture: фоновая очистка, мониторинг зависимостей
// и HTTP-сервер. Останавливается по SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/MiotyRan/Leashbot/internal/activity"
	"github.com/MiotyRan/Leashbot/internal/api/handlers"
	"github.com/MiotyRan/Leashbot/internal/backup"
	"github.com/MiotyRan/Leashbot/internal/config"
	"github.com/MiotyRan/Leashbot/internal/database"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
	"github.com/MiotyRan/Leashbot/internal/repository"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/server"
	"github.com/MiotyRan/Leashbot/internal/service"
	"github.com/MiotyRan/Leashbot/internal/settings"
	"github.com/MiotyRan/Leashbot/internal/stats"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
	"github.com/MiotyRan/Leashbot/internal/supervisor"
	uihandlers "github.com/MiotyRan/Leashbot/internal/ui/handlers"
	"github.com/MiotyRan/Leashbot/internal/ui/i18n"
)

func main() {
	// 1. Загрузка конфигурации (значения по умолчанию → YAML → окружение)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Teaser запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Каталоги переводов
	bundle, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Журнал действий
	activityLog, err := activity.Open(cfg.ActivityFile(), bundle, logger)
	if err != nil {
		logger.Error("Ошибка открытия журнала действий", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Хранилище настроек: PostgreSQL при заданном DSN, иначе JSON-файл
	settingsRepo := repository.NewFileSettings(cfg.SettingsFile())
	var pool *pgxpool.Pool
	if cfg.Database.DSN != "" {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg.Database.DSN, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}
		pool, err = database.Connect(ctx, cfg.Database.DSN, cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		settingsRepo = repository.NewPostgresSettings(pool)
	} else {
		logger.Info("database.dsn не задан, настройки хранятся в файле",
			slog.String("file", cfg.SettingsFile()),
		)
	}

	// 6. Медиа зон и селфи
	store, err := filestore.New(cfg.Storage.MediaDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища медиа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	mediaSvc := service.NewMediaService(store, service.MediaOptions{
		MaxImageBytes: cfg.Upload.MaxImageBytes,
		MaxVideoBytes: cfg.Upload.MaxVideoBytes,
		FetchTimeout:  cfg.Upload.FetchTimeout,
		UserAgent:     cfg.Upload.FetchUserAgent,
	}, nil, activityLog, logger)

	selfies, err := selfie.New(cfg.Storage.SelfieDir, selfie.Options{
		CacheTTL:     cfg.Selfie.CacheTTL,
		CacheSize:    cfg.Selfie.CacheSize,
		DefaultLimit: cfg.Selfie.DefaultLimit,
	}, activityLog, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища селфи", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Конфигурация экрана
	settingsSvc := settings.New(settingsRepo, settings.Defaults{
		WeatherAPIKey:   cfg.Weather.APIKey,
		WeatherLocation: cfg.Weather.Location,
		TideAPIKey:      cfg.Tide.APIKey,
		TideLat:         cfg.Tide.Lat,
		TideLon:         cfg.Tide.Lon,
		AutoCleanup:     cfg.Cleanup.Auto,
		CleanupDays:     cfg.Cleanup.Days,
		SelfieCount:     cfg.Selfie.DefaultLimit,
		DJURL:           cfg.DJ.URL,
	}, settings.Options{BackupDir: cfg.Backup.Dir, Keep: cfg.Backup.Keep}, activityLog, logger)

	aggregator := stats.New(store, selfies)

	// 8. Адаптеры внешних API (circuit breaker + запасной ответ)
	weather := external.NewWeatherClient(external.WeatherOptions{
		APIKey:   cfg.Weather.APIKey,
		Location: cfg.Weather.Location,
		URL:      cfg.Weather.URL,
		Timeout:  cfg.Weather.Timeout,
	}, nil, logger)
	tide := external.NewTideClient(external.TideOptions{
		APIKey:  cfg.Tide.APIKey,
		Lat:     cfg.Tide.Lat,
		Lon:     cfg.Tide.Lon,
		URL:     cfg.Tide.URL,
		Timeout: cfg.Tide.Timeout,
	}, nil, logger)
	music := external.NewMusicClient(external.MusicOptions{
		ChartURL: cfg.Music.ChartURL,
		Timeout:  cfg.Music.Timeout,
	}, nil, logger)
	dj := external.NewDJClient(cfg.DJ.URL, cfg.DJ.Timeout, nil, logger)

	// 9. Резервные копии (S3 — опционально)
	var uploader backup.Uploader
	if cfg.Backup.S3Bucket != "" {
		s3Uploader, err := backup.NewS3Uploader(ctx, backup.S3Options{
			Bucket:   cfg.Backup.S3Bucket,
			Region:   cfg.Backup.S3Region,
			Endpoint: cfg.Backup.S3Endpoint,
			Prefix:   cfg.Backup.S3Prefix,
		}, logger)
		if err != nil {
			logger.Warn("S3 недоступен, копии сохраняются только локально",
				slog.String("error", err.Error()),
			)
		} else {
			uploader = s3Uploader
			logger.Info("Выгрузка копий в S3 включена", slog.String("bucket", cfg.Backup.S3Bucket))
		}
	}
	exporter := backup.NewExporter(cfg.Backup.Dir, backup.Sources{
		Storage: aggregator,
		Selfies: selfies,
		Config:  settingsSvc,
		Media:   mediaSvc,
	}, uploader, activityLog, logger)

	// 10. Фоновая очистка
	cleanupSvc := service.NewCleanupService(mediaSvc, selfies, settingsSvc, service.CleanupOptions{
		Interval:   cfg.Cleanup.Interval,
		Days:       cfg.Cleanup.Days,
		Auto:       cfg.Cleanup.Auto,
		KeepMonths: cfg.Selfie.KeepMonths,
	}, logger)

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout * 2})
	tree.AddJob(cleanupSvc)

	// 11. Зависимости обработчиков API и страниц
	deps := handlers.Deps{
		Media:       mediaSvc,
		Selfies:     selfies,
		Settings:    settingsSvc,
		Activity:    activityLog,
		Stats:       aggregator,
		Weather:     weather,
		Tide:        tide,
		Music:       music,
		DJ:          dj,
		Cleanup:     cleanupSvc,
		Backup:      exporter,
		LogsDir:     cfg.Storage.LogsDir,
		SelfieLimit: cfg.Selfie.DefaultLimit,
	}
	pageDeps := uihandlers.PageDeps{
		Media:    mediaSvc,
		Settings: settingsSvc,
		Selfies:  selfies,
		Activity: activityLog,
		Stats:    aggregator,
		Weather:  weather,
		Tide:     tide,
		Music:    music,
		DJ:       dj,
		Bundle:   bundle,
	}
	if pool != nil {
		deps.Ready = database.NewReadinessChecker(pool)
	}

	// 12. topologymetrics — мониторинг внешних API (и PostgreSQL, если используется)
	if cfg.Dephealth.Enabled {
		dhOpts := service.DephealthOptions{
			ServiceID:     "teaser",
			Group:         cfg.Dephealth.Group,
			CheckInterval: cfg.Dephealth.CheckInterval,
			// Погода и приливы отвечают 401 без ключа в query: их доступность
			// видна только по circuit breaker'у адаптера.
			Endpoints: []service.Endpoint{
				{Name: "music", URL: music.Endpoint()},
				{Name: "dj", URL: dj.Endpoint()},
			},
		}
		if pool != nil {
			// Адаптер pgxpool → *sql.DB: проверка идёт через существующий пул.
			pgDB := stdlib.OpenDBFromPool(pool)
			defer pgDB.Close()
			dhOpts.DB, dhOpts.DSN = pgDB, cfg.Database.DSN
		}

		dephealthSvc, err := service.NewDephealthService(dhOpts, logger)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
		} else {
			tree.AddJob(dephealthSvc)
			deps.Health = dephealthSvc
			pageDeps.Health = dephealthSvc
			logger.Info("topologymetrics включён",
				slog.String("group", cfg.Dephealth.Group),
				slog.String("check_interval", cfg.Dephealth.CheckInterval.String()),
			)
		}
	}

	// 13. HTTP-сервер
	srv := server.New(cfg, logger,
		handlers.New(deps, logger),
		uihandlers.NewPageHandler(pageDeps, logger),
	)
	httpServer := srv.HTTPServer()
	tree.AddAPI(supervisor.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))
	logger.Info("HTTP-сервер запускается", slog.String("addr", httpServer.Addr))

	activityLog.Record(model.ActivitySystem, "Serveur démarré", "version "+config.Version, nil)

	// 14. Дерево работает до сигнала завершения
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ошибка супервизора", slog.String("error", err.Error()))
	}
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, u := range unstopped {
			logger.Warn("Сервис не остановился вовремя", slog.String("service", u.Name))
		}
	}

	// 15. Дожидаемся фоновых выгрузок в S3
	exporter.Wait()
	logger.Info("Teaser остановлен")
}
