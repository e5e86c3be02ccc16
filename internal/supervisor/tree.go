// Пакет supervisor — дерево suture для процессов teaser-сервиса.
//
// Два слоя: jobs (фоновая очистка, мониторинг зависимостей) и api (HTTP-сервер).
// Падение фоновой задачи перезапускает только её, HTTP продолжает отвечать.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig — параметры перезапуска.
type TreeConfig struct {
	// FailureThreshold — число сбоев до паузы. По умолчанию 5.
	FailureThreshold float64
	// FailureDecay — скорость затухания счётчика сбоев, секунды. По умолчанию 30.
	FailureDecay float64
	// FailureBackoff — пауза после превышения порога. По умолчанию 15s.
	FailureBackoff time.Duration
	// ShutdownTimeout — ожидание остановки сервиса. По умолчанию 10s.
	ShutdownTimeout time.Duration
}

func (c *TreeConfig) applyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Tree — корневой супервизор и его слои.
type Tree struct {
	root   *suture.Supervisor
	jobs   *suture.Supervisor
	api    *suture.Supervisor
	config TreeConfig
}

// NewTree строит дерево. События suture пишутся в logger через sutureslog.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config.applyDefaults()

	handler := &sutureslog.Handler{Logger: logger.With(slog.String("component", "supervisor"))}
	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = handler.MustHook()

	t := &Tree{
		root:   suture.New("teaser", rootSpec),
		jobs:   suture.New("jobs", spec),
		api:    suture.New("api", spec),
		config: config,
	}
	t.root.Add(t.jobs)
	t.root.Add(t.api)
	return t
}

// AddJob добавляет фоновую задачу.
func (t *Tree) AddJob(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// AddAPI добавляет HTTP-сервер.
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve блокирует до отмены ctx.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground запускает дерево в горутине.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport — сервисы, не остановившиеся за ShutdownTimeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
