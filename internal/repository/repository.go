// Пакет repository — хранилище настроек экрана (ключ → JSON-текст).
// Две реализации одного интерфейса: PostgreSQL через pgx и JSON-файл
// для установки без базы данных.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

// ErrNotFound — запись не найдена.
var ErrNotFound = errors.New("запись не найдена")

// SettingsRepository — хранилище пар ключ/значение конфигурации.
type SettingsRepository interface {
	// Get возвращает настройку по ключу. Если не найдена — ErrNotFound.
	Get(ctx context.Context, key string) (*model.Setting, error)
	// Set создаёт или обновляет настройку (upsert).
	Set(ctx context.Context, key, value string) error
	// List возвращает все настройки, отсортированные по ключу.
	List(ctx context.Context) ([]model.Setting, error)
	// Delete удаляет настройку по ключу. Если не найдена — ErrNotFound.
	Delete(ctx context.Context, key string) error
	// DeleteAll удаляет все настройки.
	DeleteAll(ctx context.Context) error
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
