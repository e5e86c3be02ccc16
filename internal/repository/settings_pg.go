package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

// pgSettingsRepo — реализация SettingsRepository на таблице teaser_config.
type pgSettingsRepo struct {
	db DBTX
}

// NewPostgresSettings создаёт репозиторий настроек поверх PostgreSQL.
func NewPostgresSettings(db DBTX) SettingsRepository {
	return &pgSettingsRepo{db: db}
}

// Get возвращает настройку по ключу.
func (r *pgSettingsRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	query := `
		SELECT key, value, updated_at
		FROM teaser_config
		WHERE key = $1`

	s := &model.Setting{}
	err := r.db.QueryRow(ctx, query, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения teaser_config[%s]: %w", key, err)
	}
	return s, nil
}

// Set создаёт или обновляет настройку одним запросом (INSERT ... ON CONFLICT).
func (r *pgSettingsRepo) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO teaser_config (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("ошибка сохранения teaser_config[%s]: %w", key, err)
	}
	return nil
}

// List возвращает все настройки.
func (r *pgSettingsRepo) List(ctx context.Context) ([]model.Setting, error) {
	query := `
		SELECT key, value, updated_at
		FROM teaser_config
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка teaser_config: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования teaser_config: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// Delete удаляет настройку по ключу.
func (r *pgSettingsRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teaser_config WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("ошибка удаления teaser_config[%s]: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll очищает таблицу.
func (r *pgSettingsRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM teaser_config`); err != nil {
		return fmt.Errorf("ошибка очистки teaser_config: %w", err)
	}
	return nil
}
