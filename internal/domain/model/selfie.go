package model

import "time"

// SelfieItem — фото клиента в месячной папке YYYY-MM.
// Файлы пишет внешний модуль съёмки, здесь они только читаются и удаляются помесячно.
type SelfieItem struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	// ClientName — имя клиента из имени файла, nil если не распознано
	ClientName  *string   `json:"client_name"`
	TakenAt     time.Time `json:"taken_at"`
	FileSize    int64     `json:"file_size"`
	FileSizeKB  float64   `json:"file_size_kb"`
	Month       string    `json:"month"`
	IsRecent    bool      `json:"is_recent"`
	DisplayTime string    `json:"display_time"`
	DisplayDate string    `json:"display_date"`
}

// MonthLayout — формат метки месячной папки.
const MonthLayout = "2006-01"
