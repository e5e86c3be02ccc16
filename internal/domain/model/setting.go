package model

import "time"

// Setting — пара ключ/значение конфигурации. Value хранится как JSON-текст.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// ZoneSettings — параметры отображения зоны.
type ZoneSettings struct {
	Title    string `json:"title" validate:"max=100"`
	Enabled  bool   `json:"enabled"`
	Duration int    `json:"duration" validate:"min=1,max=300"`
	// ContentOrder — порядок элементов карусели (имена файлов или ID).
	ContentOrder []string `json:"content_order,omitempty" validate:"max=500"`
}
