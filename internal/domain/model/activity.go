package model

import "time"

// ActivityType — тип действия в журнале.
type ActivityType string

const (
	ActivityUpload  ActivityType = "upload"
	ActivityConfig  ActivityType = "config"
	ActivityAPITest ActivityType = "api_test"
	ActivityCleanup ActivityType = "cleanup"
	ActivityBackup  ActivityType = "backup"
	ActivityError   ActivityType = "error"
	ActivitySystem  ActivityType = "system"
	ActivityMedia   ActivityType = "media"
	ActivitySelfie  ActivityType = "selfie"
)

// ActivityRecord — запись журнала действий администратора. Не изменяется после создания.
type ActivityRecord struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	SizeMB    *float64     `json:"size_mb,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ActivityView — запись с вычисляемыми полями для ленты на дашборде.
type ActivityView struct {
	ActivityRecord
	TimeAgo string `json:"time_ago"`
	Icon    string `json:"icon"`
	Style   string `json:"style"`
}
