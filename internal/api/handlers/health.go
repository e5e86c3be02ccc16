// health.go — /health/live и /health/ready.
package handlers

import (
	"net/http"
	"time"

	"github.com/MiotyRan/Leashbot/internal/config"
)

// ReadinessChecker — проверка готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

// HealthLive — liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "teaser",
	})
}

// HealthReady — readiness probe. Хранилище медиа обязательно; PostgreSQL
// проверяется, только если подключён. 503 при статусе fail.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "teaser",
		Checks:    map[string]healthCheckResult{},
	}

	storage := healthCheckResult{Status: "ok"}
	if h.Media == nil {
		storage = healthCheckResult{Status: "fail", Message: "не инициализировано"}
	} else if _, err := h.Media.List("center"); err != nil {
		storage = healthCheckResult{Status: "fail", Message: err.Error()}
	}
	resp.Checks["storage"] = storage

	statuses := []string{storage.Status}
	if h.Ready != nil {
		st, msg := h.Ready.CheckReady()
		resp.Checks["postgresql"] = healthCheckResult{Status: st, Message: msg}
		statuses = append(statuses, st)
	}
	if h.Selfies != nil {
		if c := h.Selfies.TestConnectivity(); !c.Success {
			resp.Checks["selfies"] = healthCheckResult{Status: "degraded", Message: c.Error}
			statuses = append(statuses, "degraded")
		} else {
			resp.Checks["selfies"] = healthCheckResult{Status: "ok"}
		}
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == "fail" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// overallStatus: хотя бы один fail даёт fail, хотя бы один degraded даёт degraded.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
