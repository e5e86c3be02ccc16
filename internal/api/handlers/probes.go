// probes.go — проверки сторонних API и модулей из админки.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apierrors "github.com/MiotyRan/Leashbot/internal/api/errors"
	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/external"
)

type testWeatherRequest struct {
	APIKey   string `json:"api_key" validate:"required"`
	Location string `json:"location" validate:"required"`
}

// TestWeather — POST /api/admin/test-weather {api_key, location}.
func (h *Handler) TestWeather(w http.ResponseWriter, r *http.Request) {
	var req testWeatherRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Clé API et localisation requis")
		return
	}

	probe, err := h.Weather.Probe(r.Context(), req.APIKey, req.Location)
	if err != nil {
		h.record(model.ActivityAPITest, "Test API météo échoué", err.Error())
		if errors.Is(err, external.ErrMissingAPIKey) {
			apierrors.ValidationError(w, "Clé API requise")
			return
		}
		apierrors.UpstreamError(w, "Erreur API météo: "+err.Error())
		return
	}

	h.record(model.ActivityAPITest, "API météo testée avec succès", probe.Location)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "API Météo OpenWeatherMap connectée",
		"data":    probe,
	})
}

type testTideRequest struct {
	APIKey string   `json:"api_key" validate:"required"`
	Lat    *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon    *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// TestTide — POST /api/admin/test-tide {api_key, lat, lon}.
func (h *Handler) TestTide(w http.ResponseWriter, r *http.Request) {
	var req testTideRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Tous les paramètres requis")
		return
	}

	probe, err := h.Tide.Probe(r.Context(), req.APIKey, *req.Lat, *req.Lon)
	if err != nil {
		h.record(model.ActivityAPITest, "Test API marées échoué", err.Error())
		apierrors.UpstreamError(w, "Erreur API marées: "+err.Error())
		return
	}

	h.record(model.ActivityAPITest, "API marées testée avec succès",
		strconv.FormatFloat(probe.Lat, 'f', 4, 64)+", "+strconv.FormatFloat(probe.Lon, 'f', 4, 64))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "API Marées connectée",
		"data":    probe,
	})
}

// TestSelfie — POST /api/admin/test-selfie. Отказ модуля — 200 с success=false.
func (h *Handler) TestSelfie(w http.ResponseWriter, r *http.Request) {
	c := h.Selfies.TestConnectivity()
	if !c.Success {
		h.record(model.ActivityAPITest, "Test module Selfie échoué", c.Error)
		msg := c.Error
		if msg == "" {
			msg = "Module Selfie inaccessible"
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": msg})
		return
	}

	h.record(model.ActivityAPITest, "Module Selfie testé avec succès",
		fmt.Sprintf("%d selfie(s)", c.TotalSelfies))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          "Module Selfie accessible",
		"count":            c.TotalSelfies,
		"path":             c.Path,
		"storage_mb":       c.StorageMB,
		"available_months": c.AvailableMonths,
		"latest_selfie":    c.LatestSelfie,
	})
}

type testDJRequest struct {
	URL string `json:"url" validate:"omitempty,url"`
}

// TestDJ — POST /api/admin/test-dj {url}. Пустой url — адрес из настроек.
// Недоступный модуль — 200 с success=false.
func (h *Handler) TestDJ(w http.ResponseWriter, r *http.Request) {
	var req testDJRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Corps JSON invalide")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "URL invalide")
		return
	}
	if req.URL == "" {
		if rt := h.runtime(r); rt != nil {
			req.URL = rt.DJURL
		}
	}

	status, err := h.DJ.Status(r.Context(), req.URL)
	if err != nil {
		target := req.URL
		if target == "" {
			target = h.DJ.Endpoint()
		}
		h.record(model.ActivityAPITest, "Module DJ inaccessible", target)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Module DJ inaccessible sur " + target,
		})
		return
	}

	h.record(model.ActivityAPITest, "Module DJ/Jukebox testé avec succès", req.URL)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Module DJ/Jukebox connecté",
		"status":  status,
	})
}
