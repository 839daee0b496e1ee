package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/service"
)

const maxDistributionSamples = 1_000_000

type TierHandler struct {
	manager *service.SharedManager
}

func NewTierHandler(manager *service.SharedManager) *TierHandler {
	return &TierHandler{manager: manager}
}

func (h *TierHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.GetRecommendations())
}

func (h *TierHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.ExportState())
}

type setThresholdsRequest struct {
	Tier1 *float64 `json:"tier1_threshold,omitempty"`
	Tier2 *float64 `json:"tier2_threshold,omitempty"`
}

func (h *TierHandler) SetThresholds(w http.ResponseWriter, r *http.Request) {
	var req setThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tier1 == nil && req.Tier2 == nil {
		writeError(w, http.StatusBadRequest, "tier1_threshold or tier2_threshold is required")
		return
	}

	if err := h.manager.AdjustThresholdsManually(req.Tier1, req.Tier2); err != nil {
		if errors.Is(err, service.ErrConfiguration) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to set thresholds")
		return
	}

	writeJSON(w, http.StatusOK, h.manager.Thresholds())
}

type distributionResponse struct {
	Thresholds   domain.ThresholdState   `json:"thresholds"`
	Samples      int                     `json:"samples"`
	Distribution map[domain.Tier]float64 `json:"distribution"`
}

func (h *TierHandler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	samples, ok := queryInt(r, "samples", service.DefaultDistributionSamples, maxDistributionSamples)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid samples")
		return
	}

	writeJSON(w, http.StatusOK, distributionResponse{
		Thresholds:   h.manager.Thresholds(),
		Samples:      samples,
		Distribution: h.manager.TierDistribution(samples),
	})
}

// ResetLearning clears learned statistics. Thresholds are kept.
func (h *TierHandler) ResetLearning(w http.ResponseWriter, r *http.Request) {
	h.manager.ResetLearning(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
