// Package api expõe o endpoint de relatório, já atrás do gate de admissão.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"telemetry-gateway/middleware/admission"
	"telemetry-gateway/telemetry"
)

// MsgInvalidReportType enumera os tokens aceitos; texto voltado ao cliente.
const MsgInvalidReportType = `Invalid report type. Please choose "basic_report" or "advanced_report".`

// ReportHandler atende GET /report?type=...
//
// Quando a requisição chega aqui a unidade de cota JÁ foi consumida pelo
// middleware de admissão — inclusive quando o tipo é inválido ou o coletor
// falha. Não há "estorno" de cota; é uma escolha de política deliberada.
type ReportHandler struct {
	Registry *telemetry.Registry
	Logger   *zap.Logger
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reportType := r.URL.Query().Get("type")
	if reportType == "" {
		reportType = telemetry.TypeDefault
	}

	payload, err := h.Registry.Collect(r.Context(), reportType)
	if errors.Is(err, telemetry.ErrUnknownReportType) {
		logger.Warn("invalid report type requested", zap.String("type", reportType))
		admission.RespondError(w, http.StatusBadRequest, MsgInvalidReportType)
		return
	}
	if err != nil {
		logger.Error("report collection failed", zap.String("type", reportType), zap.Error(err))
		admission.RespondError(w, http.StatusInternalServerError, admission.MsgInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode report payload", zap.Error(err))
	}
}
