package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
	"telemetry-service/app/src/shared/constants"
)

const (
	queryBatchID = "batch_id"
	queryFrom    = "from"
	queryTo      = "to"

	maxFetchBodyBytes = 1 << 20
)

// handler contains the HTTP handlers and shared dependencies for the REST API.
type handler struct {
	service         domain.FetchService
	defaultFailFast bool
	logger          *infra.Logger
}

func registerRoutes(router *chi.Mux, h *handler) {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if h.logger != nil {
			h.logger.Println(r.Context(), "health check OK")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Post("/fetch", h.handleFetch)
	router.Get("/reports", h.handleGetReport)
	router.Get("/samples", h.handleGetSamples)
}

type fetchRequest struct {
	SourceIDs []string `json:"source_ids"`
	FailFast  *bool    `json:"fail_fast,omitempty"`
}

type sampleResponse struct {
	SourceID  string  `json:"source_id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

type reportResponse struct {
	BatchID     string           `json:"batch_id"`
	RequestedAt string           `json:"requested_at"`
	CompletedAt string           `json:"completed_at"`
	Samples     []sampleResponse `json:"samples"`
}

type outcomeResponse struct {
	SourceID string          `json:"source_id"`
	Sample   *sampleResponse `json:"sample,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type outcomeReportResponse struct {
	BatchID     string            `json:"batch_id"`
	RequestedAt string            `json:"requested_at"`
	CompletedAt string            `json:"completed_at"`
	Outcomes    []outcomeResponse `json:"outcomes"`
}

type batchSampleResponse struct {
	BatchID   string  `json:"batch_id"`
	Seq       int     `json:"seq"`
	SourceID  string  `json:"source_id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	body := http.MaxBytesReader(w, r.Body, maxFetchBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourceIDs == nil {
		h.writeError(w, http.StatusBadRequest, "source_ids is required")
		return
	}

	failFast := h.defaultFailFast
	if req.FailFast != nil {
		failFast = *req.FailFast
	}

	if failFast {
		report, err := h.service.FetchReport(r.Context(), req.SourceIDs)
		if err != nil {
			h.respondFetchError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toReportResponse(report))
		return
	}

	report, err := h.service.FetchOutcomes(r.Context(), req.SourceIDs)
	if err != nil {
		h.respondFetchError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOutcomeReportResponse(report))
}

func (h *handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	idParam := r.URL.Query().Get(queryBatchID)
	if idParam == "" {
		h.writeError(w, http.StatusBadRequest, "batch_id query parameter is required")
		return
	}

	id, err := constants.ParseUUID(idParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid batch_id format")
		return
	}

	report, err := h.service.ReportByBatchID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (h *handler) handleGetSamples(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	fromParam := params.Get(queryFrom)
	toParam := params.Get(queryTo)

	if fromParam == "" || toParam == "" {
		h.writeError(w, http.StatusBadRequest, "both from and to parameters are required")
		return
	}

	from, err := time.Parse(constants.TimeFormat, fromParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}

	to, err := time.Parse(constants.TimeFormat, toParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	if from.After(to) {
		h.writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	samples, err := h.service.SamplesInRange(r.Context(), from, to)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	payload := make([]batchSampleResponse, len(samples))
	for i, sample := range samples {
		payload[i] = batchSampleResponse{
			BatchID:   sample.BatchID,
			Seq:       sample.Seq,
			SourceID:  sample.SourceID,
			Value:     sample.Value,
			Timestamp: sample.Timestamp.UTC().Format(constants.TimeFormat),
		}
	}

	h.writeJSON(w, http.StatusOK, payload)
}

func (h *handler) respondFetchError(w http.ResponseWriter, r *http.Request, err error) {
	if h.logger != nil {
		h.logger.Printf(r.Context(), "fetch failed: %v", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.writeError(w, http.StatusRequestTimeout, "request cancelled")
		return
	}
	h.writeError(w, http.StatusBadGateway, "failed to fetch samples")
}

func (h *handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "report not found")
	default:
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *handler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, errorResponse{Error: message, Code: code})
}

func toReportResponse(report domain.Report) reportResponse {
	samples := make([]sampleResponse, len(report.Samples))
	for i, sample := range report.Samples {
		samples[i] = toSampleResponse(sample)
	}
	return reportResponse{
		BatchID:     report.BatchID,
		RequestedAt: report.RequestedAt.UTC().Format(constants.TimeFormat),
		CompletedAt: report.CompletedAt.UTC().Format(constants.TimeFormat),
		Samples:     samples,
	}
}

func toOutcomeReportResponse(report domain.OutcomeReport) outcomeReportResponse {
	outcomes := make([]outcomeResponse, len(report.Outcomes))
	for i, outcome := range report.Outcomes {
		entry := outcomeResponse{SourceID: outcome.SourceID}
		if outcome.OK() {
			sample := toSampleResponse(outcome.Sample)
			entry.Sample = &sample
		} else {
			entry.Error = outcome.Err.Error()
		}
		outcomes[i] = entry
	}
	return outcomeReportResponse{
		BatchID:     report.BatchID,
		RequestedAt: report.RequestedAt.UTC().Format(constants.TimeFormat),
		CompletedAt: report.CompletedAt.UTC().Format(constants.TimeFormat),
		Outcomes:    outcomes,
	}
}

func toSampleResponse(sample domain.Sample) sampleResponse {
	return sampleResponse{
		SourceID:  sample.SourceID,
		Value:     sample.Value,
		Timestamp: sample.Timestamp.UTC().Format(constants.TimeFormat),
	}
}
