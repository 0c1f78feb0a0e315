package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/compass/internal/chat"
	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/types"
	"github.com/hyperengineering/compass/internal/validation"
)

// ChatService answers one conversational turn.
type ChatService interface {
	Reply(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// ReportService generates and manages weekly reports.
type ReportService interface {
	Generate(ctx context.Context, req types.ReportRequest) (*types.ReportResponse, error)
	Get(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error)
	List(ctx context.Context, engagementID string) ([]types.WeeklyReport, error)
	Publish(ctx context.Context, engagementID string, period int) (*types.WeeklyReport, error)
}

// ReportCounter reports how many weekly reports are stored.
type ReportCounter interface {
	CountReports(ctx context.Context) (int64, error)
}

// Handler implements the API handlers
type Handler struct {
	chat    ChatService
	reports ReportService
	counter ReportCounter
	apiKey  string
	version string
	model   string
}

// NewHandler creates a new Handler.
func NewHandler(c ChatService, reports ReportService, counter ReportCounter, apiKey, version, model string) *Handler {
	return &Handler{
		chat:    c,
		reports: reports,
		counter: counter,
		apiKey:  apiKey,
		version: version,
		model:   model,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.counter.CountReports(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:          "healthy",
		Version:         h.version,
		GenerationModel: h.model,
		ReportCount:     count,
	})
}

// Chat handles POST /api/v1/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateChatRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}
	audience, err := redaction.ParseAudience(req.Audience)
	if err != nil {
		MapError(w, r, err)
		return
	}

	reply, err := h.chat.Reply(r.Context(), chat.Request{
		ClientID: req.ClientID,
		Message:  req.Message,
		History:  req.ConversationHistory,
		Audience: audience,
	})
	if err != nil {
		slog.Error("chat failed",
			"component", "api",
			"request_id", GetRequestID(r.Context()),
			"client_id", req.ClientID,
			"error", err,
		)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ChatResponse{ReplyText: reply.Text})
}

// GenerateReport handles POST /api/v1/reports
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req types.ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validation.ValidateReportRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	resp, err := h.reports.Generate(r.Context(), req)
	if err != nil {
		slog.Error("report generation failed",
			"component", "api",
			"request_id", GetRequestID(r.Context()),
			"client_id", req.ClientID,
			"error", err,
		)
		MapError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// ListReports handles GET /api/v1/engagements/{engagementID}/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context(), chi.URLParam(r, "engagementID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	if reports == nil {
		reports = []types.WeeklyReport{}
	}
	writeJSON(w, http.StatusOK, types.ReportListResponse{Reports: reports, Total: len(reports)})
}

// GetReport handles GET /api/v1/engagements/{engagementID}/reports/{period}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	rep, err := h.reports.Get(r.Context(), chi.URLParam(r, "engagementID"), period)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// PublishReport handles POST /api/v1/engagements/{engagementID}/reports/{period}/publish
func (h *Handler) PublishReport(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	rep, err := h.reports.Publish(r.Context(), chi.URLParam(r, "engagementID"), period)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func periodParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "period")
	period, err := strconv.Atoi(raw)
	if err != nil || period < 1 {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid period %q: must be a positive integer", raw))
		return 0, false
	}
	return period, true
}

// decodeJSON reads a bounded JSON body into v, writing a problem response on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
