/**
 * @description
 * HTTP handlers for the collections service.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/collections-service/internal/app"
	"github.com/transfa/collections-service/internal/domain"
	"go.uber.org/zap"
)

// CollectionsService is the application surface used by the handlers.
type CollectionsService interface {
	RegisterClient(ctx context.Context, p app.RegisterClientParams) (*domain.Client, error)
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	BlockClient(ctx context.Context, clientID, reason, actor string) (*domain.Client, error)
	ReleaseClient(ctx context.Context, clientID, reason, actor string) (*domain.Client, error)

	IssueCharge(ctx context.Context, p app.IssueChargeParams) (*domain.Charge, error)
	GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error)
	ListCharges(ctx context.Context, filter domain.ChargeFilter) ([]domain.Charge, error)
	SendCharge(ctx context.Context, chargeID string, channel domain.Channel) (*domain.Charge, error)
	ResendCharge(ctx context.Context, chargeID string, channel domain.Channel) (*domain.Charge, error)
	SetChargeStatus(ctx context.Context, chargeID string, status domain.ChargeStatus, notes string) (*domain.Charge, error)
	ReopenCharge(ctx context.Context, chargeID string, target domain.ChargeStatus, notes string) (*domain.Charge, error)
	DaysOverdue(charge domain.Charge) int

	GetHistory(ctx context.Context, chargeID string) ([]domain.HistoryEntry, error)
	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error)
	GetStatistics(ctx context.Context) (*domain.Statistics, error)
	RunEscalationSweep(ctx context.Context) (*app.SweepResult, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service CollectionsService
	pinger  Pinger
	logger  *zap.Logger
}

// NewHandler creates a new Handler. pinger may be nil.
func NewHandler(service CollectionsService, pinger Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, pinger: pinger, logger: logger}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			respondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var req registerClientRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	client, err := h.service.RegisterClient(r.Context(), app.RegisterClientParams{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, client)
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	respondWithJSON(w, http.StatusOK, clients)
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, client)
}

func (h *Handler) handleBlockClient(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	client, err := h.service.BlockClient(r.Context(), chi.URLParam(r, "id"), req.Reason, "")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, client)
}

func (h *Handler) handleReleaseClient(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	client, err := h.service.ReleaseClient(r.Context(), chi.URLParam(r, "id"), req.Reason, "")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, client)
}

func (h *Handler) handleIssueCharge(w http.ResponseWriter, r *http.Request) {
	var req issueChargeRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	charge, err := h.service.IssueCharge(r.Context(), app.IssueChargeParams{
		ClientID: req.ClientID,
		Amount:   req.Amount,
		DueDate:  req.DueDate,
		Notes:    req.Notes,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, h.chargeView(*charge))
}

func (h *Handler) handleListCharges(w http.ResponseWriter, r *http.Request) {
	filter, err := parseChargeFilter(r)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	charges, err := h.service.ListCharges(r.Context(), filter)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	views := make([]chargeResponse, 0, len(charges))
	for _, c := range charges {
		views = append(views, h.chargeView(c))
	}
	respondWithJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetCharge(w http.ResponseWriter, r *http.Request) {
	charge, err := h.service.GetCharge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.chargeView(*charge))
}

func (h *Handler) handleSendCharge(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.service.SendCharge)
}

func (h *Handler) handleResendCharge(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.service.ResendCharge)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, chargeID string, channel domain.Channel) (*domain.Charge, error)) {
	var req dispatchRequest
	if err := decodeAndValidate(r, &req, true); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	charge, err := fn(r.Context(), chi.URLParam(r, "id"), domain.Channel(req.Channel))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.chargeView(*charge))
}

func (h *Handler) handleSetChargeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	status, err := domain.ParseChargeStatus(req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	charge, err := h.service.SetChargeStatus(r.Context(), chi.URLParam(r, "id"), status, req.Notes)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.chargeView(*charge))
}

func (h *Handler) handleReopenCharge(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeAndValidate(r, &req, false); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	status, err := domain.ParseChargeStatus(req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	charge, err := h.service.ReopenCharge(r.Context(), chi.URLParam(r, "id"), status, req.Notes)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.chargeView(*charge))
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	entries, err := h.service.ListHistory(r.Context(), filter)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunEscalationSweep(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) chargeView(c domain.Charge) chargeResponse {
	return chargeResponse{Charge: c, DaysOverdue: h.service.DaysOverdue(c)}
}

func parseChargeFilter(r *http.Request) (domain.ChargeFilter, error) {
	q := r.URL.Query()
	filter := domain.ChargeFilter{ClientID: strings.TrimSpace(q.Get("client_id"))}

	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseChargeStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := q.Get("min_days_overdue"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return filter, &domain.ValidationError{Field: "min_days_overdue", Message: "must be a non-negative integer"}
		}
		filter.MinDaysOverdue = days
	}
	var err error
	if filter.CreatedFrom, err = parseTimeParam(q.Get("created_from"), "created_from", false); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseTimeParam(q.Get("created_to"), "created_to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseHistoryFilter(r *http.Request) (domain.HistoryFilter, error) {
	q := r.URL.Query()
	filter := domain.HistoryFilter{
		ChargeID: strings.TrimSpace(q.Get("charge_id")),
		Actor:    strings.TrimSpace(q.Get("actor")),
	}
	action, err := domain.ParseHistoryAction(q.Get("action"))
	if err != nil {
		return filter, err
	}
	filter.Action = action
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, &domain.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
		}
		filter.Limit = limit
	}
	if filter.From, err = parseTimeParam(q.Get("from"), "from", false); err != nil {
		return filter, err
	}
	if filter.To, err = parseTimeParam(q.Get("to"), "to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseTimeParam accepts RFC3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseTimeParam(raw, field string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Message: "must be YYYY-MM-DD or RFC3339"}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// respondWithServiceError maps domain errors to HTTP statuses. Unexpected
// errors are logged and hidden behind a generic message.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: reqErr.msg, Fields: reqErr.fields})
	case errors.Is(err, domain.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
