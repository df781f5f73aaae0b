// Package httpapi is the thin HTTP wrapper over the queue engine: JSON in,
// JSON out, with every decision delegated to the queue service, the
// schedule gate, and the admin guard.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/admin"
	"github.com/snake33madb2017/turno-barberia/internal/models"
	"github.com/snake33madb2017/turno-barberia/internal/queue"
	"github.com/snake33madb2017/turno-barberia/internal/store"
)

type Handler struct {
	queue *queue.Service
	guard *admin.Guard
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type issueRequest struct {
	DisplayName  string `json:"display_name"`
	Phone        string `json:"phone"`
	RecipientTag string `json:"recipient_tag"`
}

type cancelRequest struct {
	ID string `json:"id"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type actionRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

type resetRequest struct {
	Scope string `json:"scope"`
}

type statusResponse struct {
	IsOpen bool   `json:"is_open"`
	Reason string `json:"reason"`
	Date   string `json:"date"`
}

// selfTicket is the customer polling projection: no phone, no recipient.
type selfTicket struct {
	ID                 string `json:"id"`
	SequenceNumber     int    `json:"sequence_number"`
	State              string `json:"state"`
	StatusMessage      string `json:"status_message"`
	StartedAt          int64  `json:"started_at"`
	AccumulatedSeconds int64  `json:"accumulated_seconds"`
}

func NewHandler(queueService *queue.Service, guard *admin.Guard) *Handler {
	return &Handler{queue: queueService, guard: guard}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/cancel", h.handleSelfCancel)
	mux.HandleFunc("/api/tickets/", h.handleTicket)
	mux.HandleFunc("/api/admin/login", h.handleLogin)
	mux.HandleFunc("/api/admin/action", h.handleAction)
	mux.HandleFunc("/api/admin/reset", h.handleReset)
	mux.HandleFunc("/api/admin/reset-log", h.handleResetLog)
	mux.HandleFunc("/api/settings", h.handleSettings)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status, date, err := h.queue.ScheduleStatus(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		IsOpen: status.IsOpen,
		Reason: status.Reason,
		Date:   date,
	})
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Staff view: includes phone and recipient, so it sits behind the
		// admin session.
		if !h.requireSession(w, r) {
			return
		}
		tickets, err := h.queue.ListAll(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		if tickets == nil {
			tickets = []models.Ticket{}
		}
		writeJSON(w, http.StatusOK, tickets)
	case http.MethodPost:
		var req issueRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		ticket, err := h.queue.Issue(r.Context(), queue.IssueInput{
			DisplayName:  req.DisplayName,
			Phone:        req.Phone,
			RecipientTag: req.RecipientTag,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tickets/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ticket, err := h.queue.Get(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selfProjection(ticket))
}

func (h *Handler) handleSelfCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	ticket, err := h.queue.CancelBySelf(r.Context(), req.ID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"ticket":  selfProjection(ticket),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	session, err := h.guard.Login(r.Context(), strings.TrimSpace(req.Password))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"session_id": session.Token,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireSession(w, r) {
		return
	}

	var req actionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	event, ok := eventForAction(strings.TrimSpace(req.Action))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_action", "action must be start, finish, or cancel")
		return
	}

	ticket, err := h.queue.Transition(r.Context(), req.ID, event)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func eventForAction(action string) (string, bool) {
	switch action {
	case "start":
		return store.EventStart, true
	case "finish":
		return store.EventFinish, true
	case "cancel":
		return store.EventCancelByAdmin, true
	default:
		return "", false
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireSession(w, r) {
		return
	}

	var req resetRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	removed, err := h.queue.Reset(r.Context(), strings.TrimSpace(req.Scope))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"deleted_count": removed,
	})
}

func (h *Handler) handleResetLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireSession(w, r) {
		return
	}

	entries, err := h.queue.ResetLog(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if entries == nil {
		entries = []models.ResetEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := h.guard.Settings(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPost:
		var patch admin.SettingsPatch
		if !decodeRequest(w, r, &patch) {
			return
		}
		settings, err := h.guard.UpdateSettings(r.Context(), patch)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func selfProjection(ticket models.Ticket) selfTicket {
	return selfTicket{
		ID:                 ticket.ID,
		SequenceNumber:     ticket.SequenceNumber,
		State:              ticket.State,
		StatusMessage:      ticket.StatusMessage,
		StartedAt:          ticket.StartedAt,
		AccumulatedSeconds: ticket.AccumulatedSeconds,
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, store.ErrBadCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, store.ErrStorage):
		return http.StatusInternalServerError, "storage_error", "storage failure"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message := mapError(err)
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
