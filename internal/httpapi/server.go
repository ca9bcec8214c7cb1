package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/matedort/careline/internal/bridge"
	"github.com/matedort/careline/internal/config"
	"github.com/matedort/careline/internal/observability"
	"github.com/matedort/careline/internal/store"
	"github.com/matedort/careline/internal/telephony"
)

// CallBridge relays one Twilio media stream per invocation.
type CallBridge interface {
	Run(ctx context.Context, conn bridge.StreamConn) error
	Registry() *bridge.Registry
}

// StatusSink receives call lifecycle transitions from Twilio webhooks.
type StatusSink interface {
	HandleCallStatus(ctx context.Context, callID, status string, answered, terminal bool)
}

type Server struct {
	cfg      config.Config
	store    store.Store
	bridge   CallBridge
	statuses StatusSink
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, st store.Store, cb CallBridge, statuses StatusSink, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		bridge:   cb,
		statuses: statuses,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Twilio's media stream client does not send an Origin
				// header. Browser connections must match the host unless
				// explicitly allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/webhook/voice", s.handleVoiceWebhook)
	r.Post("/webhook/status", s.handleStatusWebhook)
	r.Get("/media-stream", s.handleMediaStream)

	r.Get("/v1/calls", s.handleListCalls)

	r.Post("/v1/reminders", s.handleCreateReminder)
	r.Get("/v1/reminders", s.handleListReminders)
	r.Get("/v1/reminders/{id}", s.handleGetReminder)
	r.Patch("/v1/reminders/{id}", s.handleUpdateReminder)
	r.Delete("/v1/reminders/{id}", s.handleDeleteReminder)

	r.Post("/v1/contacts", s.handleCreateContact)
	r.Get("/v1/contacts", s.handleListContacts)
	r.Patch("/v1/contacts/{id}", s.handleUpdateContact)
	r.Delete("/v1/contacts/{id}", s.handleDeleteContact)

	r.Get("/v1/bio", s.handleGetBio)
	r.Put("/v1/bio/{key}", s.handleSetBio)

	r.Get("/v1/conversations", s.handleListConversations)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListReminders(r.Context(), true); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleVoiceWebhook answers Twilio's call webhook with TwiML that
// connects the call audio to the media stream endpoint.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	twiml, err := telephony.StreamTwiML(s.mediaStreamURL(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "twiml_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(twiml)
}

func (s *Server) mediaStreamURL(r *http.Request) string {
	base := strings.TrimSpace(s.cfg.WebhookBaseURL)
	if base == "" {
		base = "https://" + r.Host
	}
	base = strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/media-stream"
}

func (s *Server) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	upd, err := telephony.ParseStatusCallback(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_status_callback", err.Error())
		return
	}
	log.Printf("httpapi: call %s status %s", upd.CallSid, upd.Status)
	if s.statuses != nil {
		s.statuses.HandleCallStatus(r.Context(), upd.CallSid, upd.Status,
			telephony.Answered(upd.Status), telephony.Terminal(upd.Status))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "media bridge not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(2 << 20)
	if err := s.bridge.Run(r.Context(), conn); err != nil {
		log.Printf("httpapi: media stream ended: %v", err)
	}
}

func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		respondJSON(w, http.StatusOK, []bridge.CallSession{})
		return
	}
	respondJSON(w, http.StatusOK, s.bridge.Registry().List())
}

type reminderRequest struct {
	Title       string           `json:"title"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
	Recurrence  store.Recurrence `json:"recurrence"`
	DaysOfWeek  []string         `json:"days_of_week"`
	Active      *bool            `json:"active"`
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "title is required")
		return
	}
	if req.ScheduledAt == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "scheduled_at is required")
		return
	}
	switch req.Recurrence {
	case store.RecurrenceNone, store.RecurrenceDaily, store.RecurrenceWeekly:
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown recurrence")
		return
	}
	created, err := s.store.CreateReminder(r.Context(), store.Reminder{
		Title:       strings.TrimSpace(req.Title),
		ScheduledAt: *req.ScheduledAt,
		Recurrence:  req.Recurrence,
		DaysOfWeek:  req.DaysOfWeek,
		Active:      true,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	reminders, err := s.store.ListReminders(r.Context(), activeOnly)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reminders)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.store.GetReminder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "reminder_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	upd := store.ReminderUpdate{
		ScheduledAt: req.ScheduledAt,
		Active:      req.Active,
	}
	if strings.TrimSpace(req.Title) != "" {
		title := strings.TrimSpace(req.Title)
		upd.Title = &title
	}
	if req.Recurrence != "" {
		rec := req.Recurrence
		upd.Recurrence = &rec
	}
	if req.DaysOfWeek != nil {
		upd.DaysOfWeek = &req.DaysOfWeek
	}
	id := chi.URLParam(r, "id")
	if err := s.store.UpdateReminder(r.Context(), id, upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "reminder_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	rem, err := s.store.GetReminder(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteReminder(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "reminder_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contactRequest struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
	Notes    string `json:"notes"`
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	created, err := s.store.CreateContact(r.Context(), store.Contact{
		Name:     strings.TrimSpace(req.Name),
		Relation: req.Relation,
		Phone:    req.Phone,
		Birthday: req.Birthday,
		Notes:    req.Notes,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	upd := store.ContactUpdate{}
	if strings.TrimSpace(req.Name) != "" {
		name := strings.TrimSpace(req.Name)
		upd.Name = &name
	}
	if req.Relation != "" {
		upd.Relation = &req.Relation
	}
	if req.Phone != "" {
		upd.Phone = &req.Phone
	}
	if req.Birthday != "" {
		upd.Birthday = &req.Birthday
	}
	if req.Notes != "" {
		upd.Notes = &req.Notes
	}
	if err := s.store.UpdateContact(r.Context(), chi.URLParam(r, "id"), upd); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "contact_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "contact_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBio(w http.ResponseWriter, r *http.Request) {
	bio, err := s.store.AllBio(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, bio)
}

func (s *Server) handleSetBio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.store.SetBio(r.Context(), chi.URLParam(r, "key"), req.Value); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	msgs, err := s.store.RecentConversations(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
