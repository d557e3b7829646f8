package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reliefops/internal/emergency/models"
	"reliefops/internal/emergency/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/httputil"
	"reliefops/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/emergency-mocks.go -package=mocks Service

// Service is the call pipeline as seen by dispatch consoles.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Call, error)
	Get(ctx context.Context, callID id.EmergencyCallID) (*models.Call, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Call, error)
	Triage(ctx context.Context, callID id.EmergencyCallID, urgency models.Urgency, notes *string) (*models.Call, error)
	Dispatch(ctx context.Context, callID id.EmergencyCallID, req service.DispatchRequest) (*service.DispatchResult, error)
	Resolve(ctx context.Context, callID id.EmergencyCallID, notes *string) (*models.Call, error)
	MarkDuplicate(ctx context.Context, callID, original id.EmergencyCallID) (*models.Call, error)
	MarkFalseAlarm(ctx context.Context, callID id.EmergencyCallID, notes *string) (*models.Call, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts emergency call endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/emergency-calls", h.HandleCreate)
	r.Get("/emergency-calls", h.HandleList)
	r.Get("/emergency-calls/{id}", h.HandleGet)
	r.Post("/emergency-calls/{id}/triage", h.HandleTriage)
	r.Post("/emergency-calls/{id}/dispatch", h.HandleDispatch)
	r.Post("/emergency-calls/{id}/resolve", h.HandleResolve)
	r.Post("/emergency-calls/{id}/duplicate", h.HandleDuplicate)
	r.Post("/emergency-calls/{id}/false-alarm", h.HandleFalseAlarm)
}

// HandleCreate handles POST /emergency-calls.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateCallRequest](w, r, h.logger)
	if !ok {
		return
	}
	call, err := h.service.Create(ctx, req.toServiceRequest())
	if err != nil {
		h.writeError(ctx, w, "log emergency call", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCall(call))
}

// HandleGet handles GET /emergency-calls/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	call, err := h.service.Get(r.Context(), callID)
	if err != nil {
		h.writeError(r.Context(), w, "get emergency call", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCall(call))
}

// HandleList handles GET /emergency-calls?status=&urgency=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	calls, err := h.service.List(r.Context(), models.ListFilter{
		Status:  models.Status(q.Get("status")),
		Urgency: models.Urgency(q.Get("urgency")),
	})
	if err != nil {
		h.writeError(r.Context(), w, "list emergency calls", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCalls(calls))
}

// HandleTriage handles POST /emergency-calls/{id}/triage.
func (h *Handler) HandleTriage(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TriageRequest](w, r, h.logger)
	if !ok {
		return
	}
	call, err := h.service.Triage(r.Context(), callID, models.Urgency(req.Urgency), req.Notes)
	if err != nil {
		h.writeError(r.Context(), w, "triage emergency call", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCall(call))
}

// HandleDispatch handles POST /emergency-calls/{id}/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DispatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.service.Dispatch(r.Context(), callID, service.DispatchRequest{
		OrgID:                  req.parsedOrg,
		CreateRescue:           req.CreateRescue,
		EstimatedPersonsAtRisk: req.EstimatedPersonsAtRisk,
	})
	if err != nil {
		h.writeError(r.Context(), w, "dispatch emergency call", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDispatch(result))
}

// HandleResolve handles POST /emergency-calls/{id}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	h.handleNotes(w, r, "resolve emergency call", h.service.Resolve)
}

// HandleFalseAlarm handles POST /emergency-calls/{id}/false-alarm.
func (h *Handler) HandleFalseAlarm(w http.ResponseWriter, r *http.Request) {
	h.handleNotes(w, r, "mark false alarm", h.service.MarkFalseAlarm)
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, id.EmergencyCallID, *string) (*models.Call, error)) {
	callID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[NotesRequest](w, r, h.logger)
	if !ok {
		return
	}
	call, err := fn(r.Context(), callID, req.Notes)
	if err != nil {
		h.writeError(r.Context(), w, action, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCall(call))
}

// HandleDuplicate handles POST /emergency-calls/{id}/duplicate.
func (h *Handler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DuplicateRequest](w, r, h.logger)
	if !ok {
		return
	}
	call, err := h.service.MarkDuplicate(r.Context(), callID, req.parsedOriginal)
	if err != nil {
		h.writeError(r.Context(), w, "mark duplicate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCall(call))
}

func (h *Handler) mutationTarget(w http.ResponseWriter, r *http.Request) (id.EmergencyCallID, bool) {
	if !h.requireActor(w, r) {
		return id.EmergencyCallID{}, false
	}
	return h.callID(w, r)
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) bool {
	if requestcontext.UserID(r.Context()).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return false
	}
	return true
}

func (h *Handler) callID(w http.ResponseWriter, r *http.Request) (id.EmergencyCallID, bool) {
	callID, err := id.ParseEmergencyCallID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EmergencyCallID{}, false
	}
	return callID, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	level := slog.LevelWarn
	if de, ok := dErrors.As(err); !ok || de.Code == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "failed to "+action,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
