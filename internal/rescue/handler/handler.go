package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reliefops/internal/rescue/models"
	"reliefops/internal/rescue/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/httputil"
	"reliefops/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/rescue-mocks.go -package=mocks Service

// Service is the rescue state machine as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Operation, error)
	Get(ctx context.Context, opID id.RescueOperationID) (*models.Operation, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Operation, error)
	Dispatch(ctx context.Context, opID id.RescueOperationID) (*models.Operation, error)
	UpdateStatus(ctx context.Context, opID id.RescueOperationID, status models.Status, personsRescued *int, notes *string) (*models.Operation, error)
	Complete(ctx context.Context, opID id.RescueOperationID, personsRescued int, notes *string) (*models.Operation, error)
	AssignTeam(ctx context.Context, opID id.RescueOperationID, userIDs []id.UserID, leaderID *id.UserID) (*models.Team, error)
	Team(ctx context.Context, opID id.RescueOperationID) (*models.Team, error)
	Delete(ctx context.Context, opID id.RescueOperationID) error
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

// Register mounts rescue operation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/rescue-operations", h.HandleCreate)
	r.Get("/rescue-operations", h.HandleList)
	r.Get("/rescue-operations/{id}", h.HandleGet)
	r.Post("/rescue-operations/{id}/dispatch", h.HandleDispatch)
	r.Post("/rescue-operations/{id}/status", h.HandleUpdateStatus)
	r.Post("/rescue-operations/{id}/complete", h.HandleComplete)
	r.Put("/rescue-operations/{id}/team", h.HandleAssignTeam)
	r.Get("/rescue-operations/{id}/team", h.HandleTeam)
	r.Delete("/rescue-operations/{id}", h.HandleDelete)
}

// HandleCreate handles POST /rescue-operations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateOperationRequest](w, r, h.logger)
	if !ok {
		return
	}

	op, err := h.service.Create(ctx, req.toServiceRequest())
	if err != nil {
		h.writeError(ctx, w, "create rescue operation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromOperation(op))
}

// HandleGet handles GET /rescue-operations/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	op, err := h.service.Get(r.Context(), opID)
	if err != nil {
		h.writeError(r.Context(), w, "get rescue operation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOperation(op))
}

// HandleList handles GET /rescue-operations?status=&flood_zone_id=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := models.ListFilter{Status: models.Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("flood_zone_id"); raw != "" {
		zoneID, err := id.ParseFloodZoneID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.FloodZoneID = &zoneID
	}
	ops, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(r.Context(), w, "list rescue operations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOperations(ops))
}

// HandleDispatch handles POST /rescue-operations/{id}/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireActor(w, r) {
		return
	}
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	op, err := h.service.Dispatch(r.Context(), opID)
	if err != nil {
		h.writeError(r.Context(), w, "dispatch rescue operation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOperation(op))
}

// HandleUpdateStatus handles POST /rescue-operations/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireActor(w, r) {
		return
	}
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger)
	if !ok {
		return
	}
	op, err := h.service.UpdateStatus(r.Context(), opID, models.Status(req.Status), req.PersonsRescued, req.Notes)
	if err != nil {
		h.writeError(r.Context(), w, "update rescue status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOperation(op))
}

// HandleComplete handles POST /rescue-operations/{id}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if !h.requireActor(w, r) {
		return
	}
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CompleteRequest](w, r, h.logger)
	if !ok {
		return
	}
	op, err := h.service.Complete(r.Context(), opID, *req.PersonsRescued, req.Notes)
	if err != nil {
		h.writeError(r.Context(), w, "complete rescue operation", err)
		return
	}
	h.logger.InfoContext(r.Context(), "rescue operation completed",
		"request_id", requestcontext.RequestID(r.Context()),
		"operation_id", op.ID,
		"persons_rescued", op.PersonsRescued,
	)
	httputil.WriteJSON(w, http.StatusOK, FromOperation(op))
}

// HandleAssignTeam handles PUT /rescue-operations/{id}/team.
func (h *Handler) HandleAssignTeam(w http.ResponseWriter, r *http.Request) {
	if !h.requireActor(w, r) {
		return
	}
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignTeamRequest](w, r, h.logger)
	if !ok {
		return
	}
	team, err := h.service.AssignTeam(r.Context(), opID, req.parsedUsers, req.parsedLeader)
	if err != nil {
		h.writeError(r.Context(), w, "assign rescue team", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTeam(team))
}

// HandleTeam handles GET /rescue-operations/{id}/team.
func (h *Handler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	team, err := h.service.Team(r.Context(), opID)
	if err != nil {
		h.writeError(r.Context(), w, "get rescue team", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTeam(team))
}

// HandleDelete handles DELETE /rescue-operations/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireActor(w, r) {
		return
	}
	opID, ok := h.operationID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), opID); err != nil {
		h.writeError(r.Context(), w, "delete rescue operation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) bool {
	if requestcontext.UserID(r.Context()).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return false
	}
	return true
}

func (h *Handler) operationID(w http.ResponseWriter, r *http.Request) (id.RescueOperationID, bool) {
	opID, err := id.ParseRescueOperationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.RescueOperationID{}, false
	}
	return opID, true
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
