package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reliefops/internal/shelter/models"
	"reliefops/internal/shelter/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/httputil"
	"reliefops/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/shelter-mocks.go -package=mocks Service

// Service is the part of the shelter ledger exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Shelter, error)
	Get(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Shelter, error)
	Open(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error)
	Close(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error)
	SoftDelete(ctx context.Context, shelterID id.ShelterID) error
}

// Handler serves the shelter endpoints.
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

// Register mounts shelter endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shelters", h.HandleCreate)
	r.Get("/shelters", h.HandleList)
	r.Get("/shelters/{id}", h.HandleGet)
	r.Post("/shelters/{id}/open", h.HandleOpen)
	r.Post("/shelters/{id}/close", h.HandleClose)
	r.Delete("/shelters/{id}", h.HandleDelete)
}

// HandleCreate handles POST /shelters.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateShelterRequest](w, r, h.logger)
	if !ok {
		return
	}

	shelter, err := h.service.Create(ctx, service.CreateRequest{
		Name:        req.Name,
		FloodZoneID: req.parsedZone,
		Location:    req.parsedLocation,
		Capacity:    req.Capacity,
	})
	if err != nil {
		h.writeError(ctx, w, "create shelter", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromShelter(shelter))
}

// HandleGet handles GET /shelters/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	shelterID, ok := h.shelterID(w, r)
	if !ok {
		return
	}
	shelter, err := h.service.Get(r.Context(), shelterID)
	if err != nil {
		h.writeError(r.Context(), w, "get shelter", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromShelter(shelter))
}

// HandleList handles GET /shelters with optional status and flood_zone_id filters.
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

	shelters, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(r.Context(), w, "list shelters", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromShelters(shelters))
}

// HandleOpen handles POST /shelters/{id}/open.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "open shelter", h.service.Open)
}

// HandleClose handles POST /shelters/{id}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "close shelter", h.service.Close)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, id.ShelterID) (*models.Shelter, error)) {
	if !h.requireActor(w, r) {
		return
	}
	shelterID, ok := h.shelterID(w, r)
	if !ok {
		return
	}
	shelter, err := fn(r.Context(), shelterID)
	if err != nil {
		h.writeError(r.Context(), w, action, err)
		return
	}
	h.logger.InfoContext(r.Context(), "shelter status changed",
		"request_id", requestcontext.RequestID(r.Context()),
		"shelter_id", shelter.ID,
		"status", shelter.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, FromShelter(shelter))
}

// HandleDelete handles DELETE /shelters/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireActor(w, r) {
		return
	}
	shelterID, ok := h.shelterID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), shelterID); err != nil {
		h.writeError(r.Context(), w, "delete shelter", err)
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

func (h *Handler) shelterID(w http.ResponseWriter, r *http.Request) (id.ShelterID, bool) {
	shelterID, err := id.ParseShelterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ShelterID{}, false
	}
	return shelterID, true
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
