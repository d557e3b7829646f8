package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reliefops/internal/person/models"
	"reliefops/internal/person/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/httputil"
	"reliefops/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/person-mocks.go -package=mocks Service

// Service is the displaced-person API.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Person, error)
	Get(ctx context.Context, personID id.PersonID) (*models.Person, error)
	AssignShelter(ctx context.Context, personID id.PersonID, shelterID id.ShelterID) (*models.Person, error)
	Discharge(ctx context.Context, personID id.PersonID, status models.Status) (*models.Person, error)
	CreateFamilyGroup(ctx context.Context, name string, head *id.PersonID) (*models.FamilyGroup, error)
	GetFamilyGroup(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error)
	AddFamilyMember(ctx context.Context, groupID id.FamilyGroupID, personID id.PersonID) (*models.FamilyGroup, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts person and family-group endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/persons", h.HandleRegister)
	r.Get("/persons/{id}", h.HandleGet)
	r.Post("/persons/{id}/shelter", h.HandleAssignShelter)
	r.Post("/persons/{id}/discharge", h.HandleDischarge)
	r.Post("/family-groups", h.HandleCreateFamilyGroup)
	r.Get("/family-groups/{id}", h.HandleGetFamilyGroup)
	r.Post("/family-groups/{id}/members", h.HandleAddMember)
}

// HandleRegister handles POST /persons.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterPersonRequest](w, r, h.logger)
	if !ok {
		return
	}

	person, err := h.service.Register(ctx, service.RegisterRequest{
		FullName:    req.FullName,
		DateOfBirth: req.parsedDOB,
		Gender:      req.parsedGender,
		Phone:       req.Phone,
		Needs:       req.Needs,
		ShelterID:   req.parsedShelter,
	})
	if err != nil {
		h.writeError(ctx, w, "register person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromPerson(person))
}

// HandleGet handles GET /persons/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	person, err := h.service.Get(r.Context(), personID)
	if err != nil {
		h.writeError(r.Context(), w, "get person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPerson(person))
}

// HandleAssignShelter handles POST /persons/{id}/shelter.
func (h *Handler) HandleAssignShelter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	personID, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssignShelterRequest](w, r, h.logger)
	if !ok {
		return
	}

	person, err := h.service.AssignShelter(ctx, personID, req.parsed)
	if err != nil {
		h.writeError(ctx, w, "assign shelter", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPerson(person))
}

// HandleDischarge handles POST /persons/{id}/discharge.
func (h *Handler) HandleDischarge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	personID, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DischargeRequest](w, r, h.logger)
	if !ok {
		return
	}

	person, err := h.service.Discharge(ctx, personID, models.Status(req.Status))
	if err != nil {
		h.writeError(ctx, w, "discharge person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPerson(person))
}

// HandleCreateFamilyGroup handles POST /family-groups.
func (h *Handler) HandleCreateFamilyGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateFamilyGroupRequest](w, r, h.logger)
	if !ok {
		return
	}

	group, err := h.service.CreateFamilyGroup(ctx, req.Name, req.parsedHead)
	if err != nil {
		h.writeError(ctx, w, "create family group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromFamilyGroup(group))
}

// HandleGetFamilyGroup handles GET /family-groups/{id}.
func (h *Handler) HandleGetFamilyGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseFamilyGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	group, err := h.service.GetFamilyGroup(r.Context(), groupID)
	if err != nil {
		h.writeError(r.Context(), w, "get family group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFamilyGroup(group))
}

// HandleAddMember handles POST /family-groups/{id}/members.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requireActor(w, r) {
		return
	}
	groupID, err := id.ParseFamilyGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddMemberRequest](w, r, h.logger)
	if !ok {
		return
	}

	group, err := h.service.AddFamilyMember(ctx, groupID, req.parsed)
	if err != nil {
		h.writeError(ctx, w, "add family member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFamilyGroup(group))
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) bool {
	if requestcontext.UserID(r.Context()).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return false
	}
	return true
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
