// Package admin exposes operator endpoints guarded by a shared admin token
// instead of user bearer tokens.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reliefops/internal/geodata"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/httputil"
	adminmw "reliefops/pkg/platform/middleware/admin"
	"reliefops/pkg/requestcontext"
)

// maxImportBytes bounds a GIS export upload.
const maxImportBytes = 8 << 20

// Handler imports flood zones published by the GIS team.
type Handler struct {
	zones  geodata.Seeder
	token  string
	logger *slog.Logger
}

func New(zones geodata.Seeder, token string, logger *slog.Logger) *Handler {
	return &Handler{zones: zones, token: token, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.token, h.logger))
		r.Post("/flood-zones", h.HandleImportZones)
	})
}

// HandleImportZones upserts every feature of a GeoJSON FeatureCollection.
// A malformed feature rejects the upload before anything is stored.
func (h *Handler) HandleImportZones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	zones, err := geodata.ParseFeatureCollection(body, requestcontext.Now(ctx))
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid flood zone collection"))
		return
	}
	for _, z := range zones {
		if err := h.zones.Upsert(ctx, z); err != nil {
			h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store flood zone"))
			return
		}
	}

	h.logger.InfoContext(ctx, "flood zones imported",
		"zones", len(zones),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, ImportResponse{Imported: len(zones)})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "failed to import flood zones",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

type ImportResponse struct {
	Imported int `json:"imported"`
}
