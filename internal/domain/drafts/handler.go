package drafts

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/middleware"
	"dental-inspections/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/visits/{visitID}/draft", openDraftHandler(svc))
	r.Get("/visits/{visitID}/draft", getDraftByVisitHandler(svc))

	r.Get("/drafts/{draftID}", getDraftHandler(svc))
	r.Patch("/drafts/{draftID}", saveSectionsHandler(svc))
	r.Delete("/drafts/{draftID}", discardDraftHandler(svc))
	r.Put("/drafts/{draftID}/sections/{section}", saveSectionHandler(svc))
}

type DraftResponse struct {
	ID        string                     `json:"id"`
	VisitID   string                     `json:"visit_id"`
	Status    Status                     `json:"status"`
	Sections  map[string]json.RawMessage `json:"sections" swaggertype:"object"`
	Version   int64                      `json:"version"`
	CreatedBy string                     `json:"created_by"`
	UpdatedBy string                     `json:"updated_by"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

type saveSectionsRequest struct {
	Sections map[string]json.RawMessage `json:"sections" swaggertype:"object"`
}

// openDraftHandler godoc
// @Summary Abrir borrador de una visita
// @Description Devuelve el borrador abierto de la visita (200) o crea uno nuevo (201).
// @Tags drafts
// @Produce json
// @Param visitID path string true "ID de la visita"
// @Success 200 {object} DraftResponse
// @Success 201 {object} DraftResponse
// @Failure 404 {string} string "visit not found"
// @Failure 409 {string} string "visit is not open"
// @Router /visits/{visitID}/draft [post]
func openDraftHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		d, created, err := svc.Open(r.Context(), chi.URLParam(r, "visitID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !created && !svc.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftRead) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, ToResponse(d))
	}
}

func getDraftByVisitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		d, err := svc.GetByVisit(r.Context(), chi.URLParam(r, "visitID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !svc.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftRead) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(d))
	}
}

// getDraftHandler godoc
// @Summary Obtener borrador
// @Tags drafts
// @Produce json
// @Param draftID path string true "ID del borrador"
// @Success 200 {object} DraftResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "draft not found"
// @Router /drafts/{draftID} [get]
func getDraftHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		d, err := svc.GetByID(r.Context(), chi.URLParam(r, "draftID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !svc.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftRead) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(d))
	}
}

// saveSectionHandler godoc
// @Summary Guardar una sección
// @Description Reemplaza la sección completa (última escritura gana). El cuerpo es un objeto JSON de hasta 1 MiB.
// @Tags drafts
// @Accept json
// @Produce json
// @Param draftID path string true "ID del borrador"
// @Param section path string true "Sección" Enums(general,clinic_hygiene,sterilization,xray,lab,staff,files,violations,signatures,notes)
// @Success 200 {object} DraftResponse
// @Failure 400 {string} string "invalid input"
// @Failure 409 {string} string "draft is locked"
// @Failure 413 {string} string "section too large"
// @Router /drafts/{draftID}/sections/{section} [put]
func saveSectionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		d, ok := loadForEdit(w, r, svc, claims)
		if !ok {
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxSectionBytes+1))
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		updated, err := svc.SaveSection(r.Context(), d.ID, Section(chi.URLParam(r, "section")), body, claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(updated))
	}
}

func saveSectionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		d, ok := loadForEdit(w, r, svc, claims)
		if !ok {
			return
		}

		var req saveSectionsRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, int64(len(Sections))*MaxSectionBytes)).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in := make(map[Section]json.RawMessage, len(req.Sections))
		for k, v := range req.Sections {
			in[Section(k)] = v
		}

		updated, err := svc.SaveSections(r.Context(), d.ID, in, claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(updated))
	}
}

func discardDraftHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		if err := svc.Discard(r.Context(), chi.URLParam(r, "draftID"), claims); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadForEdit(w http.ResponseWriter, r *http.Request, svc *Service, claims auth.Claims) (Draft, bool) {
	d, err := svc.GetByID(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		writeError(w, err)
		return Draft{}, false
	}
	if !svc.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftEdit) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return Draft{}, false
	}
	return d, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoVisit):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrLocked), errors.Is(err, ErrVisitClosed), errors.Is(err, ErrStale):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ToResponse lo reutilizan submissions y el canal en vivo.
func ToResponse(d Draft) DraftResponse {
	sections := make(map[string]json.RawMessage, len(d.Sections))
	for k, v := range d.Sections {
		sections[string(k)] = v
	}
	return DraftResponse{
		ID:        d.ID,
		VisitID:   d.VisitID,
		Status:    d.Status,
		Sections:  sections,
		Version:   d.Version,
		CreatedBy: d.CreatedBy,
		UpdatedBy: d.UpdatedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
