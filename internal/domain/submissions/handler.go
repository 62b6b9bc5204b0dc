package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/domain/visits"
	"dental-inspections/internal/middleware"
	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

// DraftAccess: drafts.Service cumple esta interfaz.
type DraftAccess interface {
	GetByID(ctx context.Context, id string) (drafts.Draft, error)
	CanAccess(ctx context.Context, d drafts.Draft, who auth.Claims, scope collaborators.Scope) bool
}

func RegisterRoutes(r chi.Router, svc *Service, access DraftAccess, caps capabilities.CapabilitiesResolver) {
	r.With(middleware.RequireCapability(caps, capabilities.InspectionsSubmit)).Post("/drafts/{draftID}/submit", submitHandler(svc, access))

	r.Get("/submissions", listSubmissionsHandler(svc))
	r.Get("/submissions/{submissionID}", getSubmissionHandler(svc, access))
}

type SubmissionResponse struct {
	ID              string                     `json:"id"`
	ReferenceNumber string                     `json:"reference_number"`
	DraftID         string                     `json:"draft_id"`
	VisitID         string                     `json:"visit_id"`
	ClinicID        string                     `json:"clinic_id"`
	VisitType       string                     `json:"visit_type"`
	Sections        map[string]json.RawMessage `json:"sections" swaggertype:"object"`
	Violations      []ViolationSnapshot        `json:"violations"`
	SubmittedBy     string                     `json:"submitted_by"`
	SubmittedAt     time.Time                  `json:"submitted_at"`
}

type incompleteResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

// submitHandler godoc
// @Summary Enviar inspección
// @Description Archiva el borrador (secciones general y signatures obligatorias), asigna número MOH-DENT-<año>-<seq> y bloquea el borrador. Requiere `inspections:submit` y acceso draft:submit al borrador.
// @Tags submissions
// @Produce json
// @Param draftID path string true "ID del borrador"
// @Success 201 {object} SubmissionResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "draft not found"
// @Failure 409 {string} string "draft is locked"
// @Failure 422 {object} incompleteResponse
// @Router /drafts/{draftID}/submit [post]
func submitHandler(svc *Service, access DraftAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		d, err := access.GetByID(r.Context(), chi.URLParam(r, "draftID"))
		if err != nil {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		if !access.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftSubmit) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		sub, err := svc.Submit(r.Context(), d.ID, claims.UserID)
		if err != nil {
			var inc *IncompleteError
			if errors.As(err, &inc) {
				writeJSON(w, http.StatusUnprocessableEntity, incompleteResponse{Error: ErrIncomplete.Error(), Missing: inc.Missing})
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ToResponse(sub))
	}
}

// listSubmissionsHandler godoc
// @Summary Listar inspecciones enviadas
// @Description Supervisores ven todas; inspectores solo las que enviaron.
// @Tags submissions
// @Produce json
// @Param clinic_id query string false "Filtrar por clínica"
// @Param reference query string false "Número de referencia exacto"
// @Param from query string false "Desde (YYYY-MM-DD)"
// @Param to query string false "Hasta (YYYY-MM-DD, inclusive)"
// @Param limit query int false "1-200, por defecto 50"
// @Success 200 {array} SubmissionResponse
// @Router /submissions [get]
func listSubmissionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		if ref := strings.TrimSpace(q.Get("reference")); ref != "" {
			sub, err := svc.GetByReference(r.Context(), ref)
			if err != nil || (!claims.IsSupervisor() && sub.SubmittedBy != claims.UserID) {
				writeJSON(w, http.StatusOK, []SubmissionResponse{})
				return
			}
			writeJSON(w, http.StatusOK, []SubmissionResponse{ToResponse(sub)})
			return
		}

		filter := ListFilter{ClinicID: strings.TrimSpace(q.Get("clinic_id"))}
		if !claims.IsSupervisor() {
			filter.SubmittedBy = claims.UserID
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := strings.TrimSpace(q.Get("from")); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			filter.From = &t
		}
		if v := strings.TrimSpace(q.Get("to")); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.To = &end
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]SubmissionResponse, 0, len(items))
		for _, s := range items {
			out = append(out, ToResponse(s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getSubmissionHandler(svc *Service, access DraftAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		sub, err := svc.GetByID(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !CanRead(r.Context(), sub, claims, access) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(sub))
	}
}

// CanRead: supervisor, quien envió, o quien tenía acceso de lectura al borrador.
func CanRead(ctx context.Context, sub Submission, who auth.Claims, access DraftAccess) bool {
	if who.UserID == "" {
		return false
	}
	if who.IsSupervisor() || sub.SubmittedBy == who.UserID {
		return true
	}
	if access == nil {
		return false
	}
	d, err := access.GetByID(ctx, sub.DraftID)
	if err != nil {
		return false
	}
	return access.CanAccess(ctx, d, who, collaborators.ScopeDraftRead)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound), errors.Is(err, drafts.ErrNotFound), errors.Is(err, visits.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrLocked), errors.Is(err, ErrVisitClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func ToResponse(s Submission) SubmissionResponse {
	v := s.Violations
	if v == nil {
		v = []ViolationSnapshot{}
	}
	return SubmissionResponse{
		ID:              s.ID,
		ReferenceNumber: s.ReferenceNumber,
		DraftID:         s.DraftID,
		VisitID:         s.VisitID,
		ClinicID:        s.ClinicID,
		VisitType:       s.VisitType,
		Sections:        s.Sections,
		Violations:      v,
		SubmittedBy:     s.SubmittedBy,
		SubmittedAt:     s.SubmittedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
