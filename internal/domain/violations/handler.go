package violations

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dental-inspections/internal/middleware"
	"dental-inspections/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, caps capabilities.CapabilitiesResolver) {
	r.With(middleware.RequireCapability(caps, capabilities.ViolationsIssue)).Post("/visits/{visitID}/violations", createReportHandler(svc))
	r.Get("/visits/{visitID}/violations", listReportsHandler(svc))
	r.Get("/visits/{visitID}/violations/{reportID}", getReportHandler(svc))

	// anular: por defecto solo supervisores tienen violations:void
	r.With(middleware.RequireCapability(caps, capabilities.ViolationsVoid)).Post("/visits/{visitID}/violations/{reportID}/void", voidReportHandler(svc))
}

// createReportRequest es el acta tal como la llena el inspector.
type createReportRequest struct {
	Kind        Kind     `json:"kind" enums:"unlicensed_practice,expired_license,sterilization_failure,infection_control,radiation_safety,medical_waste,unlicensed_staff,missing_records,advertising,other"`
	Description string   `json:"description"`
	Articles    []string `json:"articles"`
	Action      Action   `json:"action" enums:"warning,fine,closure,referral"`
	IssuedAt    string   `json:"issued_at"` // RFC3339, opcional
}

type ReportResponse struct {
	ID          string     `json:"id"`
	VisitID     string     `json:"visit_id"`
	Kind        Kind       `json:"kind"`
	KindName    string     `json:"kind_name"`
	Description string     `json:"description"`
	Articles    []string   `json:"articles"`
	Action      Action     `json:"action"`
	IssuedBy    string     `json:"issued_by"`
	IssuedAt    time.Time  `json:"issued_at"`
	RecordedAt  time.Time  `json:"recorded_at"`
	Status      Status     `json:"status"`
	VoidedBy    string     `json:"voided_by,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`
}

// createReportHandler godoc
// @Summary Emitir acta de infracción
// @Description Registra una infracción sobre una visita que sigue en draft. Requiere capability `violations:issue`.
// @Tags violations
// @Accept json
// @Produce json
// @Param visitID path string true "ID de la visita"
// @Param payload body createReportRequest true "Acta; issued_at en formato RFC3339"
// @Success 201 {object} ReportResponse
// @Failure 400 {string} string "invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "visit not found"
// @Failure 409 {string} string "visit is not open"
// @Router /visits/{visitID}/violations [post]
func createReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var issued time.Time
		if v := strings.TrimSpace(req.IssuedAt); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "issued_at must be RFC3339", http.StatusBadRequest)
				return
			}
			issued = t
		}

		rep, err := svc.Create(r.Context(), chi.URLParam(r, "visitID"), claims.UserID, CreateInput{
			Kind:        req.Kind,
			Description: req.Description,
			Articles:    req.Articles,
			Action:      req.Action,
			IssuedAt:    issued,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ToResponse(rep))
	}
}

// listReportsHandler godoc
// @Summary Listar actas de una visita
// @Tags violations
// @Produce json
// @Param visitID path string true "ID de la visita"
// @Param kinds query string false "Lista CSV de tipos (ej: medical_waste,advertising)"
// @Param include_voided query bool false "Incluir actas anuladas"
// @Param limit query int false "1-200, por defecto 50"
// @Success 200 {array} ReportResponse
// @Router /visits/{visitID}/violations [get]
func listReportsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		filter := parseListFilter(r)
		items, err := svc.ListByVisit(r.Context(), chi.URLParam(r, "visitID"), filter)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]ReportResponse, 0, len(items))
		for _, rep := range items {
			out = append(out, ToResponse(rep))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}
		rep, err := svc.GetByID(r.Context(), chi.URLParam(r, "visitID"), chi.URLParam(r, "reportID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(rep))
	}
}

// voidReportHandler godoc
// @Summary Anular acta
// @Description Anula un acta (no se borra). Idempotente. Solo mientras la visita siga en draft. Requiere `violations:void`.
// @Tags violations
// @Produce json
// @Param visitID path string true "ID de la visita"
// @Param reportID path string true "ID del acta"
// @Success 200 {object} ReportResponse
// @Failure 404 {string} string "violation report not found"
// @Failure 409 {string} string "visit is not open"
// @Router /visits/{visitID}/violations/{reportID}/void [post]
func voidReportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		rep, err := svc.Void(r.Context(), chi.URLParam(r, "visitID"), chi.URLParam(r, "reportID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ToResponse(rep))
	}
}

func parseListFilter(r *http.Request) ListFilter {
	filter := ListFilter{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}

	// kinds=medical_waste,advertising
	if v := strings.TrimSpace(r.URL.Query().Get("kinds")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if k := Kind(strings.TrimSpace(p)); k != "" {
				filter.Kinds = append(filter.Kinds, k)
			}
		}
	}

	if v, err := strconv.ParseBool(r.URL.Query().Get("include_voided")); err == nil {
		filter.IncludeVoided = v
	}
	return filter
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoVisit):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrVisitClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func ToResponse(rep Report) ReportResponse {
	articles := rep.Articles
	if articles == nil {
		articles = []string{}
	}
	return ReportResponse{
		ID:          rep.ID,
		VisitID:     rep.VisitID,
		Kind:        rep.Kind,
		KindName:    rep.Kind.ArabicName(),
		Description: rep.Description,
		Articles:    articles,
		Action:      rep.Action,
		IssuedBy:    rep.IssuedBy,
		IssuedAt:    rep.IssuedAt,
		RecordedAt:  rep.RecordedAt,
		Status:      rep.Status,
		VoidedBy:    rep.VoidedBy,
		VoidedAt:    rep.VoidedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
