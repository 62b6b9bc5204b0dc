package printing

import (
	"errors"
	"net/http"

	"dental-inspections/internal/domain/submissions"
	"dental-inspections/internal/middleware"
	"dental-inspections/internal/ports/capabilities"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, access submissions.DraftAccess, caps capabilities.CapabilitiesResolver) {
	pr := r.With(middleware.RequireCapability(caps, capabilities.InspectionsPrint))
	pr.Get("/submissions/{submissionID}/print", printSubmissionHandler(svc, access))
	pr.Get("/visits/{visitID}/violations/{reportID}/print", printViolationHandler(svc))
}

// printSubmissionHandler godoc
// @Summary Imprimir inspección
// @Description Documento oficial HTML (RTL) listo para imprimir. Requiere `inspections:print`.
// @Tags printing
// @Produce html
// @Param submissionID path string true "ID de la inspección enviada"
// @Success 200 {string} string "text/html"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "submission not found"
// @Router /submissions/{submissionID}/print [get]
func printSubmissionHandler(svc *Service, access submissions.DraftAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		sub, err := svc.src.Submissions.GetByID(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		if !submissions.CanRead(r.Context(), sub, claims, access) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := svc.RenderSubmission(r.Context(), w, sub); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// printViolationHandler godoc
// @Summary Imprimir acta de infracción
// @Tags printing
// @Produce html
// @Param visitID path string true "ID de la visita"
// @Param reportID path string true "ID del acta"
// @Success 200 {string} string "text/html"
// @Failure 404 {string} string "violation report not found"
// @Router /visits/{visitID}/violations/{reportID}/print [get]
func printViolationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := svc.RenderViolation(r.Context(), w, chi.URLParam(r, "visitID"), chi.URLParam(r, "reportID"))
		if err != nil {
			w.Header().Del("Content-Type")
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "violation report not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
