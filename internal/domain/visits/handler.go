package visits

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
	r.Route("/visits", func(vr chi.Router) {
		vr.With(middleware.RequireCapability(caps, capabilities.VisitsWrite)).Post("/", createVisitHandler(svc))
		vr.Get("/", listVisitsHandler(svc))
		vr.Get("/{visitID}", getVisitHandler(svc))
		vr.With(middleware.RequireCapability(caps, capabilities.VisitsWrite)).Post("/{visitID}/cancel", cancelVisitHandler(svc))
	})
}

type createVisitRequest struct {
	ClinicID     string    `json:"clinic_id"`
	Type         VisitType `json:"type" enums:"inspection,response,follow_up,complaint"`
	ScheduledFor string    `json:"scheduled_for"` // YYYY-MM-DD, opcional (default hoy)
	Notes        string    `json:"notes"`
}

type visitResponse struct {
	ID           string     `json:"id"`
	ClinicID     string     `json:"clinic_id"`
	Type         VisitType  `json:"type"`
	Status       Status     `json:"status"`
	ScheduledFor string     `json:"scheduled_for"`
	CreatedBy    string     `json:"created_by"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

// createVisitHandler godoc
// @Summary Programar visita
// @Description Crea una visita (inspección, respuesta, seguimiento o queja) en estado draft para una clínica existente.
// @Tags visits
// @Accept json
// @Produce json
// @Param payload body createVisitRequest true "Visita; scheduled_for en formato YYYY-MM-DD"
// @Success 201 {object} visitResponse
// @Failure 400 {string} string "invalid input"
// @Failure 404 {string} string "clinic not found"
// @Router /visits [post]
func createVisitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req createVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var scheduled time.Time
		if strings.TrimSpace(req.ScheduledFor) != "" {
			t, err := time.Parse("2006-01-02", req.ScheduledFor)
			if err != nil {
				http.Error(w, "scheduled_for must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			scheduled = t
		}

		v, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			ClinicID:     req.ClinicID,
			Type:         req.Type,
			ScheduledFor: scheduled,
			Notes:        req.Notes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVisitResponse(v))
	}
}

// listVisitsHandler godoc
// @Summary Listar visitas
// @Tags visits
// @Produce json
// @Param clinic_id query string false "Filtrar por clínica"
// @Param status query string false "draft | submitted | cancelled"
// @Param type query string false "inspection | response | follow_up | complaint"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param limit query int false "1-200, default 50"
// @Success 200 {array} visitResponse
// @Router /visits [get]
func listVisitsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]visitResponse, 0, len(items))
		for _, v := range items {
			out = append(out, toVisitResponse(v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getVisitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}
		v, err := svc.GetByID(r.Context(), chi.URLParam(r, "visitID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func cancelVisitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Cancel(r.Context(), chi.URLParam(r, "visitID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		ClinicID: strings.TrimSpace(q.Get("clinic_id")),
		Status:   Status(strings.TrimSpace(q.Get("status"))),
		Type:     VisitType(strings.TrimSpace(q.Get("type"))),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return ListFilter{}, errors.New("from must be YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return ListFilter{}, errors.New("to must be YYYY-MM-DD")
		}
		filter.To = &t
	}
	return filter, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoClinic):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toVisitResponse(v Visit) visitResponse {
	return visitResponse{
		ID:           v.ID,
		ClinicID:     v.ClinicID,
		Type:         v.Type,
		Status:       v.Status,
		ScheduledFor: v.ScheduledFor.Format("2006-01-02"),
		CreatedBy:    v.CreatedBy,
		Notes:        v.Notes,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		SubmittedAt:  v.SubmittedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
