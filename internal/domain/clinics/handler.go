package clinics

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
	r.Route("/clinics", func(cr chi.Router) {
		cr.With(middleware.RequireCapability(caps, capabilities.ClinicsWrite)).Post("/", createClinicHandler(svc))
		cr.Get("/", listClinicsHandler(svc))
		cr.Get("/{clinicID}", getClinicHandler(svc))
		cr.With(middleware.RequireCapability(caps, capabilities.ClinicsWrite)).Patch("/{clinicID}", updateClinicHandler(svc))
	})
}

type createClinicRequest struct {
	Name          string      `json:"name"`
	LicenseNumber string      `json:"license_number"`
	Governorate   Governorate `json:"governorate" enums:"capital,hawalli,farwaniya,ahmadi,jahra,mubarak_al_kabeer"`
	Area          string      `json:"area"`
	Address       string      `json:"address"`
	OwnerName     string      `json:"owner_name"`
	Phone         string      `json:"phone"`
}

type updateClinicRequest struct {
	Name        *string      `json:"name"`
	Governorate *Governorate `json:"governorate"`
	Area        *string      `json:"area"`
	Address     *string      `json:"address"`
	OwnerName   *string      `json:"owner_name"`
	Phone       *string      `json:"phone"`
}

type clinicResponse struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	LicenseNumber string      `json:"license_number"`
	Governorate   Governorate `json:"governorate"`
	Area          string      `json:"area"`
	Address       string      `json:"address"`
	OwnerName     string      `json:"owner_name"`
	Phone         string      `json:"phone"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// createClinicHandler godoc
// @Summary Registrar clínica
// @Tags clinics
// @Accept json
// @Produce json
// @Param payload body createClinicRequest true "Datos de la clínica"
// @Success 201 {object} clinicResponse
// @Failure 400 {string} string "invalid input"
// @Failure 409 {string} string "license number already registered"
// @Router /clinics [post]
func createClinicHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createClinicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.Create(r.Context(), CreateInput{
			Name:          req.Name,
			LicenseNumber: req.LicenseNumber,
			Governorate:   req.Governorate,
			Area:          req.Area,
			Address:       req.Address,
			OwnerName:     req.OwnerName,
			Phone:         req.Phone,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toClinicResponse(c))
	}
}

func listClinicsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		q := r.URL.Query()
		filter := ListFilter{
			Governorate: Governorate(strings.TrimSpace(q.Get("governorate"))),
			Query:       q.Get("q"),
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]clinicResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toClinicResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getClinicHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireClaims(w, r); !ok {
			return
		}

		c, err := svc.GetByID(r.Context(), chi.URLParam(r, "clinicID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toClinicResponse(c))
	}
}

func updateClinicHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updateClinicRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.Update(r.Context(), chi.URLParam(r, "clinicID"), UpdateInput{
			Name:        req.Name,
			Governorate: req.Governorate,
			Area:        req.Area,
			Address:     req.Address,
			OwnerName:   req.OwnerName,
			Phone:       req.Phone,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toClinicResponse(c))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toClinicResponse(c Clinic) clinicResponse {
	return clinicResponse{
		ID:            c.ID,
		Name:          c.Name,
		LicenseNumber: c.LicenseNumber,
		Governorate:   c.Governorate,
		Area:          c.Area,
		Address:       c.Address,
		OwnerName:     c.OwnerName,
		Phone:         c.Phone,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// writeJSON está duplicado en cada módulo a propósito; no hay paquete de helpers compartido todavía.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
