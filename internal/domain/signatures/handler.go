package signatures

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/middleware"
	"dental-inspections/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// DraftAccess: drafts.Service cumple esta interfaz.
type DraftAccess interface {
	GetByID(ctx context.Context, id string) (drafts.Draft, error)
	CanAccess(ctx context.Context, d drafts.Draft, who auth.Claims, scope collaborators.Scope) bool
}

func RegisterRoutes(r chi.Router, svc *Service, access DraftAccess) {
	r.Post("/drafts/{draftID}/signatures/{role}", signHandler(svc, access))
	r.Delete("/drafts/{draftID}/signatures/{role}", clearHandler(svc, access))
}

type signRequest struct {
	Image      string `json:"image"` // data URL o base64 de PNG/JPEG
	SignerName string `json:"signer_name"`
}

type signResponse struct {
	DraftID string `json:"draft_id"`
	Version int64  `json:"version"`
	Role    Role   `json:"role"`
	Entry   Entry  `json:"signature"`
}

// signHandler godoc
// @Summary Firmar o sellar un borrador
// @Description Recorta la firma al trazo, la reduce a 600x300 como máximo y la guarda en la sección signatures bajo el rol.
// @Tags signatures
// @Accept json
// @Produce json
// @Param draftID path string true "ID del borrador"
// @Param role path string true "Rol" Enums(inspector,clinic_manager,clinic_stamp,supervisor)
// @Param payload body signRequest true "Imagen y nombre del firmante"
// @Success 200 {object} signResponse
// @Failure 400 {string} string "invalid signature image"
// @Failure 409 {string} string "draft is locked"
// @Failure 413 {string} string "signature image too large"
// @Failure 422 {string} string "signature is blank"
// @Router /drafts/{draftID}/signatures/{role} [post]
func signHandler(svc *Service, access DraftAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		d, ok := loadForEdit(w, r, access, claims)
		if !ok {
			return
		}

		var req signRequest
		// base64 agranda ~4/3; margen para el resto del JSON
		if err := json.NewDecoder(io.LimitReader(r.Body, MaxImageBytes*2)).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		role := Role(chi.URLParam(r, "role"))
		updated, entry, err := svc.Sign(r.Context(), SignInput{
			DraftID:    d.ID,
			Role:       role,
			Image:      req.Image,
			SignerName: req.SignerName,
			ActorID:    claims.UserID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, signResponse{DraftID: updated.ID, Version: updated.Version, Role: role, Entry: entry})
	}
}

func clearHandler(svc *Service, access DraftAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		d, ok := loadForEdit(w, r, access, claims)
		if !ok {
			return
		}
		if _, err := svc.Clear(r.Context(), d.ID, Role(chi.URLParam(r, "role")), claims.UserID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadForEdit(w http.ResponseWriter, r *http.Request, access DraftAccess, claims auth.Claims) (drafts.Draft, bool) {
	d, err := access.GetByID(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		http.Error(w, "draft not found", http.StatusNotFound)
		return drafts.Draft{}, false
	}
	if !access.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftEdit) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return drafts.Draft{}, false
	}
	return d, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidImage), errors.Is(err, ErrUnknownRole):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrTooLarge), errors.Is(err, drafts.ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrBlank):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, drafts.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, drafts.ErrLocked), errors.Is(err, drafts.ErrStale):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
