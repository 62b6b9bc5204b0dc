package collaborators

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dental-inspections/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// DraftOwnerLookup evita importar drafts (drafts sí importa este paquete).
type DraftOwnerLookup interface {
	OwnerOf(ctx context.Context, draftID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, drafts DraftOwnerLookup) {
	r.Route("/drafts/{draftID}/collaborators", func(gr chi.Router) {
		gr.Post("/", inviteHandler(svc, drafts))
		gr.Get("/", listByDraftHandler(svc, drafts))
	})

	r.Route("/collaborations/{grantID}", func(gr chi.Router) {
		gr.Post("/accept", acceptHandler(svc))
		gr.Post("/revoke", revokeHandler(svc))
	})

	r.Get("/me/collaborations", listMineHandler(svc))
}

type inviteRequest struct {
	GranteeUserID string  `json:"grantee_user_id"`
	Scopes        []Scope `json:"scopes"`
}

type grantResponse struct {
	ID            string     `json:"id"`
	DraftID       string     `json:"draft_id"`
	OwnerUserID   string     `json:"owner_user_id"`
	GranteeUserID string     `json:"grantee_user_id"`
	Scopes        []Scope    `json:"scopes"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// requireOwner: solo quien abrió el borrador administra colaboradores.
func requireOwner(w http.ResponseWriter, r *http.Request, drafts DraftOwnerLookup, userID string) (string, bool) {
	draftID := chi.URLParam(r, "draftID")
	ownerID, err := drafts.OwnerOf(r.Context(), draftID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "draft not found", http.StatusNotFound)
		return "", false
	}
	if ownerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return draftID, true
}

// inviteHandler godoc
// @Summary Invitar colaborador a un borrador
// @Description Solo el inspector que abrió el borrador puede invitar. Scopes vacíos = draft:read + draft:edit.
// @Tags collaborators
// @Accept json
// @Produce json
// @Param draftID path string true "ID del borrador"
// @Param payload body inviteRequest true "Colaborador y scopes"
// @Success 201 {object} grantResponse
// @Failure 400 {string} string "invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "draft not found"
// @Router /drafts/{draftID}/collaborators [post]
func inviteHandler(svc *Service, drafts DraftOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		draftID, ok := requireOwner(w, r, drafts, claims.UserID)
		if !ok {
			return
		}

		var req inviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.GranteeUserID) == "" {
			http.Error(w, "grantee_user_id required", http.StatusBadRequest)
			return
		}

		g, err := svc.Invite(r.Context(), InviteInput{
			DraftID:       draftID,
			OwnerUserID:   claims.UserID,
			GranteeUserID: req.GranteeUserID,
			Scopes:        req.Scopes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

func listByDraftHandler(svc *Service, drafts DraftOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		draftID, ok := requireOwner(w, r, drafts, claims.UserID)
		if !ok {
			return
		}

		items, err := svc.ListByDraft(r.Context(), draftID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func listMineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		// status=invited,active (CSV opcional)
		allowed := parseStatusFilter(r.URL.Query().Get("status"))

		items, err := svc.ListByGrantee(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(allowed) > 0 {
			filtered := make([]Grant, 0, len(items))
			for _, g := range items {
				if _, ok := allowed[g.Status]; ok {
					filtered = append(filtered, g)
				}
			}
			items = filtered
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items))
	}
}

func acceptHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		g, err := svc.Accept(r.Context(), chi.URLParam(r, "grantID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func revokeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		g, err := svc.Revoke(r.Context(), chi.URLParam(r, "grantID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponses(items []Grant) []grantResponse {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGrantResponse(g))
	}
	return out
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:            g.ID,
		DraftID:       g.DraftID,
		OwnerUserID:   g.OwnerUserID,
		GranteeUserID: g.GranteeUserID,
		Scopes:        g.Scopes,
		Status:        g.Status,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		RevokedAt:     g.RevokedAt,
	}
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[Status]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		s := Status(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
