// Package live expone el canal WebSocket de un borrador: presencia, avisos de cambios
// y ediciones que se encolan en el autosave.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/middleware"
	"dental-inspections/internal/platform/logger"
	"dental-inspections/internal/platform/metrics"
	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// DraftAccess: drafts.Service cumple esta interfaz.
type DraftAccess interface {
	GetByID(ctx context.Context, id string) (drafts.Draft, error)
	CanAccess(ctx context.Context, d drafts.Draft, who auth.Claims, scope collaborators.Scope) bool
}

// Queuer: autosave.Debouncer cumple esta interfaz.
type Queuer interface {
	Queue(draftID, actorID, section string, data json.RawMessage) error
	FlushDraft(ctx context.Context, draftID string)
}

type Options struct {
	Drafts   DraftAccess
	Hub      realtime.Hub
	Autosave Queuer
	Logger   logger.Logger
	Metrics  *metrics.Metrics

	PingInterval time.Duration
	WriteTimeout time.Duration
	// CheckOrigin nil = mismo origen (default de gorilla).
	CheckOrigin func(r *http.Request) bool
}

type handler struct {
	opts     Options
	log      logger.Logger
	upgrader websocket.Upgrader
}

func RegisterRoutes(r chi.Router, opts Options) {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	h := &handler{
		opts: opts,
		log:  log.With(map[string]any{"module": "live"}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
	}

	r.Get("/drafts/{draftID}/live", h.serveLive)
	r.Get("/drafts/{draftID}/presence", h.presence)
}

// clientFrame: {"type":"heartbeat"} | {"type":"edit","section":"lab","data":{...}}
type clientFrame struct {
	Type    string          `json:"type"`
	Section string          `json:"section,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type snapshotFrame struct {
	Type    string            `json:"type"`
	ConnID  string            `json:"conn_id"`
	DraftID string            `json:"draft_id"`
	Version int64             `json:"version"`
	Status  drafts.Status     `json:"status"`
	CanEdit bool              `json:"can_edit"`
	Members []realtime.Member `json:"members"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Section string `json:"section,omitempty"`
}

type ackFrame struct {
	Type    string `json:"type"`
	Section string `json:"section"`
}

type presenceResponse struct {
	DraftID string            `json:"draft_id"`
	Members []realtime.Member `json:"members"`
}

func (h *handler) authorize(w http.ResponseWriter, r *http.Request) (auth.Claims, drafts.Draft, bool) {
	claims, ok := middleware.RequireClaims(w, r)
	if !ok {
		return auth.Claims{}, drafts.Draft{}, false
	}
	d, err := h.opts.Drafts.GetByID(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		http.Error(w, "draft not found", http.StatusNotFound)
		return auth.Claims{}, drafts.Draft{}, false
	}
	if !h.opts.Drafts.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftRead) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, drafts.Draft{}, false
	}
	return claims, d, true
}

// presence godoc
// @Summary Quién está en el borrador
// @Tags live
// @Produce json
// @Param draftID path string true "ID del borrador"
// @Success 200 {object} presenceResponse
// @Router /drafts/{draftID}/presence [get]
func (h *handler) presence(w http.ResponseWriter, r *http.Request) {
	_, d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	members, err := h.opts.Hub.Members(r.Context(), d.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, presenceResponse{DraftID: d.ID, Members: members})
}

// serveLive godoc
// @Summary Canal en vivo del borrador (WebSocket)
// @Description Presencia + eventos draft.updated / draft.submitted. El cliente manda heartbeat y edit. En navegador el token va en ?access_token=.
// @Tags live
// @Param draftID path string true "ID del borrador"
// @Success 101 {string} string "switching protocols"
// @Router /drafts/{draftID}/live [get]
func (h *handler) serveLive(w http.ResponseWriter, r *http.Request) {
	claims, d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	canEdit := !d.Locked() && h.opts.Drafts.CanAccess(r.Context(), d, claims, collaborators.ScopeDraftEdit)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió con el error HTTP
		h.log.Warn("websocket upgrade failed", map[string]any{"draft_id": d.ID, "error": err})
		return
	}

	s := &session{
		h:      h,
		conn:   conn,
		claims: claims,
		draft:  d,
		connID: uuid.NewString(),
		out:    make(chan any, 32),
	}
	s.canEdit.Store(canEdit)
	s.run(context.WithoutCancel(r.Context()))
}

type session struct {
	h       *handler
	conn    *websocket.Conn
	claims  auth.Claims
	draft   drafts.Draft
	connID  string
	canEdit atomic.Bool
	out     chan any
}

func (s *session) run(parent context.Context) {
	h := s.h
	draftID := s.draft.ID
	log := h.log.With(map[string]any{"draft_id": draftID, "conn_id": s.connID, "user_id": s.claims.UserID})

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	sub, err := h.opts.Hub.Subscribe(ctx, draftID)
	if err != nil {
		log.Error("subscribe failed", map[string]any{"error": err})
		_ = s.conn.WriteJSON(errorFrame{Type: "error", Error: "realtime unavailable"})
		return
	}
	defer sub.Close()

	member := realtime.Member{
		ConnID: s.connID,
		UserID: s.claims.UserID,
		Name:   s.claims.Name,
		Role:   string(s.claims.Role),
	}
	if err := h.opts.Hub.Join(ctx, draftID, member); err != nil {
		log.Error("join failed", map[string]any{"error": err})
		return
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.LiveConnections.Inc()
		defer h.opts.Metrics.LiveConnections.Dec()
	}
	log.Info("live joined", nil)

	defer func() {
		// contexto nuevo: el de la sesión ya está cancelado
		done, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := h.opts.Hub.Leave(done, draftID, s.connID); err != nil {
			log.Warn("leave failed", map[string]any{"error": err})
		}
		s.publishPresence(done)
		if h.opts.Autosave != nil {
			h.opts.Autosave.FlushDraft(done, draftID)
		}
		log.Info("live left", nil)
	}()

	members := s.publishPresence(ctx)
	s.out <- snapshotFrame{
		Type:    "snapshot",
		ConnID:  s.connID,
		DraftID: draftID,
		Version: s.draft.Version,
		Status:  s.draft.Status,
		CanEdit: s.canEdit.Load(),
		Members: members,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writeLoop(gctx, sub) })
	g.Go(func() error { return s.readLoop(gctx) })

	if err := g.Wait(); err != nil && !isNormalClose(err) {
		log.Debug("live closed", map[string]any{"error": err})
	}
}

func (s *session) publishPresence(ctx context.Context) []realtime.Member {
	hub := s.h.opts.Hub
	members, err := hub.Members(ctx, s.draft.ID)
	if err != nil {
		return nil
	}
	_ = hub.Publish(ctx, s.draft.ID, realtime.Event{
		Type:    realtime.EventPresenceChanged,
		DraftID: s.draft.ID,
		ActorID: s.claims.UserID,
		Members: members,
	})
	return members
}

func (s *session) writeLoop(ctx context.Context, sub *realtime.Subscription) error {
	// cerrar la conexión desbloquea ReadJSON en readLoop
	defer s.conn.Close()

	ping := time.NewTicker(s.h.opts.PingInterval)
	defer ping.Stop()

	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil

		case e, ok := <-sub.Events():
			if !ok {
				return errors.New("live: subscription closed")
			}
			if e.Type == realtime.EventDraftSubmitted {
				s.canEdit.Store(false)
			}
			if err := s.write(e); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.h.log.Warn("subscription error", map[string]any{"draft_id": s.draft.ID, "error": err})

		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				return err
			}

		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.h.opts.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

func (s *session) write(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.opts.WriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *session) readLoop(ctx context.Context) error {
	hub := s.h.opts.Hub
	pongWait := 3 * s.h.opts.PingInterval

	s.conn.SetReadLimit(drafts.MaxSectionBytes + 64<<10)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = hub.Touch(ctx, s.draft.ID, s.connID)
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f clientFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) {
				s.send(ctx, errorFrame{Type: "error", Error: "invalid frame"})
				continue
			}
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch f.Type {
		case "heartbeat":
			_ = hub.Touch(ctx, s.draft.ID, s.connID)

		case "edit":
			s.edit(ctx, f)

		default:
			s.send(ctx, errorFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}

func (s *session) edit(ctx context.Context, f clientFrame) {
	if !s.canEdit.Load() || s.h.opts.Autosave == nil || !s.stillEditor(ctx) {
		s.send(ctx, errorFrame{Type: "error", Error: "read only", Section: f.Section})
		return
	}
	if !drafts.Section(f.Section).Valid() {
		s.send(ctx, errorFrame{Type: "error", Error: "unknown section", Section: f.Section})
		return
	}
	// mismas reglas que el guardado: lo que no pase aquí no entra al lote
	if err := drafts.ValidateSection(drafts.Section(f.Section), f.Data); err != nil {
		msg := "invalid section data"
		if errors.Is(err, drafts.ErrTooLarge) {
			msg = "section too large"
		}
		s.send(ctx, errorFrame{Type: "error", Error: msg, Section: f.Section})
		return
	}
	if err := s.h.opts.Autosave.Queue(s.draft.ID, s.claims.UserID, f.Section, f.Data); err != nil {
		s.send(ctx, errorFrame{Type: "error", Error: "autosave unavailable", Section: f.Section})
		return
	}
	_ = s.h.opts.Hub.Touch(ctx, s.draft.ID, s.connID)
	s.send(ctx, ackFrame{Type: "queued", Section: f.Section})
}

// stillEditor vuelve a mirar el permiso en cada edición: un grant revocado corta la escritura
// aunque el socket siga abierto.
func (s *session) stillEditor(ctx context.Context) bool {
	if s.h.opts.Drafts.CanAccess(ctx, s.draft, s.claims, collaborators.ScopeDraftEdit) {
		return true
	}
	s.canEdit.Store(false)
	s.h.log.Info("live edit access lost", map[string]any{"draft_id": s.draft.ID, "user_id": s.claims.UserID})
	return false
}

func (s *session) send(ctx context.Context, v any) {
	select {
	case s.out <- v:
	case <-ctx.Done():
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
