// Package autosave junta las ediciones que llegan por el canal en vivo y las escribe en lote
// cuando el borrador deja de moverse (quiet) o cuando pasó demasiado tiempo sin escribir (max wait).
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"dental-inspections/internal/platform/logger"
)

var ErrClosed = errors.New("autosave: debouncer closed")

// FlushFunc persiste un lote de secciones de un borrador.
type FlushFunc func(ctx context.Context, draftID, actorID string, sections map[string]json.RawMessage) error

type Options struct {
	Quiet   time.Duration
	MaxWait time.Duration
	// FlushTimeout limita cada escritura disparada por timer.
	FlushTimeout time.Duration
	Logger       logger.Logger
	// OnFlush se llama después de cada flush (metrics).
	OnFlush func(draftID string, sections int, err error)
}

// batchKey separa los lotes por usuario: cada sección se escribe a nombre de quien la editó.
type batchKey struct {
	draftID string
	actorID string
}

type batch struct {
	sections map[string]json.RawMessage
	first    time.Time
	timer    *time.Timer
}

type Debouncer struct {
	flush   FlushFunc
	quiet   time.Duration
	maxWait time.Duration
	timeout time.Duration
	log     logger.Logger
	onFlush func(string, int, error)
	now     func() time.Time

	mu      sync.Mutex
	closed  bool
	pending map[batchKey]*batch
	// busy cuenta escrituras disparadas por timer en curso por borrador; idle avisa cuando bajan
	busy map[string]int
	idle *sync.Cond
	wg   sync.WaitGroup
}

func New(flush FlushFunc, opts Options) *Debouncer {
	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = 2 * time.Second
	}
	maxWait := opts.MaxWait
	if maxWait < quiet {
		maxWait = 5 * quiet
	}
	timeout := opts.FlushTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	d := &Debouncer{
		flush:   flush,
		quiet:   quiet,
		maxWait: maxWait,
		timeout: timeout,
		log:     log,
		onFlush: opts.OnFlush,
		now:     time.Now,
		pending: map[batchKey]*batch{},
		busy:    map[string]int{},
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Queue agrega la edición de una sección. Si el mismo usuario ya tenía pendiente esa sección, gana la última.
func (d *Debouncer) Queue(draftID, actorID, section string, data json.RawMessage) error {
	draftID = strings.TrimSpace(draftID)
	section = strings.TrimSpace(section)
	if draftID == "" || section == "" {
		return errors.New("autosave: draft id and section required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	now := d.now()
	key := batchKey{draftID: draftID, actorID: actorID}
	b, ok := d.pending[key]
	if !ok {
		b = &batch{
			sections: map[string]json.RawMessage{},
			first:    now,
		}
		d.pending[key] = b
		b.timer = time.AfterFunc(d.quiet, func() { d.fire(key, b) })
	} else {
		b.timer.Reset(d.delay(b, now))
	}

	b.sections[section] = data
	return nil
}

// delay: quiet normal, pero nunca más allá de first+maxWait.
func (d *Debouncer) delay(b *batch, now time.Time) time.Duration {
	left := d.maxWait - now.Sub(b.first)
	if left < 0 {
		left = 0
	}
	if left < d.quiet {
		return left
	}
	return d.quiet
}

// Pending devuelve cuántos lotes (borrador, usuario) tienen ediciones sin escribir.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) fire(key batchKey, b *batch) {
	d.mu.Lock()
	if d.pending[key] != b {
		// ya lo escribió Flush u otro disparo
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.busy[key.draftID]++
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		if d.busy[key.draftID]--; d.busy[key.draftID] <= 0 {
			delete(d.busy, key.draftID)
		}
		d.mu.Unlock()
		d.idle.Broadcast()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.write(ctx, key, b)
}

func (d *Debouncer) write(ctx context.Context, key batchKey, b *batch) {
	err := d.flush(ctx, key.draftID, key.actorID, b.sections)
	if err != nil {
		// el lote se descarta; el cliente reenvía en la próxima edición
		d.log.Warn("autosave flush failed", map[string]any{
			"draft_id": key.draftID,
			"actor_id": key.actorID,
			"sections": len(b.sections),
			"error":    err,
		})
	} else {
		d.log.Debug("autosave flushed", map[string]any{
			"draft_id": key.draftID,
			"actor_id": key.actorID,
			"sections": len(b.sections),
		})
	}
	if d.onFlush != nil {
		d.onFlush(key.draftID, len(b.sections), err)
	}
}

// FlushDraft escribe ya lo pendiente de un borrador, de todos los usuarios, y espera las
// escrituras por timer que estén en curso (p.ej. antes de enviar la inspección).
func (d *Debouncer) FlushDraft(ctx context.Context, draftID string) {
	d.mu.Lock()
	taken := map[batchKey]*batch{}
	for key, b := range d.pending {
		if key.draftID != draftID {
			continue
		}
		b.timer.Stop()
		delete(d.pending, key)
		taken[key] = b
	}
	d.mu.Unlock()

	for key, b := range taken {
		d.write(ctx, key, b)
	}

	d.mu.Lock()
	for d.busy[draftID] > 0 {
		d.idle.Wait()
	}
	d.mu.Unlock()
}

// Flush escribe todo lo pendiente ahora.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	taken := d.pending
	d.pending = map[batchKey]*batch{}
	for _, b := range taken {
		b.timer.Stop()
	}
	d.mu.Unlock()

	for key, b := range taken {
		d.write(ctx, key, b)
	}
}

// Close escribe lo pendiente, espera los flush en curso y rechaza nuevas ediciones.
func (d *Debouncer) Close(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.Flush(ctx)
	d.wg.Wait()
}
