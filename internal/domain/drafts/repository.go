package drafts

import (
	"context"
	"encoding/json"
	"time"
)

type Repository interface {
	Create(ctx context.Context, d Draft) error
	GetByID(ctx context.Context, id string) (Draft, error)
	// GetByVisit devuelve el borrador abierto de la visita o, si no hay, el más reciente.
	GetByVisit(ctx context.Context, visitID string) (Draft, error)

	// MergeSections reemplaza las secciones dadas (el resto queda igual) y sube Version en 1.
	// Solo aplica sobre borradores abiertos y, si expectVersion > 0, solo si Version coincide;
	// si no, devuelve el ErrNotFound del adapter.
	MergeSections(ctx context.Context, id string, sections map[Section]json.RawMessage, actorID string, at time.Time, expectVersion int64) (Draft, error)

	// SetStatus cambia el estado solo si el actual es from (from -> to atómico) y devuelve la fila resultante.
	SetStatus(ctx context.Context, id string, from, to Status, at time.Time) (Draft, error)
	Delete(ctx context.Context, id string) error
}
