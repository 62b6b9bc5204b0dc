// Package realtime lleva la presencia (quién está mirando un borrador) y el broadcast de eventos
// de borradores entre instancias. No hay reconciliación: los eventos son avisos, el estado real
// vive en drafts (last-write-wins).
package realtime
