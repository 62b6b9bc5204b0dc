package submissions

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s Submission) error
	GetByID(ctx context.Context, id string) (Submission, error)
	GetByReference(ctx context.Context, ref string) (Submission, error)
	List(ctx context.Context, filter ListFilter) ([]Submission, error)

	// NextSequence reserva el siguiente correlativo del año (empieza en 1).
	NextSequence(ctx context.Context, year int) (int64, error)
}

type ListFilter struct {
	ClinicID    string
	SubmittedBy string
	From        *time.Time
	To          *time.Time
	Limit       int
}
