package visits

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, v Visit) error
	Update(ctx context.Context, v Visit) error
	GetByID(ctx context.Context, id string) (Visit, error)
	List(ctx context.Context, filter ListFilter) ([]Visit, error)
}

type ListFilter struct {
	ClinicID string
	Status   Status
	Type     VisitType
	From     *time.Time
	To       *time.Time
	Limit    int
}
