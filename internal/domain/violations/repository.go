package violations

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r Report) error
	GetByID(ctx context.Context, id string) (Report, error)
	ListByVisit(ctx context.Context, visitID string, filter ListFilter) ([]Report, error)
	Void(ctx context.Context, id, actorID string, at time.Time) error
}

type ListFilter struct {
	Kinds         []Kind
	IncludeVoided bool
	Limit         int
}
