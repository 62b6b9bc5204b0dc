package clinics

import "context"

type Repository interface {
	Create(ctx context.Context, c Clinic) error
	Update(ctx context.Context, c Clinic) error
	GetByID(ctx context.Context, id string) (Clinic, error)
	GetByLicense(ctx context.Context, license string) (Clinic, error)
	List(ctx context.Context, filter ListFilter) ([]Clinic, error)
}

type ListFilter struct {
	Governorate Governorate
	Query       string
	Limit       int
}
