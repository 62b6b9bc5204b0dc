package collaborators

import "context"

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)
	ListByDraft(ctx context.Context, draftID string) ([]Grant, error)
	GetActiveGrant(ctx context.Context, draftID, granteeUserID string) (Grant, error)
	ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error)
}
