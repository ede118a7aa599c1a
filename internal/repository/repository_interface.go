package repository

import (
	"context"

	"github.com/gianverdum/member-registry/internal/models"
)

// UpdateFunc derives the new field values of a member from its stored row
type UpdateFunc func(current *models.Member) (models.ValidMember, error)

// MemberRepository defines the storage operations for member records.
// Every mutation runs in its own transaction.
type MemberRepository interface {
	Create(ctx context.Context, member models.ValidMember) (*models.Member, error)
	List(ctx context.Context, filter models.MemberFilter) ([]models.Member, error)
	GetByID(ctx context.Context, id uint) (*models.Member, error)
	Update(ctx context.Context, id uint, apply UpdateFunc) (*models.Member, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}
