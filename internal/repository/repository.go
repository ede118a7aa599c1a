package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gianverdum/member-registry/internal/models"
)

var (
	// ErrMemberNotFound is returned when no member has the requested id
	ErrMemberNotFound = errors.New("member not found")
	// ErrDuplicatePhone is returned when another member already uses the phone
	ErrDuplicatePhone = errors.New("phone number already exists")
)

// GormMemberRepository stores members through GORM
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a repository over db. db should be opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// Create inserts a new member. The phone lookup is only a fast path; the
// unique index decides when two writers race.
func (r *GormMemberRepository) Create(ctx context.Context, v models.ValidMember) (*models.Member, error) {
	member := models.Member{}
	member.Apply(v)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := phoneTaken(tx, v.Phone, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicatePhone
		}
		if err := tx.Create(&member).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicatePhone
			}
			return fmt.Errorf("failed to insert member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// List returns the members matching filter ordered by id. No filter is required.
func (r *GormMemberRepository) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, error) {
	filter = filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.Member{})
	if filter.Name != "" {
		query = whereContains(query, "name", filter.Name)
	}
	if filter.Club != "" {
		query = whereContains(query, "club", filter.Club)
	}
	if filter.Phone != "" {
		query = query.Where("phone = ?", filter.Phone)
	}

	members := make([]models.Member, 0)
	err := query.Order("id ASC").Limit(filter.Limit).Offset(filter.Offset).Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// GetByID fetches a single member
func (r *GormMemberRepository) GetByID(ctx context.Context, id uint) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member %d: %w", id, err)
	}
	return &member, nil
}

// Update loads the member under its row lock, derives the new values from
// the stored row with apply and saves them in the same transaction. An error
// from apply aborts the update and is returned unchanged.
func (r *GormMemberRepository) Update(ctx context.Context, id uint, apply UpdateFunc) (*models.Member, error) {
	var member models.Member

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&member, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("failed to load member %d: %w", id, err)
		}

		current := member
		v, err := apply(&current)
		if err != nil {
			return err
		}

		if v.Phone != member.Phone {
			taken, err := phoneTaken(tx, v.Phone, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicatePhone
			}
		}

		member.Apply(v)
		if err := tx.Save(&member).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicatePhone
			}
			return fmt.Errorf("failed to update member %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Delete hard-deletes a member
func (r *GormMemberRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Member{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete member %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrMemberNotFound
		}
		return nil
	})
}

// Count returns the number of stored members
func (r *GormMemberRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Member{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func phoneTaken(tx *gorm.DB, phone string, excludeID uint) (bool, error) {
	var count int64
	query := tx.Model(&models.Member{}).Where("phone = ?", phone)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check phone: %w", err)
	}
	return count > 0, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports row locks
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereContains adds a case-insensitive substring match on column. Postgres
// folds case with ILIKE for any script. SQLite's LOWER only folds ASCII, so
// accented capitals match there only when the search uses the same case.
func whereContains(query *gorm.DB, column, value string) *gorm.DB {
	if query.Dialector.Name() == "postgres" {
		return query.Where(column+` ILIKE ? ESCAPE '\'`, containsPattern(value))
	}
	return query.Where(`LOWER(`+column+`) LIKE ? ESCAPE '\'`, containsPattern(asciiLower(value)))
}

// asciiLower folds only A-Z, matching SQLite's LOWER
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
