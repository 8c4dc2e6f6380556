package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/domain"
)

// Compile-time interface check.
var _ assistant.TenantStore = (*TenantRepository)(nil)

// TenantRepository implements assistant.TenantStore with PostgreSQL.
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a TenantRepository.
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// FindByID returns the tenant, or nil if unknown.
func (r *TenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	var model TenantModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up tenant: %w", err)
	}
	return toTenantDomain(&model), nil
}

// IsMember reports whether the user belongs to the tenant.
func (r *TenantRepository) IsMember(ctx context.Context, tenantID uuid.UUID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TenantMemberModel{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking tenant membership: %w", err)
	}
	return count > 0, nil
}

// IsAdmin reports whether the user carries the admin flag.
func (r *TenantRepository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "external_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up user: %w", err)
	}
	return model.IsAdmin, nil
}

// EnsureTenant creates the named tenant if absent and returns its ID.
func (r *TenantRepository) EnsureTenant(ctx context.Context, name string) (uuid.UUID, error) {
	var model TenantModel
	err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error
	if err == nil {
		return model.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, fmt.Errorf("looking up tenant %q: %w", name, err)
	}

	now := time.Now().UTC()
	model = TenantModel{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slugify(name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a concurrent bootstrap race; the row exists now.
			if ferr := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; ferr == nil {
				return model.ID, nil
			}
		}
		return uuid.Nil, fmt.Errorf("creating tenant %q: %w", name, err)
	}
	return model.ID, nil
}

// slugify lowercases the name and collapses non-alphanumerics to dashes.
func slugify(name string) string {
	var b []rune
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b = append(b, r+('a'-'A'))
			lastDash = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b = append(b, r)
			lastDash = false
		default:
			if !lastDash {
				b = append(b, '-')
				lastDash = true
			}
		}
	}
	for len(b) > 0 && b[len(b)-1] == '-' {
		b = b[:len(b)-1]
	}
	return string(b)
}

// EnsureMember adds the user to the tenant, creating the user row if needed.
func (r *TenantRepository) EnsureMember(ctx context.Context, tenantID uuid.UUID, userID, email string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user UserModel
		err := tx.First(&user, "external_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = UserModel{ID: uuid.New(), ExternalID: userID, Email: email}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("looking up user: %w", err)
		}

		member := TenantMemberModel{TenantID: tenantID, UserID: userID}
		err = tx.Create(&member).Error
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("creating membership: %w", err)
		}
		return nil
	})
}
