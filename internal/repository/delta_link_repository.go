package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

type DeltaLinkRepository struct {
	db *gorm.DB
}

func NewDeltaLinkRepository(db *gorm.DB) *DeltaLinkRepository {
	return &DeltaLinkRepository{db: db}
}

func (r *DeltaLinkRepository) GetActive(ctx context.Context, accountID, folderID string) (*model.DeltaLink, error) {
	var link model.DeltaLink
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder_id = ? AND is_active = ?", accountID, folderID, true).
		First(&link)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get delta link: %w", result.Error)
	}
	return &link, nil
}

// Rotate deactivates the prior active link for the (account, folder) pair
// and inserts the new one in the same transaction, so exactly one active
// cursor exists at any point.
func (r *DeltaLinkRepository) Rotate(ctx context.Context, accountID, folderID, deltaToken string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.DeltaLink{}).
			Where("account_id = ? AND folder_id = ? AND is_active = ?", accountID, folderID, true).
			Update("is_active", false).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate delta link: %w", err)
		}

		now := time.Now().UTC()
		link := model.DeltaLink{
			AccountID:  accountID,
			FolderID:   folderID,
			DeltaToken: deltaToken,
			IsActive:   true,
			LastUsedAt: &now,
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to create delta link: %w", err)
		}
		return nil
	})
}

func (r *DeltaLinkRepository) TouchLastUsed(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&model.DeltaLink{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now().UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to touch delta link: %w", result.Error)
	}
	return nil
}

// DeactivateForAccount drops all cursors for an account, forcing the next
// sync to start from a full snapshot. Used when the provider reports the
// delta token has expired.
func (r *DeltaLinkRepository) DeactivateForAccount(ctx context.Context, accountID, folderID string) error {
	result := r.db.WithContext(ctx).Model(&model.DeltaLink{}).
		Where("account_id = ? AND folder_id = ?", accountID, folderID).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate delta links: %w", result.Error)
	}
	return nil
}

// DeleteInactiveOlderThan ages out superseded cursors.
func (r *DeltaLinkRepository) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_active = ? AND created_at < ?", false, cutoff).
		Delete(&model.DeltaLink{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete inactive delta links: %w", result.Error)
	}
	return result.RowsAffected, nil
}
