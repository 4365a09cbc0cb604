package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, sub *model.WebhookSubscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create webhook subscription: %w", err)
	}
	return nil
}

func (r *WebhookRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
	var sub model.WebhookSubscription
	result := r.db.WithContext(ctx).First(&sub, "subscription_id = ?", subscriptionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook subscription: %w", result.Error)
	}
	return &sub, nil
}

func (r *WebhookRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]model.WebhookSubscription, error) {
	var subs []model.WebhookSubscription
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND is_active = ?", accountID, true).
		Find(&subs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", result.Error)
	}
	return subs, nil
}

// ListExpiringWithin returns active subscriptions expiring before
// now+window, for the renewal sweep.
func (r *WebhookRepository) ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.WebhookSubscription, error) {
	var subs []model.WebhookSubscription
	cutoff := time.Now().UTC().Add(window)
	result := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_date_time < ?", true, cutoff).
		Find(&subs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list expiring webhook subscriptions: %w", result.Error)
	}
	return subs, nil
}

func (r *WebhookRepository) UpdateExpiry(ctx context.Context, subscriptionID string, expires time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.WebhookSubscription{}, "subscription_id = ?", subscriptionID); err != nil {
			return err
		}
		if err := tx.Model(&model.WebhookSubscription{}).
			Where("subscription_id = ?", subscriptionID).
			Update("expires_date_time", expires).Error; err != nil {
			return fmt.Errorf("failed to update webhook expiry: %w", err)
		}
		return nil
	})
}

func (r *WebhookRepository) Deactivate(ctx context.Context, subscriptionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.WebhookSubscription{}, "subscription_id = ?", subscriptionID); err != nil {
			return err
		}
		if err := tx.Model(&model.WebhookSubscription{}).
			Where("subscription_id = ?", subscriptionID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate webhook subscription: %w", err)
		}
		return nil
	})
}

func (r *WebhookRepository) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&model.WebhookSubscription{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete inactive webhook subscriptions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
