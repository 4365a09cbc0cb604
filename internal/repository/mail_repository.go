package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

type MailRepository struct {
	db *gorm.DB
}

func NewMailRepository(db *gorm.DB) *MailRepository {
	return &MailRepository{db: db}
}

// SaveIfNew inserts the message unless a row with the same
// (account_id, message_id) already exists. The check and insert run in one
// transaction; the unique index backstops concurrent writers. Returns true
// when a new row was written.
func (r *MailRepository) SaveIfNew(ctx context.Context, msg *model.MailMessage) (bool, error) {
	saved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.MailMessage
		result := tx.Select("id").
			Where("account_id = ? AND message_id = ?", msg.AccountID, msg.MessageID).
			First(&existing)
		if result.Error == nil {
			return nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check message existence: %w", result.Error)
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		saved = true
		return nil
	})
	return saved, err
}

func (r *MailRepository) GetByMessageID(ctx context.Context, accountID, messageID string) (*model.MailMessage, error) {
	var msg model.MailMessage
	result := r.db.WithContext(ctx).
		First(&msg, "account_id = ? AND message_id = ?", accountID, messageID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", result.Error)
	}
	return &msg, nil
}

// ListByAccount returns stored messages newest first.
func (r *MailRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.MailMessage, error) {
	var messages []model.MailMessage
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("received_date_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	result := query.Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages: %w", result.Error)
	}
	return messages, nil
}

func (r *MailRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&model.MailMessage{}).
		Where("account_id = ?", accountID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count messages: %w", result.Error)
	}
	return count, nil
}
