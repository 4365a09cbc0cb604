package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/crypto"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

// TokenRepository persists OAuth tokens. Token material is encrypted before
// it reaches the database and decrypted on the way out; callers only ever
// see plaintext tokens.
type TokenRepository struct {
	db     *gorm.DB
	cipher *crypto.TokenCipher
}

func NewTokenRepository(db *gorm.DB, cipher *crypto.TokenCipher) *TokenRepository {
	return &TokenRepository{db: db, cipher: cipher}
}

// Upsert replaces the account's token row with the given token. Delete and
// create run in one transaction so the account never has two token rows or
// a half-written one.
func (r *TokenRepository) Upsert(ctx context.Context, token *model.Token) error {
	encAccess, err := r.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := r.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	stored := *token
	stored.AccessToken = encAccess
	stored.RefreshToken = encRefresh

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Token{}, "account_id = ?", token.AccountID).Error; err != nil {
			return fmt.Errorf("failed to delete previous token: %w", err)
		}
		if err := tx.Create(&stored).Error; err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		return nil
	})
}

func (r *TokenRepository) GetByAccountID(ctx context.Context, accountID string) (*model.Token, error) {
	var token model.Token
	result := r.db.WithContext(ctx).First(&token, "account_id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", result.Error)
	}
	if err := r.decrypt(&token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *TokenRepository) UpdateStatus(ctx context.Context, accountID string, status model.TokenStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.Token{}, "account_id = ?", accountID); err != nil {
			return err
		}
		if err := tx.Model(&model.Token{}).
			Where("account_id = ?", accountID).
			Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update token status: %w", err)
		}
		return nil
	})
}

// Delete removes the account's token row. Deleting an absent row is not an
// error; revocation must leave no token material behind either way.
func (r *TokenRepository) Delete(ctx context.Context, accountID string) error {
	if err := r.db.WithContext(ctx).Delete(&model.Token{}, "account_id = ?", accountID).Error; err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// ListExpiringWithin returns valid tokens that expire before now+window.
// Used by the refresh sweep; tokens come back decrypted so the refresh call
// can use them directly.
func (r *TokenRepository) ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.Token, error) {
	var tokens []model.Token
	cutoff := time.Now().UTC().Add(window)
	result := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.TokenValid, cutoff).
		Find(&tokens)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list expiring tokens: %w", result.Error)
	}
	for i := range tokens {
		if err := r.decrypt(&tokens[i]); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// DeleteUnusableOlderThan removes expired, revoked and invalid token rows
// not touched since the cutoff.
func (r *TokenRepository) DeleteUnusableOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status <> ? AND updated_at < ?", model.TokenValid, cutoff).
		Delete(&model.Token{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *TokenRepository) decrypt(token *model.Token) error {
	access, err := r.cipher.Decrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refresh, err := r.cipher.Decrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	token.AccessToken = access
	token.RefreshToken = refresh
	return nil
}
