package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateWithAuthCodeFlow creates the account together with its
// authorization-code flow record in a single transaction.
func (r *AccountRepository) CreateWithAuthCodeFlow(ctx context.Context, account *model.Account, flow *model.AuthorizationCodeAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		flow.AccountID = account.ID
		if err := tx.Create(flow).Error; err != nil {
			return fmt.Errorf("failed to create authorization code record: %w", err)
		}
		return nil
	})
}

// CreateWithDeviceCodeFlow creates the account together with its device-code
// flow record in a single transaction.
func (r *AccountRepository) CreateWithDeviceCodeFlow(ctx context.Context, account *model.Account, flow *model.DeviceCodeAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		flow.AccountID = account.ID
		if err := tx.Create(flow).Error; err != nil {
			return fmt.Errorf("failed to create device code record: %w", err)
		}
		return nil
	})
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*model.Account, error) {
	var account model.Account
	result := r.db.WithContext(ctx).First(&account, "id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}
	return &account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	result := r.db.WithContext(ctx).First(&account, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", result.Error)
	}
	return &account, nil
}

func (r *AccountRepository) List(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	result := r.db.WithContext(ctx).Order("created_at").Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", result.Error)
	}
	return accounts, nil
}

func (r *AccountRepository) ListActive(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	result := r.db.WithContext(ctx).Where("status = ?", model.AccountActive).Order("created_at").Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}
	return accounts, nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, accountID string, status model.AccountStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.Account{}, "id = ?", accountID); err != nil {
			return err
		}
		if err := tx.Model(&model.Account{}).
			Where("id = ?", accountID).
			Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update account status: %w", err)
		}
		return nil
	})
}

func (r *AccountRepository) MarkAuthenticated(ctx context.Context, accountID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.Account{}, "id = ?", accountID); err != nil {
			return err
		}
		if err := tx.Model(&model.Account{}).
			Where("id = ?", accountID).
			Update("last_authenticated_at", at).Error; err != nil {
			return fmt.Errorf("failed to mark account authenticated: %w", err)
		}
		return nil
	})
}

func (r *AccountRepository) GetAuthCodeFlow(ctx context.Context, accountID string) (*model.AuthorizationCodeAccount, error) {
	var flow model.AuthorizationCodeAccount
	result := r.db.WithContext(ctx).First(&flow, "account_id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get authorization code record: %w", result.Error)
	}
	return &flow, nil
}

func (r *AccountRepository) GetDeviceCodeFlow(ctx context.Context, accountID string) (*model.DeviceCodeAccount, error) {
	var flow model.DeviceCodeAccount
	result := r.db.WithContext(ctx).First(&flow, "account_id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device code record: %w", result.Error)
	}
	return &flow, nil
}

// SetPendingAuthorization stores the state and PKCE verifier of a freshly
// issued authorization URL so the callback can recover the verifier.
func (r *AccountRepository) SetPendingAuthorization(ctx context.Context, accountID, state, codeVerifier string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.AuthorizationCodeAccount{}, "account_id = ?", accountID); err != nil {
			return err
		}
		if err := tx.Model(&model.AuthorizationCodeAccount{}).
			Where("account_id = ?", accountID).
			Updates(map[string]interface{}{
				"pending_state": state,
				"code_verifier": codeVerifier,
			}).Error; err != nil {
			return fmt.Errorf("failed to set pending authorization: %w", err)
		}
		return nil
	})
}

// FindByPendingState resolves a callback state to the flow record that
// initiated it.
func (r *AccountRepository) FindByPendingState(ctx context.Context, state string) (*model.AuthorizationCodeAccount, error) {
	var flow model.AuthorizationCodeAccount
	result := r.db.WithContext(ctx).First(&flow, "pending_state = ?", state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pending authorization: %w", result.Error)
	}
	return &flow, nil
}

// ClearPendingAuthorization removes the one-shot state and verifier after a
// completed or abandoned exchange.
func (r *AccountRepository) ClearPendingAuthorization(ctx context.Context, accountID string) error {
	result := r.db.WithContext(ctx).Model(&model.AuthorizationCodeAccount{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"pending_state": "",
			"code_verifier": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear pending authorization: %w", result.Error)
	}
	return nil
}

// UpdateDeviceFlow rewrites the device-code record with the data of a newly
// initiated device flow.
func (r *AccountRepository) UpdateDeviceFlow(ctx context.Context, flow *model.DeviceCodeAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &model.DeviceCodeAccount{}, "account_id = ?", flow.AccountID); err != nil {
			return err
		}
		if err := tx.Model(&model.DeviceCodeAccount{}).
			Where("account_id = ?", flow.AccountID).
			Updates(map[string]interface{}{
				"device_code":      flow.DeviceCode,
				"user_code":        flow.UserCode,
				"verification_uri": flow.VerificationURI,
				"expires_in":       flow.ExpiresIn,
				"interval":         flow.Interval,
			}).Error; err != nil {
			return fmt.Errorf("failed to update device flow: %w", err)
		}
		return nil
	})
}

// DeleteCascade removes the account and every dependent row in one
// transaction. Cascades are explicit here instead of schema-level foreign
// keys so the deletion order is visible and testable.
func (r *AccountRepository) DeleteCascade(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []interface{}{
			&model.Token{},
			&model.AuthorizationCodeAccount{},
			&model.DeviceCodeAccount{},
			&model.MailMessage{},
			&model.DeltaLink{},
			&model.WebhookSubscription{},
			&model.AuthenticationLog{},
			&model.MailQueryHistory{},
			&model.ExternalAPICall{},
		}
		for _, dep := range dependents {
			if err := tx.Where("account_id = ?", accountID).Delete(dep).Error; err != nil {
				return fmt.Errorf("failed to delete dependent rows: %w", err)
			}
		}

		result := tx.Delete(&model.Account{}, "id = ?", accountID)
		if result.Error != nil {
			return fmt.Errorf("failed to delete account: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
