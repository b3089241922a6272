package llmconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/models"
	"github.com/agenthub-dev/agenthub/internal/security"
)

// ErrNotFound indicates a configuration that does not exist or belongs to
// another user.
var ErrNotFound = errors.New("llmconfig: configuration not found")

// Store manages per-user LLM provider configurations. Provider API keys are
// encrypted before they touch the database.
type Store struct {
	db        *gorm.DB
	encryptor *security.Encryptor
}

// NewStore constructs a configuration store.
func NewStore(db *gorm.DB, encryptor *security.Encryptor) *Store {
	return &Store{db: db, encryptor: encryptor}
}

// CreateParams holds inputs for creating a configuration.
type CreateParams struct {
	Name      string
	Provider  string
	Model     string
	APIKey    string
	BaseURL   *string
	IsDefault bool
}

// UpdateParams holds inputs for updating a configuration. Nil fields are
// left unchanged; an empty APIKey keeps the stored key.
type UpdateParams struct {
	Name     *string
	Provider *string
	Model    *string
	APIKey   string
	BaseURL  *string
	IsActive *bool
}

// List returns all configurations of a user, default first.
func (s *Store) List(ctx context.Context, userID uint64) ([]models.LLMConfiguration, error) {
	var rows []models.LLMConfiguration
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, name ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("llmconfig: list: %w", errFind)
	}
	return rows, nil
}

// Get returns one configuration owned by the user.
func (s *Store) Get(ctx context.Context, userID, id uint64) (*models.LLMConfiguration, error) {
	var row models.LLMConfiguration
	errFind := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if errFind != nil {
		return nil, fmt.Errorf("llmconfig: get: %w", errFind)
	}
	return &row, nil
}

// GetDefault returns the user's default configuration, if any.
func (s *Store) GetDefault(ctx context.Context, userID uint64) (*models.LLMConfiguration, error) {
	var row models.LLMConfiguration
	errFind := s.db.WithContext(ctx).Where("user_id = ? AND is_default = ?", userID, true).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if errFind != nil {
		return nil, fmt.Errorf("llmconfig: get default: %w", errFind)
	}
	return &row, nil
}

// Create stores a new configuration. The first configuration of a user
// always becomes the default.
func (s *Store) Create(ctx context.Context, userID uint64, params CreateParams) (*models.LLMConfiguration, error) {
	name := strings.TrimSpace(params.Name)
	provider := strings.TrimSpace(params.Provider)
	model := strings.TrimSpace(params.Model)
	if name == "" || provider == "" || model == "" {
		return nil, errors.New("llmconfig: name, provider, and model are required")
	}
	if strings.TrimSpace(params.APIKey) == "" {
		return nil, errors.New("llmconfig: api key is required")
	}

	encrypted, errEncrypt := s.encryptor.Encrypt(params.APIKey)
	if errEncrypt != nil {
		return nil, errEncrypt
	}

	now := time.Now().UTC()
	row := models.LLMConfiguration{
		UserID:          userID,
		Name:            name,
		Provider:        provider,
		Model:           model,
		EncryptedAPIKey: encrypted,
		BaseURL:         params.BaseURL,
		IsActive:        true,
		TestStatus:      models.TestStatusUntested,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if errCount := tx.Model(&models.LLMConfiguration{}).Where("user_id = ?", userID).Count(&existing).Error; errCount != nil {
			return errCount
		}
		row.IsDefault = params.IsDefault || existing == 0
		if row.IsDefault {
			if errClear := clearDefault(tx, userID); errClear != nil {
				return errClear
			}
		}
		return tx.Create(&row).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("llmconfig: create: %w", errTx)
	}
	return &row, nil
}

// Update modifies a configuration owned by the user.
func (s *Store) Update(ctx context.Context, userID, id uint64, params UpdateParams) (*models.LLMConfiguration, error) {
	row, errGet := s.Get(ctx, userID, id)
	if errGet != nil {
		return nil, errGet
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if params.Name != nil {
		updates["name"] = strings.TrimSpace(*params.Name)
	}
	if params.Provider != nil {
		updates["provider"] = strings.TrimSpace(*params.Provider)
	}
	if params.Model != nil {
		updates["model"] = strings.TrimSpace(*params.Model)
	}
	if params.BaseURL != nil {
		updates["base_url"] = *params.BaseURL
	}
	if params.IsActive != nil {
		updates["is_active"] = *params.IsActive
	}
	if strings.TrimSpace(params.APIKey) != "" {
		encrypted, errEncrypt := s.encryptor.Encrypt(params.APIKey)
		if errEncrypt != nil {
			return nil, errEncrypt
		}
		updates["encrypted_api_key"] = encrypted
		// Credentials changed; the last test result no longer applies.
		updates["test_status"] = models.TestStatusUntested
		updates["test_message"] = ""
	}

	if errUpdate := s.db.WithContext(ctx).Model(row).Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("llmconfig: update: %w", errUpdate)
	}
	return s.Get(ctx, userID, id)
}

// Delete removes a configuration owned by the user.
func (s *Store) Delete(ctx context.Context, userID, id uint64) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.LLMConfiguration{})
	if result.Error != nil {
		return fmt.Errorf("llmconfig: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefault makes one configuration the user's default. The previous
// default is cleared in the same transaction; the partial unique index
// backs the invariant at the storage layer.
func (s *Store) SetDefault(ctx context.Context, userID, id uint64) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.LLMConfiguration
		errFind := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if errFind != nil {
			return errFind
		}
		if errClear := clearDefault(tx, userID); errClear != nil {
			return errClear
		}
		return tx.Model(&models.LLMConfiguration{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_default": true, "updated_at": time.Now().UTC()}).Error
	})
	if errTx != nil {
		if errors.Is(errTx, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("llmconfig: set default: %w", errTx)
	}
	return nil
}

// RecordTest stores the outcome of a connectivity test.
func (s *Store) RecordTest(ctx context.Context, userID, id uint64, status, message string) error {
	result := s.db.WithContext(ctx).
		Model(&models.LLMConfiguration{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"test_status":  status,
			"test_message": message,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("llmconfig: record test: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchUsed stamps last_used_at, called when a conversation picks the
// configuration.
func (s *Store) TouchUsed(ctx context.Context, userID, id uint64) error {
	return s.db.WithContext(ctx).
		Model(&models.LLMConfiguration{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("last_used_at", time.Now().UTC()).Error
}

// DecryptAPIKey recovers the plaintext provider key for runtime use.
func (s *Store) DecryptAPIKey(row *models.LLMConfiguration) (string, error) {
	if row == nil {
		return "", ErrNotFound
	}
	return s.encryptor.Decrypt(row.EncryptedAPIKey)
}

// clearDefault unsets the current default inside a transaction.
func clearDefault(tx *gorm.DB, userID uint64) error {
	return tx.Model(&models.LLMConfiguration{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
