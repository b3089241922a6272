package db

import (
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/models"
)

// llmDefaultIndex is the partial unique index enforcing at most one default
// LLM configuration per user at the storage layer.
const llmDefaultIndex = "uq_llm_configurations_user_default"

// usersEmailIndex is the partial unique index on user emails. Accounts may
// register without an email, so blank values stay out of the index.
const usersEmailIndex = "uq_users_email"

// Revisions returns the linear revision chain, oldest first.
func Revisions() []Revision {
	return []Revision{
		{
			ID: "0001_base",
			Up: func(tx *gorm.DB) error {
				for _, table := range []any{
					&models.User{},
					&models.Team{},
					&models.TeamMember{},
					&models.Setting{},
				} {
					if err := tx.Migrator().CreateTable(table); err != nil {
						return err
					}
				}
				return tx.Exec(
					"CREATE UNIQUE INDEX " + usersEmailIndex +
						" ON users (email) WHERE email <> ''",
				).Error
			},
			Down: func(tx *gorm.DB) error {
				for _, table := range []any{
					&models.Setting{},
					&models.TeamMember{},
					&models.Team{},
					&models.User{},
				} {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			ID:     "0002_sessions_csrf",
			Parent: "0001_base",
			Up: func(tx *gorm.DB) error {
				if err := tx.Migrator().CreateTable(&models.Session{}); err != nil {
					return err
				}
				return tx.Migrator().CreateTable(&models.CSRFToken{})
			},
			Down: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropTable(&models.CSRFToken{}); err != nil {
					return err
				}
				return tx.Migrator().DropTable(&models.Session{})
			},
		},
		{
			ID:     "0003_llm_configurations",
			Parent: "0002_sessions_csrf",
			Up: func(tx *gorm.DB) error {
				if err := tx.Migrator().CreateTable(&models.LLMConfiguration{}); err != nil {
					return err
				}
				return tx.Exec(
					"CREATE UNIQUE INDEX " + llmDefaultIndex +
						" ON llm_configurations (user_id) WHERE is_default",
				).Error
			},
			Down: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX " + llmDefaultIndex).Error; err != nil {
					return err
				}
				return tx.Migrator().DropTable(&models.LLMConfiguration{})
			},
		},
		{
			ID:     "0004_conversations",
			Parent: "0003_llm_configurations",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&models.Conversation{})
			},
			Down: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Conversation{})
			},
		},
	}
}
