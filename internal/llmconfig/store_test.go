package llmconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/agenthub-dev/agenthub/internal/db"
	"github.com/agenthub-dev/agenthub/internal/models"
	"github.com/agenthub-dev/agenthub/internal/security"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB, uint64) {
	t.Helper()
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	encryptor, errEnc := security.NewEncryptor("test-passphrase")
	if errEnc != nil {
		t.Fatalf("new encryptor: %v", errEnc)
	}
	now := time.Now().UTC()
	user := models.User{Username: "llm-u", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return NewStore(conn, encryptor), conn, user.ID
}

func TestCreateEncryptsAPIKeyAndDefaultsFirstConfig(t *testing.T) {
	store, conn, userID := newTestStore(t)
	ctx := context.Background()

	created, errCreate := store.Create(ctx, userID, CreateParams{
		Name: "primary", Provider: "openai", Model: "gpt-4o", APIKey: "sk-secret-123",
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if !created.IsDefault {
		t.Fatalf("first configuration should become the default")
	}

	var stored models.LLMConfiguration
	if errFind := conn.First(&stored, created.ID).Error; errFind != nil {
		t.Fatalf("load: %v", errFind)
	}
	if stored.EncryptedAPIKey == "sk-secret-123" {
		t.Fatalf("api key stored in plaintext")
	}
	plaintext, errDecrypt := store.DecryptAPIKey(&stored)
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if plaintext != "sk-secret-123" {
		t.Fatalf("expected decrypted key to round trip, got %q", plaintext)
	}
}

func TestSetDefaultMovesTheFlag(t *testing.T) {
	store, _, userID := newTestStore(t)
	ctx := context.Background()

	first, errFirst := store.Create(ctx, userID, CreateParams{
		Name: "primary", Provider: "openai", Model: "gpt-4o", APIKey: "sk-1",
	})
	if errFirst != nil {
		t.Fatalf("create first: %v", errFirst)
	}
	second, errSecond := store.Create(ctx, userID, CreateParams{
		Name: "backup", Provider: "anthropic", Model: "claude-sonnet", APIKey: "sk-2",
	})
	if errSecond != nil {
		t.Fatalf("create second: %v", errSecond)
	}
	if second.IsDefault {
		t.Fatalf("second configuration should not steal the default")
	}

	if errSet := store.SetDefault(ctx, userID, second.ID); errSet != nil {
		t.Fatalf("set default: %v", errSet)
	}

	reloadedFirst, errGet := store.Get(ctx, userID, first.ID)
	if errGet != nil {
		t.Fatalf("get first: %v", errGet)
	}
	if reloadedFirst.IsDefault {
		t.Fatalf("previous default should be cleared")
	}
	def, errDefault := store.GetDefault(ctx, userID)
	if errDefault != nil {
		t.Fatalf("get default: %v", errDefault)
	}
	if def.ID != second.ID {
		t.Fatalf("expected %d to be the default, got %d", second.ID, def.ID)
	}
}

func TestCreateWithDefaultRequestedReplacesDefault(t *testing.T) {
	store, _, userID := newTestStore(t)
	ctx := context.Background()

	first, errFirst := store.Create(ctx, userID, CreateParams{
		Name: "primary", Provider: "openai", Model: "gpt-4o", APIKey: "sk-1",
	})
	if errFirst != nil {
		t.Fatalf("create first: %v", errFirst)
	}
	second, errSecond := store.Create(ctx, userID, CreateParams{
		Name: "new-default", Provider: "anthropic", Model: "claude-sonnet", APIKey: "sk-2", IsDefault: true,
	})
	if errSecond != nil {
		t.Fatalf("create second: %v", errSecond)
	}
	if !second.IsDefault {
		t.Fatalf("explicitly requested default not honored")
	}
	reloadedFirst, errGet := store.Get(ctx, userID, first.ID)
	if errGet != nil {
		t.Fatalf("get first: %v", errGet)
	}
	if reloadedFirst.IsDefault {
		t.Fatalf("old default should have been cleared in the same transaction")
	}
}

func TestGetScopedToOwner(t *testing.T) {
	store, conn, userID := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	stranger := models.User{Username: "stranger", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&stranger).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	created, errCreate := store.Create(ctx, userID, CreateParams{
		Name: "primary", Provider: "openai", Model: "gpt-4o", APIKey: "sk-1",
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	if _, errGet := store.Get(ctx, stranger.ID, created.ID); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", errGet)
	}
	if errDelete := store.Delete(ctx, stranger.ID, created.ID); !errors.Is(errDelete, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign delete, got %v", errDelete)
	}
}

func TestDeleteConfigurationReferencedByConversation(t *testing.T) {
	store, conn, userID := newTestStore(t)
	ctx := context.Background()

	created, errCreate := store.Create(ctx, userID, CreateParams{
		Name: "primary", Provider: "openai", Model: "gpt-4o", APIKey: "sk-1",
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	conversation := models.Conversation{
		ID:                 "conv-1",
		UserID:             userID,
		Title:              "notes",
		LLMConfigurationID: &created.ID,
	}
	if errConv := conn.Create(&conversation).Error; errConv != nil {
		t.Fatalf("create conversation: %v", errConv)
	}

	if errDelete := store.Delete(ctx, userID, created.ID); errDelete != nil {
		t.Fatalf("delete referenced configuration: %v", errDelete)
	}

	var reloaded models.Conversation
	if errFind := conn.First(&reloaded, "id = ?", conversation.ID).Error; errFind != nil {
		t.Fatalf("reload conversation: %v", errFind)
	}
	if reloaded.LLMConfigurationID != nil {
		t.Fatalf("expected the configuration reference to be cleared, got %d", *reloaded.LLMConfigurationID)
	}
}

func TestUpdateAPIKeyResetsTestStatus(t *testing.T) {
	store, _, userID := newTestStore(t)
	ctx := context.Background()

	created, errCreate := store.Create(ctx, userID, CreateParams{
		Name: "primary", Provider: "openai", Model: "gpt-4o", APIKey: "sk-1",
	})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errRecord := store.RecordTest(ctx, userID, created.ID, models.TestStatusSuccess, "ok"); errRecord != nil {
		t.Fatalf("record test: %v", errRecord)
	}

	updated, errUpdate := store.Update(ctx, userID, created.ID, UpdateParams{APIKey: "sk-rotated"})
	if errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if updated.TestStatus != models.TestStatusUntested {
		t.Fatalf("expected test status reset after key rotation, got %s", updated.TestStatus)
	}
	plaintext, errDecrypt := store.DecryptAPIKey(updated)
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if plaintext != "sk-rotated" {
		t.Fatalf("expected rotated key, got %q", plaintext)
	}
}
