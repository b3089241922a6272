package db

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	return conn
}

func TestMigrateAppliesFullChainOnce(t *testing.T) {
	conn := openTestDB(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// Re-running must be a no-op, not a duplicate apply.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("re-migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "teams", "team_members", "settings", "conversations", "sessions", "csrf_tokens", "llm_configurations"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}

	var count int64
	if errCount := conn.Model(&models.SchemaRevision{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count revisions: %v", errCount)
	}
	if count != int64(len(Revisions())) {
		t.Fatalf("expected %d applied revisions, got %d", len(Revisions()), count)
	}
}

func TestUpgradeDowngradeRoundTrip(t *testing.T) {
	conn := openTestDB(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errDown := Downgrade(conn, ""); errDown != nil {
		t.Fatalf("downgrade: %v", errDown)
	}

	for _, table := range []string{"users", "teams", "team_members", "settings", "conversations", "sessions", "csrf_tokens", "llm_configurations"} {
		if conn.Migrator().HasTable(table) {
			t.Fatalf("table %s survived downgrade", table)
		}
	}

	var count int64
	if errCount := conn.Model(&models.SchemaRevision{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count revisions: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected empty revision record, got %d rows", count)
	}

	// The chain must be re-appliable after a full downgrade.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("re-migrate after downgrade: %v", errMigrate)
	}
}

func TestDowngradeToTargetStopsAtTarget(t *testing.T) {
	conn := openTestDB(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errDown := Downgrade(conn, "0001_base"); errDown != nil {
		t.Fatalf("downgrade: %v", errDown)
	}

	if !conn.Migrator().HasTable("users") {
		t.Fatalf("users table should survive downgrade to 0001_base")
	}
	for _, table := range []string{"sessions", "csrf_tokens", "llm_configurations", "conversations"} {
		if conn.Migrator().HasTable(table) {
			t.Fatalf("table %s should be gone after downgrade to 0001_base", table)
		}
	}
}

func TestMigrateRejectsUnknownAppliedRevision(t *testing.T) {
	conn := openTestDB(t)

	if errTable := conn.AutoMigrate(&models.SchemaRevision{}); errTable != nil {
		t.Fatalf("create schema_revisions: %v", errTable)
	}
	bogus := models.SchemaRevision{ID: "9999_divergent", AppliedAt: time.Now().UTC()}
	if errCreate := conn.Create(&bogus).Error; errCreate != nil {
		t.Fatalf("insert bogus revision: %v", errCreate)
	}

	if errMigrate := Migrate(conn); errMigrate == nil {
		t.Fatalf("expected migrate to fail on unknown applied revision")
	}
}

func TestMigrateRejectsGappedRevisionRecord(t *testing.T) {
	conn := openTestDB(t)

	if errTable := conn.AutoMigrate(&models.SchemaRevision{}); errTable != nil {
		t.Fatalf("create schema_revisions: %v", errTable)
	}
	// 0002 recorded without 0001: the database was touched by a diverged
	// binary and must not be silently healed.
	gapped := models.SchemaRevision{ID: "0002_sessions_csrf", AppliedAt: time.Now().UTC()}
	if errCreate := conn.Create(&gapped).Error; errCreate != nil {
		t.Fatalf("insert gapped revision: %v", errCreate)
	}

	errMigrate := Migrate(conn)
	if !errors.Is(errMigrate, ErrMissingParent) {
		t.Fatalf("expected ErrMissingParent, got %v", errMigrate)
	}
	for _, table := range []string{"users", "sessions", "llm_configurations"} {
		if conn.Migrator().HasTable(table) {
			t.Fatalf("table %s was created despite the gapped record", table)
		}
	}

	if errDown := Downgrade(conn, ""); !errors.Is(errDown, ErrMissingParent) {
		t.Fatalf("expected Downgrade to reject the gapped record, got %v", errDown)
	}
}

func TestLLMConfigurationSingleDefaultPerUser(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	now := time.Now().UTC()
	user := models.User{Username: "alice", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	other := models.User{Username: "bob", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&other).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	first := models.LLMConfiguration{
		UserID: user.ID, Name: "primary", Provider: "openai", Model: "gpt-4o",
		EncryptedAPIKey: "enc", IsDefault: true, IsActive: true, TestStatus: models.TestStatusUntested,
	}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first default: %v", errCreate)
	}

	second := models.LLMConfiguration{
		UserID: user.ID, Name: "backup", Provider: "anthropic", Model: "claude-sonnet",
		EncryptedAPIKey: "enc", IsDefault: true, IsActive: true, TestStatus: models.TestStatusUntested,
	}
	if errCreate := conn.Create(&second).Error; errCreate == nil {
		t.Fatalf("expected second default for the same user to violate %s", llmDefaultIndex)
	}

	second.IsDefault = false
	second.ID = 0
	if errCreate := conn.Create(&second).Error; errCreate != nil {
		t.Fatalf("create non-default for same user: %v", errCreate)
	}

	otherDefault := models.LLMConfiguration{
		UserID: other.ID, Name: "primary", Provider: "openai", Model: "gpt-4o",
		EncryptedAPIKey: "enc", IsDefault: true, IsActive: true, TestStatus: models.TestStatusUntested,
	}
	if errCreate := conn.Create(&otherDefault).Error; errCreate != nil {
		t.Fatalf("create default for other user: %v", errCreate)
	}
}

func TestUserEmailUniqueOnlyWhenPresent(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	now := time.Now().UTC()
	for _, name := range []string{"no-mail-1", "no-mail-2"} {
		user := models.User{Username: name, Password: "hash", CreatedAt: now, UpdatedAt: now}
		if errCreate := conn.Create(&user).Error; errCreate != nil {
			t.Fatalf("create %s without email: %v", name, errCreate)
		}
	}

	first := models.User{Username: "mail-1", Email: "shared@example.com", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first mailed user: %v", errCreate)
	}
	second := models.User{Username: "mail-2", Email: "shared@example.com", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&second).Error; errCreate == nil {
		t.Fatalf("expected duplicate email to violate %s", usersEmailIndex)
	}
}

func TestDeletingSessionCascadesCSRFTokens(t *testing.T) {
	conn := openTestDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	now := time.Now().UTC()
	user := models.User{Username: "carol", Password: "hash", CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	session := models.Session{
		UserID: user.ID, TokenHash: "hash-1",
		ExpiresAt: now.Add(time.Hour), LastActivity: now, CreatedAt: now,
	}
	if errCreate := conn.Create(&session).Error; errCreate != nil {
		t.Fatalf("create session: %v", errCreate)
	}
	token := models.CSRFToken{
		Token: "csrf-1", SessionID: session.ID,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if errCreate := conn.Create(&token).Error; errCreate != nil {
		t.Fatalf("create csrf token: %v", errCreate)
	}

	if errDelete := conn.Delete(&models.Session{}, session.ID).Error; errDelete != nil {
		t.Fatalf("delete session: %v", errDelete)
	}

	var count int64
	if errCount := conn.Model(&models.CSRFToken{}).Where("session_id = ?", session.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count csrf tokens: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected csrf tokens to cascade on session delete, found %d", count)
	}
}
