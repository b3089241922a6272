package db

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/models"
)

// Migration chain errors.
var (
	// ErrUnknownRevision indicates a revision ID absent from the chain.
	ErrUnknownRevision = errors.New("db: unknown revision")
	// ErrMissingParent indicates an applied-revision record whose parent was
	// never applied, i.e. a database migrated by a diverged binary.
	ErrMissingParent = errors.New("db: revision applied without its parent")
	// ErrBrokenChain indicates the compiled-in revision list is not linear.
	ErrBrokenChain = errors.New("db: revision chain is not linear")
)

// Revision is one versioned schema mutation. Up and Down must be exact
// structural inverses: everything Up creates, Down drops in reverse
// dependency order.
type Revision struct {
	ID     string
	Parent string // empty for the root revision
	Up     func(tx *gorm.DB) error
	Down   func(tx *gorm.DB) error
}

// RevisionStatus pairs a chain revision with its applied state.
type RevisionStatus struct {
	ID        string
	Applied   bool
	AppliedAt time.Time
}

// validateChain checks that revisions form a single linear chain.
func validateChain(chain []Revision) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrBrokenChain)
	}
	seen := make(map[string]struct{}, len(chain))
	for i, rev := range chain {
		if rev.ID == "" {
			return fmt.Errorf("%w: revision %d has empty id", ErrBrokenChain, i)
		}
		if _, dup := seen[rev.ID]; dup {
			return fmt.Errorf("%w: duplicate revision %s", ErrBrokenChain, rev.ID)
		}
		seen[rev.ID] = struct{}{}
		if i == 0 {
			if rev.Parent != "" {
				return fmt.Errorf("%w: root revision %s declares parent %s", ErrBrokenChain, rev.ID, rev.Parent)
			}
			continue
		}
		if rev.Parent != chain[i-1].ID {
			return fmt.Errorf("%w: revision %s declares parent %s, expected %s", ErrBrokenChain, rev.ID, rev.Parent, chain[i-1].ID)
		}
	}
	return nil
}

// appliedRevisions loads the applied-revision record as a set, creating the
// bookkeeping table on first use.
func appliedRevisions(conn *gorm.DB) (map[string]time.Time, error) {
	if errTable := conn.AutoMigrate(&models.SchemaRevision{}); errTable != nil {
		return nil, fmt.Errorf("db: ensure schema_revisions: %w", errTable)
	}
	var rows []models.SchemaRevision
	if errFind := conn.Order("applied_at ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("db: load schema_revisions: %w", errFind)
	}
	applied := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		applied[row.ID] = row.AppliedAt
	}
	return applied, nil
}

// validateAppliedRecord rejects applied-revision records this binary cannot
// reconcile: revisions absent from the chain, and gapped records where a
// revision is recorded without its parent. A gapped record means the database
// was migrated by a diverged binary; healing it silently would skip the
// missing revision's tables.
func validateAppliedRecord(chain []Revision, applied map[string]time.Time) error {
	known := make(map[string]struct{}, len(chain))
	for _, rev := range chain {
		known[rev.ID] = struct{}{}
	}
	for id := range applied {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %s recorded in schema_revisions", ErrUnknownRevision, id)
		}
	}
	for _, rev := range chain {
		if _, done := applied[rev.ID]; !done {
			continue
		}
		if rev.Parent == "" {
			continue
		}
		if _, parentDone := applied[rev.Parent]; !parentDone {
			return fmt.Errorf("%w: %s recorded without %s", ErrMissingParent, rev.ID, rev.Parent)
		}
	}
	return nil
}

// Migrate applies every unapplied revision in chain order. Already-applied
// revisions are never re-run. It fails loudly when the database records a
// revision unknown to this binary or a revision whose parent is missing.
func Migrate(conn *gorm.DB) error {
	chain := Revisions()
	if errChain := validateChain(chain); errChain != nil {
		return errChain
	}
	applied, errApplied := appliedRevisions(conn)
	if errApplied != nil {
		return errApplied
	}

	if errRecord := validateAppliedRecord(chain, applied); errRecord != nil {
		return errRecord
	}

	for _, rev := range chain {
		if _, done := applied[rev.ID]; done {
			continue
		}
		errApply := conn.Transaction(func(tx *gorm.DB) error {
			if errUp := rev.Up(tx); errUp != nil {
				return fmt.Errorf("db: upgrade %s: %w", rev.ID, errUp)
			}
			record := models.SchemaRevision{ID: rev.ID, AppliedAt: time.Now().UTC()}
			if errCreate := tx.Create(&record).Error; errCreate != nil {
				return fmt.Errorf("db: record %s: %w", rev.ID, errCreate)
			}
			return nil
		})
		if errApply != nil {
			return errApply
		}
		applied[rev.ID] = time.Now().UTC()
		log.Infof("db: applied revision %s", rev.ID)
	}
	return nil
}

// Downgrade reverts applied revisions from the head down to, and excluding,
// target. An empty target reverts the whole chain.
func Downgrade(conn *gorm.DB, target string) error {
	chain := Revisions()
	if errChain := validateChain(chain); errChain != nil {
		return errChain
	}
	if target != "" {
		found := false
		for _, rev := range chain {
			if rev.ID == target {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUnknownRevision, target)
		}
	}
	applied, errApplied := appliedRevisions(conn)
	if errApplied != nil {
		return errApplied
	}
	if errRecord := validateAppliedRecord(chain, applied); errRecord != nil {
		return errRecord
	}

	for i := len(chain) - 1; i >= 0; i-- {
		rev := chain[i]
		if rev.ID == target {
			break
		}
		if _, done := applied[rev.ID]; !done {
			continue
		}
		errRevert := conn.Transaction(func(tx *gorm.DB) error {
			if errDown := rev.Down(tx); errDown != nil {
				return fmt.Errorf("db: downgrade %s: %w", rev.ID, errDown)
			}
			if errDelete := tx.Delete(&models.SchemaRevision{}, "id = ?", rev.ID).Error; errDelete != nil {
				return fmt.Errorf("db: unrecord %s: %w", rev.ID, errDelete)
			}
			return nil
		})
		if errRevert != nil {
			return errRevert
		}
		delete(applied, rev.ID)
		log.Infof("db: reverted revision %s", rev.ID)
	}
	return nil
}

// Status reports each chain revision and whether it has been applied.
func Status(conn *gorm.DB) ([]RevisionStatus, error) {
	chain := Revisions()
	if errChain := validateChain(chain); errChain != nil {
		return nil, errChain
	}
	applied, errApplied := appliedRevisions(conn)
	if errApplied != nil {
		return nil, errApplied
	}
	out := make([]RevisionStatus, 0, len(chain))
	for _, rev := range chain {
		appliedAt, done := applied[rev.ID]
		out = append(out, RevisionStatus{ID: rev.ID, Applied: done, AppliedAt: appliedAt})
	}
	return out, nil
}
