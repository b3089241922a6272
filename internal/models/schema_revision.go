package models

import "time"

// SchemaRevision records one applied migration revision.
type SchemaRevision struct {
	ID        string    `gorm:"type:text;primaryKey"`    // Revision identifier.
	AppliedAt time.Time `gorm:"not null;autoCreateTime"` // Application timestamp.
}

// TableName fixes the revision bookkeeping table name.
func (SchemaRevision) TableName() string { return "schema_revisions" }
