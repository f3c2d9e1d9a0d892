package tombstone

import (
	"time"
)

// --- BaseModel Struct ---

// BaseModel provides common fields and functionality for database models.
// It should be embedded into specific model structs.
type BaseModel struct {
	ID        int64     `json:"id" db:"id,pk"`              // Primary key
	CreatedAt time.Time `json:"created_at" db:"created_at"` // Timestamp for creation
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // Timestamp for last update

	// --- Internal ORM state ---
	// Populated by the ORM (fetch, Save, Destroy). Never saved to the DB.
	isNewRecord bool                   `json:"-" db:"-"`
	original    map[string]interface{} `json:"-" db:"-"` // Attributes as last read or written
	previous    map[string]interface{} `json:"-" db:"-"` // Attributes before the last write
}

// GetID returns the primary key value.
func (b *BaseModel) GetID() int64 {
	return b.ID
}

// SetID sets the primary key value.
func (b *BaseModel) SetID(id int64) {
	b.ID = id
}

// TableName returns the database table name for the model.
// Default implementation returns empty string, relying on the snake_case plural
// of the struct name. Override this method in your model for custom table names.
func (b *BaseModel) TableName() string {
	return ""
}

// IsNewRecord returns whether this record has not been persisted yet.
func (b *BaseModel) IsNewRecord() bool {
	return b.isNewRecord || b.ID == 0
}

// SetNewRecordFlag sets the internal isNewRecord flag.
func (b *BaseModel) SetNewRecordFlag(isNew bool) {
	b.isNewRecord = isNew
}

// Previous returns a copy of the attributes the model had before its last
// write through the ORM, or nil if it has not been written.
func (b *BaseModel) Previous() map[string]interface{} {
	return copyAttributes(b.previous)
}

// resetTracking marks attrs as the clean state of the model.
func (b *BaseModel) resetTracking(attrs map[string]interface{}) {
	b.original = attrs
}

func (b *BaseModel) setPrevious(attrs map[string]interface{}) {
	b.previous = attrs
}

func (b *BaseModel) trackedAttributes() map[string]interface{} {
	return b.original
}

// tracker is satisfied by every struct embedding BaseModel.
type tracker interface {
	resetTracking(attrs map[string]interface{})
	setPrevious(attrs map[string]interface{})
	trackedAttributes() map[string]interface{}
}

// --- SoftDeleteModel Struct ---

// SoftDeleteModel is BaseModel plus the deletion marker column. Embedding it
// opts a model into soft deletion under the default Policy field.
type SoftDeleteModel struct {
	BaseModel
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"` // nil while active
}

// SoftDeletes reports participation in soft deletion.
func (SoftDeleteModel) SoftDeletes() bool {
	return true
}

// IsDeleted reports whether the in-memory marker is set.
func (m *SoftDeleteModel) IsDeleted() bool {
	return m.DeletedAt != nil
}

func copyAttributes(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
