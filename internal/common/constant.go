package common

// DefaultNamespace is the storage key under which a database is persisted
// when no other namespace is configured.
const DefaultNamespace = "krishimitra_db"

// Reserved record fields managed by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)
