package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/krishimitra/internal/common"
)

// Record is one stored document.
type Record map[string]any

// Collection is an ordered set of records.
type Collection []Record

// Database is the full content of a namespace.
type Database map[string]Collection

// ID returns the record id, or "" if it has none.
func (r Record) ID() string {
	id, _ := r[common.FieldID].(string)
	return id
}

// CreatedAt returns the insert timestamp as stored.
func (r Record) CreatedAt() string {
	s, _ := r[common.FieldCreatedAt].(string)
	return s
}

// UpdatedAt returns the last update timestamp, or "" before the first update.
func (r Record) UpdatedAt() string {
	s, _ := r[common.FieldUpdatedAt].(string)
	return s
}

// clone returns a shallow copy of r.
func (r Record) clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

func isReserved(field string) bool {
	switch field {
	case common.FieldID, common.FieldCreatedAt, common.FieldUpdatedAt:
		return true
	}
	return false
}

// ToRecord converts any JSON-encodable value (typically a struct) into a
// Record.
func ToRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("record must encode to a JSON object: %w", err)
	}
	return r, nil
}

// FromRecord decodes r into a value of type T.
func FromRecord[T any](r Record) (T, error) {
	var out T
	b, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}
