package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/krishimitra/internal/common"
)

// Matches reports whether r has, for every key of query, a value strictly
// equal to the query's. Numbers compare by value whatever their Go type.
// Objects and arrays never compare equal: stored records are decoded afresh
// on each read, so there is no shared reference to match. An empty query
// matches every record.
func Matches(r Record, query Record) bool {
	for k, want := range query {
		got, ok := r[k]
		if !ok || !strictEqual(got, want) {
			return false
		}
	}
	return true
}

func strictEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isComposite(a) || isComposite(b) {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func isComposite(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ParseQuery builds a Record from "name=value" items. Values that parse as
// JSON (numbers, booleans, null, quoted strings, arrays, objects) are
// decoded; anything else is taken as a plain string.
func ParseQuery(items []string) (Record, error) {
	q := make(Record, len(items))
	for _, item := range items {
		name, raw, ok := strings.Cut(item, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: %w", item, common.ErrorIncorrectQuery)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		q[name] = v
	}
	return q, nil
}
