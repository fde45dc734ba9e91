// Package timex contains time helpers shared by configuration and storage.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("3s", "1m30s") or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// ISOMillis is the layout used for record timestamps: UTC, millisecond
// precision, "Z" suffix (the same shape JavaScript's toISOString produces).
const ISOMillis = "2006-01-02T15:04:05.000Z"

// FormatISO renders t in UTC using ISOMillis.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOMillis)
}
