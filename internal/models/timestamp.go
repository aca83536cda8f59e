package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by the store when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// TimeLayout is the ISO-8601 layout used for every timestamp column. It is
// fixed width and always UTC so that string comparison in SQL matches
// chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp is a time.Time persisted as an ISO-8601 string.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the stored precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

// TimestampPtr is a convenience for nullable columns.
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

// FormatTime renders t in the stored layout, for use as a bound query parameter.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// GormDataType implements gorm's schema.GormDataTypeInterface.
func (Timestamp) GormDataType() string {
	return "string"
}

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	return FormatTime(t.Time), nil
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case time.Time:
		t.Time = v.UTC()
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (t *Timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON renders the stored layout.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + FormatTime(t.Time) + `"`), nil
}
