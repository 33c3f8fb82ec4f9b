package postgres

import (
	"fmt"
	"time"
)

// pgTimestamp scans a nullable timestamptz column into an optional
// *time.Time, matching the room-time model's -infinity/+infinity bounds.
type pgTimestamp struct {
	ptr *time.Time
}

func (t *pgTimestamp) Scan(src any) error {
	if src == nil {
		t.ptr = nil
		return nil
	}
	v, ok := src.(time.Time)
	if !ok {
		return fmt.Errorf("postgres: unexpected type %T for timestamp column", src)
	}
	tt := v
	t.ptr = &tt
	return nil
}
