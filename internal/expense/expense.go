// Package expense holds the expense domain entity, the capability ports it
// is persisted through, the repository coordinating record and receipt-image
// lifecycles, and the two interaction flows (capture and list) consumed by a
// presentation layer.
package expense

import (
	"time"

	"github.com/hafnium/expense-tracker/internal"
	"github.com/hafnium/expense-tracker/internal/datemath"
)

// Record is one expense entry. ID 0 means the record has not been persisted
// yet. Amount is in the smallest currency unit (cents). Timestamps are unix
// milliseconds. Records are treated as values: edits replace the whole
// record, there is no partial mutation from outside the owning flow.
type Record struct {
	ID          int64
	Date        datemath.Date
	Amount      int64
	Description string
	ImagePath   string
	CreatedAt   int64
	UpdatedAt   int64
}

// NewRecord builds an unpersisted record. A non-positive amount is a
// construction failure, not a deferred validation error.
func NewRecord(date datemath.Date, amount int64, description, imagePath string) (*Record, error) {
	if amount <= 0 {
		return nil, internal.ErrInvalidAmount
	}
	now := time.Now().UnixMilli()
	return &Record{
		Date:        date,
		Amount:      amount,
		Description: description,
		ImagePath:   imagePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Persisted reports whether the record has been assigned a storage id.
func (r *Record) Persisted() bool {
	return r.ID != 0
}
