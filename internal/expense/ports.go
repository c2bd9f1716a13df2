package expense

import (
	"context"
	"sync"

	"github.com/hafnium/expense-tracker/internal/datemath"
)

// Storage is the durable-store capability the data layer depends on.
// Implementations return internal.ErrRecordNotFound from GetByID when no row
// matches; Update on a missing id is a silent no-op.
type Storage interface {
	Insert(ctx context.Context, rec *Record) (int64, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	QueryByDate(ctx context.Context, date datemath.Date) (*Subscription, error)
	QueryAll(ctx context.Context) (*Subscription, error)
	DeleteOlderThan(ctx context.Context, cutoff datemath.Date) (int64, error)
	ImagePathsOlderThan(ctx context.Context, cutoff datemath.Date) ([]string, error)
}

// ImageStore is the blob-store capability for receipt images. Save generates
// a unique name when filename is empty. Delete reports whether the blob was
// actually removed.
type ImageStore interface {
	Save(data []byte, filename string) (string, error)
	Delete(path string) bool
	Exists(path string) bool
}

// Subscription is a live handle on a reactive query. Every value received
// from Updates is a full, authoritative replacement of the previous
// snapshot, never a diff. Delivery is conflated: an undelivered snapshot is
// replaced by a newer one rather than queued behind it.
type Subscription struct {
	mu      sync.Mutex
	closed  bool
	updates chan []Record
	cancel  func()
}

// NewSubscription builds a subscription whose teardown callback unregisters
// it from the publishing side. Intended for Storage implementations.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{
		updates: make(chan []Record, 1),
		cancel:  cancel,
	}
}

// Updates returns the snapshot channel. It is closed by Cancel.
func (s *Subscription) Updates() <-chan []Record {
	return s.updates
}

// Publish delivers a new snapshot, replacing any undelivered one. Publishing
// after Cancel is a no-op.
func (s *Subscription) Publish(items []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- items:
	default:
		select {
		case <-s.updates:
		default:
		}
		s.updates <- items
	}
}

// Cancel tears the subscription down and closes the update channel. It is
// idempotent. After Cancel returns no further snapshot is published.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	close(s.updates)
}
