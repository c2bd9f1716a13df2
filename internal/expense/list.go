package expense

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hafnium/expense-tracker/internal/datemath"
)

// ListEventType discriminates one-shot list outcomes.
type ListEventType string

const (
	ListDeleteSucceeded ListEventType = "delete_succeeded"
	ListDeleteFailed    ListEventType = "delete_failed"
	ListLoadFailed      ListEventType = "load_failed"
)

// ListEvent is a one-shot outcome of a delete or subscription failure.
type ListEvent struct {
	Type     ListEventType
	RecordID int64
	Reason   string
}

// ListState is a snapshot of the browse state.
type ListState struct {
	Loading bool
	Date    datemath.Date
	Items   []Record
	IsEmpty bool
	Event   *ListEvent
}

// ListFlow owns the date-scoped reactive listing and the delete-with-refresh
// interaction. It holds one live subscription for the selected date;
// switching the date cancels the previous subscription before opening the
// new one, and a generation counter makes any in-flight emission from a
// superseded date inert so a stale snapshot can never overwrite the current
// date's state.
type ListFlow struct {
	mu     sync.Mutex
	repo   *Repository
	logger *slog.Logger

	date    datemath.Date
	items   []Record
	isEmpty bool
	loading bool
	event   *ListEvent
	sub     *Subscription
	gen     int
	wg      sync.WaitGroup
}

// NewListFlow builds a flow subscribed to today's expenses.
func NewListFlow(ctx context.Context, repo *Repository, logger *slog.Logger) *ListFlow {
	f := &ListFlow{
		repo:    repo,
		logger:  logger,
		date:    datemath.Today(),
		isEmpty: true,
	}
	f.mu.Lock()
	f.resubscribeLocked(ctx)
	f.mu.Unlock()
	return f
}

// SetDate switches the selected date and re-subscribes. The previous
// subscription is torn down first.
func (f *ListFlow) SetDate(ctx context.Context, d datemath.Date) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.date = d
	f.resubscribeLocked(ctx)
}

// DeleteExpense removes a record through the repository. The visible list
// refreshes through the live subscription; the outcome is reported as a
// one-shot event and the list is left unchanged on failure.
func (f *ListFlow) DeleteExpense(ctx context.Context, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.repo.Delete(ctx, id); err != nil {
		f.event = &ListEvent{Type: ListDeleteFailed, RecordID: id, Reason: err.Error()}
		return
	}
	f.event = &ListEvent{Type: ListDeleteSucceeded, RecordID: id}
}

// State returns a copy of the current browse state.
func (f *ListFlow) State() ListState {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]Record, len(f.items))
	copy(items, f.items)
	var event *ListEvent
	if f.event != nil {
		e := *f.event
		event = &e
	}
	return ListState{
		Loading: f.loading,
		Date:    f.date,
		Items:   items,
		IsEmpty: f.isEmpty,
		Event:   event,
	}
}

// ConsumeEvent clears the pending one-shot event and returns it, or nil when
// none is pending.
func (f *ListFlow) ConsumeEvent() *ListEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	event := f.event
	f.event = nil
	return event
}

// Close cancels the live subscription and waits for its applier goroutine.
func (f *ListFlow) Close() {
	f.mu.Lock()
	f.gen++
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	f.wg.Wait()
}

// resubscribeLocked replaces the live subscription with one for the current
// date. Bumping the generation first makes any emission still in flight from
// the old subscription inert before it is cancelled.
func (f *ListFlow) resubscribeLocked(ctx context.Context) {
	f.gen++
	gen := f.gen
	if f.sub != nil {
		f.sub.Cancel()
		f.sub = nil
	}

	f.loading = true
	sub, err := f.repo.QueryByDate(ctx, f.date)
	if err != nil {
		f.loading = false
		f.event = &ListEvent{Type: ListLoadFailed, Reason: err.Error()}
		return
	}

	f.sub = sub
	f.wg.Add(1)
	go f.apply(sub, gen)
}

// apply publishes subscription snapshots onto the flow's serialized update
// path. Emissions belonging to a superseded generation are dropped.
func (f *ListFlow) apply(sub *Subscription, gen int) {
	defer f.wg.Done()
	for items := range sub.Updates() {
		f.mu.Lock()
		if gen != f.gen {
			f.mu.Unlock()
			return
		}
		f.items = items
		f.isEmpty = len(items) == 0
		f.loading = false
		f.mu.Unlock()
	}
}
