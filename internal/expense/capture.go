package expense

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hafnium/expense-tracker/internal/datemath"
)

// Field identifies a form field a validation error is keyed by.
type Field string

const (
	FieldDate   Field = "date"
	FieldAmount Field = "amount"
	FieldImage  Field = "image"
)

// CaptureEventType discriminates one-shot capture outcomes.
type CaptureEventType string

const (
	CaptureSaveSucceeded CaptureEventType = "save_succeeded"
	CaptureSaveFailed    CaptureEventType = "save_failed"
	CaptureLoadFailed    CaptureEventType = "load_failed"
)

// CaptureEvent is a one-shot outcome of a save or load. It stays observable
// until consumed; delivery is exactly once per emission.
type CaptureEvent struct {
	Type     CaptureEventType
	RecordID int64
	Reason   string
}

// CaptureState is a snapshot of the capture form, safe for the caller to
// hold across transitions.
type CaptureState struct {
	Loading           bool
	Saving            bool
	Date              datemath.Date
	AmountText        string
	Description       string
	PendingImage      []byte
	ExistingImagePath string
	Errors            map[Field]string
	Event             *CaptureEvent
}

// CaptureFlow owns the create/edit interaction: field edits with eager
// amount validation, photo attach/detach, load-for-edit and the save commit.
// A single mutex serializes transitions, so each one fully applies before
// the next is accepted; blocking operations take a context and may be driven
// from the caller's own goroutine.
type CaptureFlow struct {
	mu     sync.Mutex
	repo   *Repository
	logger *slog.Logger

	id              int64
	loadedCreatedAt int64
	date            datemath.Date
	amountText      string
	description     string
	pendingImage    []byte
	existingImage   string
	errors          map[Field]string
	loading         bool
	saving          bool
	event           *CaptureEvent
}

// NewCaptureFlow builds a flow for a new entry, with the date defaulting to
// today. Use LoadForEdit to populate it from an existing record.
func NewCaptureFlow(repo *Repository, logger *slog.Logger) *CaptureFlow {
	return &CaptureFlow{
		repo:   repo,
		logger: logger,
		date:   datemath.Today(),
		errors: map[Field]string{},
	}
}

// SetDate stores the selected date and clears any date error. Range checks
// are deferred to save time.
func (f *CaptureFlow) SetDate(d datemath.Date) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.date = d
	delete(f.errors, FieldDate)
}

// SetAmount stores the raw amount text and validates it eagerly: non-empty
// text that does not parse to a positive integer sets an amount error, empty
// text clears it without setting one, distinguishing untouched from invalid.
func (f *CaptureFlow) SetAmount(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amountText = text
	if text == "" {
		delete(f.errors, FieldAmount)
		return
	}
	if v, err := strconv.ParseInt(text, 10, 64); err != nil || v <= 0 {
		f.errors[FieldAmount] = "amount must be a positive number"
	} else {
		delete(f.errors, FieldAmount)
	}
}

// SetDescription updates the description text.
func (f *CaptureFlow) SetDescription(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.description = text
}

// SetPendingImage stages image bytes to be persisted on the next save.
func (f *CaptureFlow) SetPendingImage(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingImage = data
	delete(f.errors, FieldImage)
}

// ClearPendingImage discards the staged image bytes.
func (f *CaptureFlow) ClearPendingImage() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingImage = nil
}

// LoadForEdit fetches an existing record and populates the form from it. On
// not-found or a storage fault it emits a LoadFailed event and leaves the
// fields at their defaults.
func (f *CaptureFlow) LoadForEdit(ctx context.Context, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loading = true
	rec, err := f.repo.GetByID(ctx, id)
	f.loading = false
	if err != nil {
		f.event = &CaptureEvent{Type: CaptureLoadFailed, Reason: err.Error()}
		return
	}

	f.id = rec.ID
	f.loadedCreatedAt = rec.CreatedAt
	f.date = rec.Date
	f.amountText = strconv.FormatInt(rec.Amount, 10)
	f.description = rec.Description
	f.existingImage = rec.ImagePath
	f.pendingImage = nil
	f.errors = map[Field]string{}
}

// Save validates the whole form and commits it. Validation failure populates
// the error set and performs no I/O. A staged image is persisted first,
// best-effort: if that fails the save continues with the previously existing
// path, or none. On success a SaveSucceeded event is emitted; on a storage
// fault a SaveFailed event is emitted and the form state is preserved so the
// caller can retry.
func (f *CaptureFlow) Save(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.validateLocked() {
		return
	}

	f.saving = true
	defer func() { f.saving = false }()

	amount, _ := strconv.ParseInt(f.amountText, 10, 64)
	imagePath := f.resolveImageLocked()

	rec, err := NewRecord(f.date, amount, f.description, imagePath)
	if err != nil {
		f.event = &CaptureEvent{Type: CaptureSaveFailed, Reason: err.Error()}
		return
	}
	if f.id > 0 {
		rec.ID = f.id
		rec.CreatedAt = f.loadedCreatedAt
	}

	id, err := f.repo.Save(ctx, rec)
	if err != nil {
		f.event = &CaptureEvent{Type: CaptureSaveFailed, Reason: err.Error()}
		return
	}

	f.id = id
	f.existingImage = imagePath
	f.pendingImage = nil
	f.event = &CaptureEvent{Type: CaptureSaveSucceeded, RecordID: id}
}

// State returns a copy of the current form state.
func (f *CaptureFlow) State() CaptureState {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := make(map[Field]string, len(f.errors))
	for k, v := range f.errors {
		errs[k] = v
	}
	var event *CaptureEvent
	if f.event != nil {
		e := *f.event
		event = &e
	}
	return CaptureState{
		Loading:           f.loading,
		Saving:            f.saving,
		Date:              f.date,
		AmountText:        f.amountText,
		Description:       f.description,
		PendingImage:      f.pendingImage,
		ExistingImagePath: f.existingImage,
		Errors:            errs,
		Event:             event,
	}
}

// ConsumeEvent clears the pending one-shot event and returns it, or nil when
// none is pending. Observation via State before consumption always sees the
// same event.
func (f *CaptureFlow) ConsumeEvent() *CaptureEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	event := f.event
	f.event = nil
	return event
}

// validateLocked runs the save-time validation pass: the date must not be
// after today and the amount text must parse to a positive integer. It
// replaces the whole error set.
func (f *CaptureFlow) validateLocked() bool {
	errs := map[Field]string{}

	if f.date.After(datemath.Today()) {
		errs[FieldDate] = "date cannot be in the future"
	}
	if v, err := strconv.ParseInt(f.amountText, 10, 64); err != nil || v <= 0 {
		errs[FieldAmount] = "amount must be a positive number"
	}

	f.errors = errs
	return len(errs) == 0
}

// resolveImageLocked persists the staged image if there is one and returns
// the path the record should carry. An image-store failure falls back to the
// existing path; the image is optional and never aborts the save.
func (f *CaptureFlow) resolveImageLocked() string {
	if f.pendingImage == nil {
		return f.existingImage
	}

	filename := fmt.Sprintf("expense_%s_%d.jpg", f.date, time.Now().UnixMilli())
	path, err := f.repo.SaveImage(f.pendingImage, filename)
	if err != nil {
		f.logger.Warn("receipt image save failed, saving expense without it", "error", err)
		return f.existingImage
	}
	return path
}
