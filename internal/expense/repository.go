package expense

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hafnium/expense-tracker/internal"
	"github.com/hafnium/expense-tracker/internal/datemath"
)

// imageDeleteWorkers bounds concurrent image removals during a purge.
const imageDeleteWorkers = 4

// Repository mediates between durable storage and the attached receipt
// images. It is the only component that touches both ports in a single
// operation, which is what lets it keep image lifetime bound to record
// lifetime: deleting a record deletes its image first, and purges clean up
// the images of the rows they drop.
type Repository struct {
	storage Storage
	images  ImageStore
	logger  *slog.Logger
}

func NewRepository(storage Storage, images ImageStore, logger *slog.Logger) *Repository {
	return &Repository{
		storage: storage,
		images:  images,
		logger:  logger,
	}
}

// Save inserts the record when it has no id yet and returns the freshly
// assigned one; otherwise it updates the existing row and returns the same
// id. Updates refresh UpdatedAt.
func (r *Repository) Save(ctx context.Context, rec *Record) (int64, error) {
	if !rec.Persisted() {
		id, err := r.storage.Insert(ctx, rec)
		if err != nil {
			r.logger.Error("failed to insert expense", "error", err)
			return 0, internal.NewStorageError("failed to save expense", err)
		}
		rec.ID = id
		return id, nil
	}

	rec.UpdatedAt = time.Now().UnixMilli()
	if err := r.storage.Update(ctx, rec); err != nil {
		r.logger.Error("failed to update expense", "error", err, "expense_id", rec.ID)
		return 0, internal.NewStorageError("failed to save expense", err)
	}
	return rec.ID, nil
}

// GetByID returns internal.ErrRecordNotFound when no record matches.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Record, error) {
	rec, err := r.storage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrRecordNotFound) {
			return nil, err
		}
		r.logger.Error("failed to load expense", "error", err, "expense_id", id)
		return nil, internal.NewStorageError("failed to load expense", err)
	}
	return rec, nil
}

// QueryByDate returns a reactive subscription over the records for the given
// date, ordered most recently created first.
func (r *Repository) QueryByDate(ctx context.Context, date datemath.Date) (*Subscription, error) {
	sub, err := r.storage.QueryByDate(ctx, date)
	if err != nil {
		r.logger.Error("failed to subscribe by date", "error", err, "date", date.String())
		return nil, internal.NewStorageError("failed to query expenses", err)
	}
	return sub, nil
}

// QueryAll returns a reactive subscription over all records, ordered by date
// descending then creation time descending.
func (r *Repository) QueryAll(ctx context.Context) (*Subscription, error) {
	sub, err := r.storage.QueryAll(ctx)
	if err != nil {
		r.logger.Error("failed to subscribe to all expenses", "error", err)
		return nil, internal.NewStorageError("failed to query expenses", err)
	}
	return sub, nil
}

// Delete removes a record together with its attached image. A missing id is
// a no-op. The image is deleted before the row; an image-store failure is
// logged and the row deletion proceeds regardless, trading a possible
// orphaned blob for "record deletion always succeeds".
func (r *Repository) Delete(ctx context.Context, id int64) error {
	rec, err := r.storage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrRecordNotFound) {
			return nil
		}
		r.logger.Error("failed to load expense for deletion", "error", err, "expense_id", id)
		return internal.NewStorageError("failed to delete expense", err)
	}

	if rec.ImagePath != "" {
		if !r.images.Delete(rec.ImagePath) {
			r.logger.Warn("failed to delete receipt image, deleting record anyway",
				"expense_id", id,
				"image_path", rec.ImagePath)
		}
	}

	if err := r.storage.Delete(ctx, rec); err != nil {
		r.logger.Error("failed to delete expense", "error", err, "expense_id", id)
		return internal.NewStorageError("failed to delete expense", err)
	}
	return nil
}

// PurgeOlderThan bulk-deletes all records strictly older than cutoff and
// returns how many rows were removed. Their receipt images are removed
// best-effort afterwards; image failures are logged, never surfaced.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff datemath.Date) (int64, error) {
	paths, err := r.storage.ImagePathsOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Warn("failed to collect receipt images for purge, rows will still be purged",
			"error", err,
			"cutoff", cutoff.String())
		paths = nil
	}

	count, err := r.storage.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to purge expenses", "error", err, "cutoff", cutoff.String())
		return 0, internal.NewStorageError("failed to purge expenses", err)
	}

	var g errgroup.Group
	g.SetLimit(imageDeleteWorkers)
	for _, path := range paths {
		g.Go(func() error {
			if !r.images.Delete(path) {
				r.logger.Warn("failed to delete receipt image during purge", "image_path", path)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("purged expenses", "count", count, "cutoff", cutoff.String())
	return count, nil
}

// SaveImage persists receipt image bytes through the image store and returns
// the stored path. Callers treat failures as best-effort: a failed image
// save never aborts the record save that owns it.
func (r *Repository) SaveImage(data []byte, filename string) (string, error) {
	path, err := r.images.Save(data, filename)
	if err != nil {
		r.logger.Warn("failed to save receipt image", "error", err, "filename", filename)
		return "", &internal.AppError{
			Type:    internal.ErrorTypeStorage,
			Code:    internal.ErrCodeImageFailed,
			Message: "failed to save receipt image",
			Cause:   err,
		}
	}
	return path, nil
}
