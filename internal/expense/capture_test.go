package expense_test

import (
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hafnium/expense-tracker/internal/datemath"
	"github.com/hafnium/expense-tracker/internal/expense"
)

var _ = Describe("CaptureFlow", func() {
	var (
		storage *mockStorage
		images  *mockImages
		repo    *expense.Repository
		flow    *expense.CaptureFlow
		ctx     context.Context
	)

	BeforeEach(func() {
		storage = newMockStorage()
		images = newMockImages()
		repo = expense.NewRepository(storage, images, slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
		flow = expense.NewCaptureFlow(repo, slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
		ctx = context.Background()
	})

	Describe("amount editing", func() {
		It("sets an error eagerly for a non-positive amount", func() {
			flow.SetAmount("0")
			Expect(flow.State().Errors).To(HaveKey(expense.FieldAmount))
		})

		It("clears the error once the amount becomes valid", func() {
			flow.SetAmount("0")
			flow.SetAmount("150")
			Expect(flow.State().Errors).NotTo(HaveKey(expense.FieldAmount))
			Expect(flow.State().AmountText).To(Equal("150"))
		})

		It("clears rather than sets the error for empty text", func() {
			flow.SetAmount("0")
			flow.SetAmount("")
			Expect(flow.State().Errors).NotTo(HaveKey(expense.FieldAmount))
		})

		It("flags unparseable text", func() {
			flow.SetAmount("12abc")
			Expect(flow.State().Errors).To(HaveKey(expense.FieldAmount))
		})
	})

	Describe("date editing", func() {
		It("accepts a future date without an immediate error", func() {
			flow.SetDate(datemath.Today().AddDays(1))
			Expect(flow.State().Errors).To(BeEmpty())
		})
	})

	Describe("Save", func() {
		It("persists a valid new entry and emits SaveSucceeded", func() {
			flow.SetAmount("150")
			flow.SetDescription("lunch")
			flow.Save(ctx)

			event := flow.ConsumeEvent()
			Expect(event).NotTo(BeNil())
			Expect(event.Type).To(Equal(expense.CaptureSaveSucceeded))
			Expect(event.RecordID).To(Equal(int64(1)))

			rec, err := repo.GetByID(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Amount).To(Equal(int64(150)))
			Expect(rec.Description).To(Equal("lunch"))
		})

		It("performs no I/O when the date is in the future", func() {
			flow.SetDate(datemath.Today().AddDays(1))
			flow.SetAmount("150")
			flow.Save(ctx)

			Expect(storage.insertCalls).To(BeZero())
			Expect(flow.State().Errors).To(HaveKey(expense.FieldDate))
			Expect(flow.ConsumeEvent()).To(BeNil())
		})

		It("performs no I/O when the amount is missing", func() {
			flow.Save(ctx)

			Expect(storage.insertCalls).To(BeZero())
			Expect(flow.State().Errors).To(HaveKey(expense.FieldAmount))
		})

		It("persists a staged image and attaches its path", func() {
			flow.SetAmount("200")
			flow.SetPendingImage([]byte("jpeg-bytes"))
			flow.Save(ctx)

			event := flow.ConsumeEvent()
			Expect(event.Type).To(Equal(expense.CaptureSaveSucceeded))

			rec, err := repo.GetByID(ctx, event.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ImagePath).NotTo(BeEmpty())
			Expect(images.Exists(rec.ImagePath)).To(BeTrue())
		})

		It("still saves the record when the image store fails", func() {
			images.saveErr = errors.New("disk full")
			flow.SetAmount("200")
			flow.SetPendingImage([]byte("jpeg-bytes"))
			flow.Save(ctx)

			event := flow.ConsumeEvent()
			Expect(event.Type).To(Equal(expense.CaptureSaveSucceeded))

			rec, err := repo.GetByID(ctx, event.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ImagePath).To(BeEmpty())
		})

		It("emits SaveFailed and preserves the form on a storage fault", func() {
			storage.insertErr = errors.New("database locked")
			flow.SetAmount("150")
			flow.SetDescription("lunch")
			flow.Save(ctx)

			event := flow.ConsumeEvent()
			Expect(event).NotTo(BeNil())
			Expect(event.Type).To(Equal(expense.CaptureSaveFailed))

			state := flow.State()
			Expect(state.AmountText).To(Equal("150"))
			Expect(state.Description).To(Equal("lunch"))
			Expect(state.Saving).To(BeFalse())
		})

		It("discards the cleared pending image", func() {
			flow.SetAmount("100")
			flow.SetPendingImage([]byte("jpeg-bytes"))
			flow.ClearPendingImage()
			flow.Save(ctx)

			event := flow.ConsumeEvent()
			rec, err := repo.GetByID(ctx, event.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ImagePath).To(BeEmpty())
		})
	})

	Describe("LoadForEdit", func() {
		var saved *expense.Record

		BeforeEach(func() {
			var err error
			saved, err = expense.NewRecord(datemath.Date{Year: 2025, Month: 11, Day: 14}, 500, "groceries", "images/receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = repo.Save(context.Background(), saved)
			Expect(err).NotTo(HaveOccurred())
		})

		It("populates the form from the stored record", func() {
			flow.LoadForEdit(ctx, saved.ID)

			state := flow.State()
			Expect(state.Date).To(Equal(saved.Date))
			Expect(state.AmountText).To(Equal("500"))
			Expect(state.Description).To(Equal("groceries"))
			Expect(state.ExistingImagePath).To(Equal("images/receipt.jpg"))
			Expect(state.PendingImage).To(BeNil())
		})

		It("emits LoadFailed for an unknown id and leaves defaults", func() {
			flow.LoadForEdit(ctx, 999)

			event := flow.ConsumeEvent()
			Expect(event).NotTo(BeNil())
			Expect(event.Type).To(Equal(expense.CaptureLoadFailed))
			Expect(flow.State().AmountText).To(BeEmpty())
		})

		It("updates in place on a subsequent save, keeping the id", func() {
			flow.LoadForEdit(ctx, saved.ID)
			flow.SetAmount("750")
			flow.Save(ctx)

			event := flow.ConsumeEvent()
			Expect(event.Type).To(Equal(expense.CaptureSaveSucceeded))
			Expect(event.RecordID).To(Equal(saved.ID))

			rec, err := repo.GetByID(ctx, saved.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Amount).To(Equal(int64(750)))
			Expect(rec.CreatedAt).To(Equal(saved.CreatedAt))
		})

		It("keeps the existing image when no new one is staged", func() {
			flow.LoadForEdit(ctx, saved.ID)
			flow.SetAmount("750")
			flow.Save(ctx)
			flow.ConsumeEvent()

			rec, err := repo.GetByID(ctx, saved.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ImagePath).To(Equal("images/receipt.jpg"))
		})
	})

	Describe("events", func() {
		It("stays observable until consumed, then clears", func() {
			flow.SetAmount("150")
			flow.Save(ctx)

			first := flow.State().Event
			second := flow.State().Event
			Expect(first).NotTo(BeNil())
			Expect(second).NotTo(BeNil())
			Expect(*first).To(Equal(*second))

			Expect(flow.ConsumeEvent()).NotTo(BeNil())
			Expect(flow.ConsumeEvent()).To(BeNil())
			Expect(flow.State().Event).To(BeNil())
		})
	})
})
