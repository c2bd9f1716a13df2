package expense_test

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hafnium/expense-tracker/internal"
	"github.com/hafnium/expense-tracker/internal/datemath"
	"github.com/hafnium/expense-tracker/internal/expense"
	"github.com/hafnium/expense-tracker/internal/expense/gormstore"
)

var _ = Describe("Repository", func() {
	var (
		db     *gorm.DB
		store  *gormstore.Store
		images *mockImages
		repo   *expense.Repository
		ctx    context.Context
	)

	date := datemath.Date{Year: 2025, Month: 11, Day: 14}

	mustSave := func(d datemath.Date, amount int64, desc, imagePath string, createdAt int64) *expense.Record {
		rec, err := expense.NewRecord(d, amount, desc, imagePath)
		Expect(err).NotTo(HaveOccurred())
		rec.CreatedAt = createdAt
		rec.UpdatedAt = createdAt
		_, err = repo.Save(ctx, rec)
		Expect(err).NotTo(HaveOccurred())
		return rec
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		log := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		store = gormstore.New(db, log)
		Expect(store.AutoMigrate()).To(Succeed())

		images = newMockImages()
		repo = expense.NewRepository(store, images, log)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Save", func() {
		It("assigns a fresh id on first save and reads back equal", func() {
			rec := mustSave(date, 150, "coffee", "", 1000)
			Expect(rec.ID).To(BeNumerically(">", 0))

			loaded, err := repo.GetByID(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Date).To(Equal(rec.Date))
			Expect(loaded.Amount).To(Equal(rec.Amount))
			Expect(loaded.Description).To(Equal(rec.Description))
			Expect(loaded.CreatedAt).To(Equal(rec.CreatedAt))
		})

		It("updates in place and refreshes UpdatedAt", func() {
			rec := mustSave(date, 150, "coffee", "", 1000)

			rec.Description = "espresso"
			before := time.Now().UnixMilli()
			id, err := repo.Save(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(rec.ID))

			loaded, err := repo.GetByID(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Description).To(Equal("espresso"))
			Expect(loaded.UpdatedAt).To(BeNumerically(">=", before))
			Expect(loaded.CreatedAt).To(Equal(int64(1000)))
		})
	})

	Describe("GetByID", func() {
		It("returns ErrRecordNotFound for an unknown id", func() {
			_, err := repo.GetByID(ctx, 99999)
			Expect(err).To(MatchError(internal.ErrRecordNotFound))
		})
	})

	Describe("Delete", func() {
		It("deletes the image before the row", func() {
			path, err := images.Save([]byte("jpeg"), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			rec := mustSave(date, 150, "coffee", path, 1000)

			Expect(repo.Delete(ctx, rec.ID)).To(Succeed())

			Expect(images.Exists(path)).To(BeFalse())
			_, err = repo.GetByID(ctx, rec.ID)
			Expect(err).To(MatchError(internal.ErrRecordNotFound))
		})

		It("is a no-op for a missing id", func() {
			Expect(repo.Delete(ctx, 99999)).To(Succeed())
		})

		It("deletes the row even when the image store fails", func() {
			rec := mustSave(date, 150, "coffee", "images/gone.jpg", 1000)
			images.deleteFail = true

			Expect(repo.Delete(ctx, rec.ID)).To(Succeed())

			_, err := repo.GetByID(ctx, rec.ID)
			Expect(err).To(MatchError(internal.ErrRecordNotFound))
			Expect(images.deletedPaths()).To(ContainElement("images/gone.jpg"))
		})
	})

	Describe("PurgeOlderThan", func() {
		It("removes old rows and their images, keeping newer ones", func() {
			oldPath, err := images.Save([]byte("a"), "old.jpg")
			Expect(err).NotTo(HaveOccurred())
			newPath, err := images.Save([]byte("b"), "new.jpg")
			Expect(err).NotTo(HaveOccurred())

			mustSave(date.SubDays(30), 100, "old 1", oldPath, 1000)
			mustSave(date.SubDays(20), 100, "old 2", "", 2000)
			kept := mustSave(date, 100, "recent", newPath, 3000)

			count, err := repo.PurgeOlderThan(ctx, date.SubDays(10))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))

			Expect(images.Exists(oldPath)).To(BeFalse())
			Expect(images.Exists(newPath)).To(BeTrue())

			_, err = repo.GetByID(ctx, kept.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("does not touch rows dated exactly at the cutoff", func() {
			rec := mustSave(date, 100, "boundary", "", 1000)

			count, err := repo.PurgeOlderThan(ctx, date)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			_, err = repo.GetByID(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("QueryByDate", func() {
		It("emits the records for the date, most recently created first", func() {
			mustSave(date, 100, "Test 1", "", 1000)
			mustSave(date, 200, "Test 2", "", 2000)

			sub, err := repo.QueryByDate(ctx, date)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Cancel()

			var items []expense.Record
			Eventually(sub.Updates()).Should(Receive(&items))
			Expect(items).To(HaveLen(2))
			Expect(items[0].Amount).To(Equal(int64(200)))
			Expect(items[1].Amount).To(Equal(int64(100)))
		})

		It("emits an empty snapshot for a date without records", func() {
			mustSave(date, 100, "Test 1", "", 1000)

			sub, err := repo.QueryByDate(ctx, datemath.Date{Year: 2025, Month: 11, Day: 15})
			Expect(err).NotTo(HaveOccurred())
			defer sub.Cancel()

			var items []expense.Record
			Eventually(sub.Updates()).Should(Receive(&items))
			Expect(items).To(BeEmpty())
		})

		It("re-emits after a save and after a delete on that date", func() {
			sub, err := repo.QueryByDate(ctx, date)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Cancel()

			var items []expense.Record
			Eventually(sub.Updates()).Should(Receive(&items))
			Expect(items).To(BeEmpty())

			rec := mustSave(date, 100, "Test 1", "", 1000)
			Eventually(sub.Updates()).Should(Receive(&items))
			Expect(items).To(HaveLen(1))

			Expect(repo.Delete(ctx, rec.ID)).To(Succeed())
			Eventually(sub.Updates()).Should(Receive(&items))
			Expect(items).To(BeEmpty())
		})
	})

	Describe("QueryAll", func() {
		It("orders by date descending then creation time descending", func() {
			mustSave(date.SubDays(1), 100, "older day", "", 5000)
			mustSave(date, 200, "first today", "", 1000)
			mustSave(date, 300, "second today", "", 2000)

			sub, err := repo.QueryAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Cancel()

			var items []expense.Record
			Eventually(sub.Updates()).Should(Receive(&items))
			Expect(items).To(HaveLen(3))
			Expect(items[0].Description).To(Equal("second today"))
			Expect(items[1].Description).To(Equal("first today"))
			Expect(items[2].Description).To(Equal("older day"))
		})
	})
})
