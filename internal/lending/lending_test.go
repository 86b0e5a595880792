package lending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/database/books"
	"github.com/mrlokans/bookhive/internal/database/dbtest"
	"github.com/mrlokans/bookhive/internal/entities"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	student *entities.User
	admin   *entities.User
}

func setup(t *testing.T) *fixture {
	db := dbtest.New(t)
	student := &entities.User{Name: "Sam Student", Email: "sam@example.com", PasswordHash: "x", Role: entities.UserRoleStudent}
	require.NoError(t, db.Create(student).Error)
	admin := &entities.User{Name: "Ada Admin", Email: "ada@example.com", PasswordHash: "x", Role: entities.UserRoleAdmin}
	require.NoError(t, db.Create(admin).Error)

	return &fixture{db: db, svc: NewService(db), student: student, admin: admin}
}

func (f *fixture) book(t *testing.T, title string, qty int) *entities.Book {
	t.Helper()
	book := &entities.Book{Title: title, Author: "Author", Genre: "Genre", Quantity: qty, Status: entities.BookStatusOffline}
	require.NoError(t, books.NewRepository(f.db).CreateBook(book))
	return book
}

func (f *fixture) quantity(t *testing.T, id uint) int {
	t.Helper()
	book, err := books.NewRepository(f.db).GetBookByID(id)
	require.NoError(t, err)
	return book.Quantity
}

func TestBorrowThenReturn_RestoresQuantity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Dune", 2)

	borrowed, err := f.svc.Borrow(ctx, book.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, borrowed.Book.Quantity)
	assert.True(t, borrowed.Loan.IsOpen())

	returned, err := f.svc.Return(ctx, book.ID, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, returned.Book.Quantity)
	require.NotNil(t, returned.Loan.ReturnedAt)
	assert.Equal(t, borrowed.Loan.ID, returned.Loan.ID)
	assert.Equal(t, 2, f.quantity(t, book.ID))
}

func TestBorrow_Unavailable(t *testing.T) {
	f := setup(t)
	book := f.book(t, "Empty", 0)

	_, err := f.svc.Borrow(context.Background(), book.ID, f.student.ID)
	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.Equal(t, 0, f.quantity(t, book.ID))

	count, err := f.svc.BorrowedCount(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBorrow_LastCopyGoesToFirstBorrower(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Rare", 1)

	_, err := f.svc.Borrow(ctx, book.ID, f.student.ID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, book.ID, f.admin.ID)
	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.Equal(t, 0, f.quantity(t, book.ID))
}

func TestBorrow_AlreadyBorrowed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Dune", 5)

	_, err := f.svc.Borrow(ctx, book.ID, f.student.ID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, book.ID, f.student.ID)
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	assert.Equal(t, 4, f.quantity(t, book.ID))
}

// borrowConcurrently releases every call at once and collects the errors.
func borrowConcurrently(svc *Service, bookID uint, userIDs []uint) []error {
	errs := make([]error, len(userIDs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Borrow(context.Background(), bookID, userID)
		}(i, userID)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestBorrow_ConcurrentBorrowersNeverOversubscribe(t *testing.T) {
	f := setup(t)
	book := f.book(t, "Rare", 3)

	userIDs := make([]uint, 10)
	for i := range userIDs {
		user := &entities.User{Name: fmt.Sprintf("Reader %d", i), Email: fmt.Sprintf("reader%d@example.com", i), PasswordHash: "x", Role: entities.UserRoleStudent}
		require.NoError(t, f.db.Create(user).Error)
		userIDs[i] = user.ID
	}

	var ok, unavailable int
	for _, err := range borrowConcurrently(f.svc, book.ID, userIDs) {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrBookUnavailable):
			unavailable++
		default:
			t.Errorf("unexpected borrow error: %v", err)
		}
	}

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, unavailable)
	assert.Equal(t, 0, f.quantity(t, book.ID))

	active, err := f.svc.ActiveLoans(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestBorrow_ConcurrentSameUserGetsOneLoan(t *testing.T) {
	f := setup(t)
	book := f.book(t, "Dune", 5)

	userIDs := make([]uint, 8)
	for i := range userIDs {
		userIDs[i] = f.student.ID
	}

	var ok, already int
	for _, err := range borrowConcurrently(f.svc, book.ID, userIDs) {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyBorrowed):
			already++
		default:
			t.Errorf("unexpected borrow error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, already)
	assert.Equal(t, 4, f.quantity(t, book.ID))

	count, err := f.svc.BorrowedCount(context.Background(), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBorrow_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Dune", 1)

	tests := []struct {
		name   string
		bookID uint
		userID uint
		want   error
	}{
		{"missing book", 999, f.student.ID, ErrBookNotFound},
		{"anonymous", book.ID, 0, ErrNotAuthenticated},
		{"unknown borrower", book.ID, 999, ErrBorrowerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Borrow(ctx, tt.bookID, tt.userID)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 1, f.quantity(t, book.ID))
}

func TestReturn_WithoutOpenLoan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Dune", 3)

	_, err := f.svc.Return(ctx, book.ID, f.student.ID)
	assert.ErrorIs(t, err, ErrNoActiveLoan)
	assert.Equal(t, 3, f.quantity(t, book.ID))

	_, err = f.svc.Return(ctx, book.ID, 0)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Return(ctx, 999, f.student.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestReturn_Twice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Dune", 1)

	_, err := f.svc.Borrow(ctx, book.ID, f.student.ID)
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, book.ID, f.student.ID)
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, book.ID, f.student.ID)
	assert.ErrorIs(t, err, ErrNoActiveLoan)
	assert.Equal(t, 1, f.quantity(t, book.ID))
}

func TestHistory_NewestFirstAndSurvivesDeletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.book(t, "First", 1)
	second := f.book(t, "Second", 1)

	clock := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	_, err := f.svc.Borrow(ctx, first.ID, f.student.ID)
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	_, err = f.svc.Return(ctx, first.ID, f.student.ID)
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	_, err = f.svc.Borrow(ctx, second.ID, f.student.ID)
	require.NoError(t, err)

	_, err = books.NewRepository(f.db).DeleteBook(first.ID)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Second", history[0].BookTitle)
	assert.Nil(t, history[0].ReturnedAt)
	assert.Empty(t, history[1].BookTitle)
	require.NotNil(t, history[1].ReturnedAt)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), history[1].ReturnedAt.UTC())

	_, err = f.svc.History(ctx, 0)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestActiveLoansAndBorrowedCount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, "Dune", 3)
	other := f.book(t, "Emma", 3)

	_, err := f.svc.Borrow(ctx, book.ID, f.student.ID)
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, book.ID, f.admin.ID)
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, other.ID, f.student.ID)
	require.NoError(t, err)

	active, err := f.svc.ActiveLoans(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	names := []string{active[0].UserName, active[1].UserName}
	assert.ElementsMatch(t, []string{"Sam Student", "Ada Admin"}, names)

	total, err := f.svc.BorrowedCount(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	mine, err := f.svc.BorrowedCount(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine)
}
