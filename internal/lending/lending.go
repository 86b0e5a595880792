// Package lending couples the catalog and the loan ledger. Borrow and return
// each run in a single transaction: the quantity change and the loan write
// either both happen or neither does.
package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/database/books"
	"github.com/mrlokans/bookhive/internal/database/loans"
	"github.com/mrlokans/bookhive/internal/database/users"
	"github.com/mrlokans/bookhive/internal/entities"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBookUnavailable  = errors.New("book not available")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAlreadyBorrowed  = errors.New("this user already borrowed this book")
	ErrNoActiveLoan     = errors.New("no active loan for this user")
	ErrBorrowerNotFound = errors.New("user not found")
)

// Result is the state after a successful borrow or return.
type Result struct {
	Book *entities.Book
	Loan *entities.Loan
}

// HistoryEntry is one loan of a user with the title of the book, if it still exists.
type HistoryEntry struct {
	LoanID     uint       `json:"id"`
	BookID     uint       `json:"book_id"`
	BookTitle  string     `json:"book_title"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// ActiveLoan is an open loan of a book with its borrower.
type ActiveLoan struct {
	LoanID     uint              `json:"id"`
	UserID     uint              `json:"user_id"`
	UserName   string            `json:"user_name"`
	UserRole   entities.UserRole `json:"user_role"`
	BorrowedAt time.Time         `json:"borrowed_at"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Borrow lends one copy of book bookID to user userID.
//
// Checks run in order: the book exists, a copy is on the shelf, the caller is
// known, the borrower exists and has no open loan for the book. The decrement
// is conditional on quantity > 0 and the open-loan index rejects a racing
// duplicate, so concurrent borrowers cannot oversubscribe a book.
func (s *Service) Borrow(ctx context.Context, bookID, userID uint) (*Result, error) {
	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookRepo := books.NewRepository(tx)
		loanRepo := loans.NewRepository(tx)

		book, err := loadBook(bookRepo, bookID)
		if err != nil {
			return err
		}
		if book.Quantity <= 0 {
			return ErrBookUnavailable
		}
		if err := checkBorrower(tx, userID); err != nil {
			return err
		}

		_, err = loanRepo.FindOpenLoan(userID, bookID)
		if err == nil {
			return ErrAlreadyBorrowed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up open loan: %w", err)
		}

		taken, err := bookRepo.DecrementQuantity(bookID)
		if err != nil {
			return fmt.Errorf("failed to update quantity: %w", err)
		}
		if !taken {
			return ErrBookUnavailable
		}

		loan := &entities.Loan{UserID: userID, BookID: bookID, BorrowedAt: s.now()}
		if err := loanRepo.CreateLoan(loan); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyBorrowed
			}
			return fmt.Errorf("failed to create loan: %w", err)
		}

		book, err = loadBook(bookRepo, bookID)
		if err != nil {
			return err
		}
		result = &Result{Book: book, Loan: loan}
		return nil
	})
	return result, err
}

// Return closes the open loan of user userID for book bookID and puts the
// copy back on the shelf.
func (s *Service) Return(ctx context.Context, bookID, userID uint) (*Result, error) {
	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookRepo := books.NewRepository(tx)
		loanRepo := loans.NewRepository(tx)

		if _, err := loadBook(bookRepo, bookID); err != nil {
			return err
		}
		if userID == 0 {
			return ErrNotAuthenticated
		}

		loan, err := loanRepo.FindOpenLoan(userID, bookID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveLoan
		}
		if err != nil {
			return fmt.Errorf("failed to look up open loan: %w", err)
		}

		returnedAt := s.now()
		closed, err := loanRepo.CloseLoan(loan.ID, returnedAt)
		if err != nil {
			return fmt.Errorf("failed to close loan: %w", err)
		}
		if !closed {
			return ErrNoActiveLoan
		}
		loan.ReturnedAt = &returnedAt

		if _, err := bookRepo.IncrementQuantity(bookID); err != nil {
			return fmt.Errorf("failed to update quantity: %w", err)
		}

		book, err := loadBook(bookRepo, bookID)
		if err != nil {
			return err
		}
		result = &Result{Book: book, Loan: loan}
		return nil
	})
	return result, err
}

// History lists every loan of userID, newest first.
func (s *Service) History(ctx context.Context, userID uint) ([]HistoryEntry, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}

	list, err := loans.NewRepository(s.db.WithContext(ctx)).GetLoansForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(list))
	for _, loan := range list {
		entry := HistoryEntry{
			LoanID:     loan.ID,
			BookID:     loan.BookID,
			BorrowedAt: loan.BorrowedAt,
			ReturnedAt: loan.ReturnedAt,
		}
		if loan.Book != nil {
			entry.BookTitle = loan.Book.Title
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ActiveLoans lists the open loans of bookID with their borrowers.
func (s *Service) ActiveLoans(ctx context.Context, bookID uint) ([]ActiveLoan, error) {
	list, err := loans.NewRepository(s.db.WithContext(ctx)).GetOpenLoansForBook(bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active loans: %w", err)
	}

	active := make([]ActiveLoan, 0, len(list))
	for _, loan := range list {
		entry := ActiveLoan{
			LoanID:     loan.ID,
			UserID:     loan.UserID,
			BorrowedAt: loan.BorrowedAt,
		}
		if loan.User != nil {
			entry.UserName = loan.User.Name
			entry.UserRole = loan.User.Role
		}
		active = append(active, entry)
	}
	return active, nil
}

// BorrowedCount counts open loans of userID, or of everyone when userID is 0.
func (s *Service) BorrowedCount(ctx context.Context, userID uint) (int64, error) {
	count, err := loans.NewRepository(s.db.WithContext(ctx)).CountOpenLoans(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count loans: %w", err)
	}
	return count, nil
}

func loadBook(repo *books.Repository, id uint) (*entities.Book, error) {
	book, err := repo.GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return book, nil
}

func checkBorrower(tx *gorm.DB, userID uint) error {
	if userID == 0 {
		return ErrNotAuthenticated
	}
	_, err := users.NewRepository(tx).GetUserByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBorrowerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load borrower: %w", err)
	}
	return nil
}
