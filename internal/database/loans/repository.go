// Package loans provides database operations for the loan ledger.
//
// # Usage
//
//	repo := loans.NewRepository(db)
//	loan, err := repo.FindOpenLoan(userID, bookID)
package loans

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateLoan inserts a loan. A second open loan for the same (user, book)
// violates idx_loans_open and surfaces as gorm.ErrDuplicatedKey.
func (r *Repository) CreateLoan(loan *entities.Loan) error {
	return r.db.Create(loan).Error
}

// FindOpenLoan returns the unreturned loan for the pair.
func (r *Repository) FindOpenLoan(userID, bookID uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Where("user_id = ? AND book_id = ? AND returned_at IS NULL", userID, bookID).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// CloseLoan stamps the return time on an open loan. Returns false if the loan
// was already closed.
func (r *Repository) CloseLoan(id uint, returnedAt time.Time) (bool, error) {
	result := r.db.Model(&entities.Loan{}).
		Where("id = ? AND returned_at IS NULL", id).
		Update("returned_at", returnedAt)
	return result.RowsAffected > 0, result.Error
}

// GetLoansForUser returns all loans of a user, newest first, with the book
// attached when it still exists.
func (r *Repository) GetLoansForUser(userID uint) ([]entities.Loan, error) {
	var list []entities.Loan
	err := r.db.Preload("Book", func(db *gorm.DB) *gorm.DB {
		return db.Omit("pdf_data")
	}).Where("user_id = ?", userID).
		Order("borrowed_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

// GetOpenLoansForBook returns the open loans of a book with their borrowers.
func (r *Repository) GetOpenLoansForBook(bookID uint) ([]entities.Loan, error) {
	var list []entities.Loan
	err := r.db.Preload("User").
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Order("borrowed_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// CountOpenLoans counts open loans, for one user when userID > 0 or globally.
func (r *Repository) CountOpenLoans(userID uint) (int64, error) {
	var count int64
	query := r.db.Model(&entities.Loan{}).Where("returned_at IS NULL")
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	err := query.Count(&count).Error
	return count, err
}
