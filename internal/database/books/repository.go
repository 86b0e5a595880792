// Package books provides database operations for the book catalog.
//
// PDF bytes are only read by GetBookWithPDF; every other lookup omits the
// blob column.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.FindByIdentity("Dune", "Frank Herbert", "Sci-Fi", 0)
package books

import (
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/entities"
)

const pdfColumn = "pdf_data"

// metadataColumns are written on every update; pdfColumns only when a new file is attached.
var (
	metadataColumns = []string{
		"title", "author", "genre",
		"title_lower", "author_lower", "genre_lower",
		"quantity", "status", "updated_at",
	}
	pdfColumns = []string{pdfColumn, "pdf_name", "has_pdf"}
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBook inserts a new book.
func (r *Repository) CreateBook(book *entities.Book) error {
	book.NormalizeIdentity()
	return r.db.Create(book).Error
}

// GetBookByID retrieves a book without its PDF payload.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Omit(pdfColumn).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBookWithPDF retrieves a book including the PDF payload.
func (r *Repository) GetBookWithPDF(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetAllBooks returns the catalog ordered by title.
func (r *Repository) GetAllBooks() ([]entities.Book, error) {
	var list []entities.Book
	err := r.db.Omit(pdfColumn).Order("title_lower ASC, id ASC").Find(&list).Error
	return list, err
}

// FindByIdentity returns the book whose title, author and genre match
// case-insensitively, ignoring the record with excludeID (0 excludes nothing).
func (r *Repository) FindByIdentity(title, author, genre string, excludeID uint) (*entities.Book, error) {
	query := r.db.Omit(pdfColumn).Where(
		"title_lower = ? AND author_lower = ? AND genre_lower = ?",
		strings.ToLower(title), strings.ToLower(author), strings.ToLower(genre),
	)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var book entities.Book
	if err := query.Order("id ASC").First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook writes the book's metadata columns, and its PDF columns when
// withPDF is set. Zero values are written, so a quantity of 0 is persisted.
func (r *Repository) UpdateBook(book *entities.Book, withPDF bool) error {
	book.NormalizeIdentity()

	columns := metadataColumns
	if withPDF {
		columns = append(append([]string{}, metadataColumns...), pdfColumns...)
	}
	return r.db.Model(book).Select(columns).Updates(book).Error
}

// DeleteBook removes a book. Returns false when no row matched.
func (r *Repository) DeleteBook(id uint) (bool, error) {
	result := r.db.Delete(&entities.Book{}, id)
	return result.RowsAffected > 0, result.Error
}

// DecrementQuantity takes one copy off the shelf. It only succeeds while the
// quantity is positive, so concurrent borrowers cannot drive it negative.
func (r *Repository) DecrementQuantity(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND quantity > 0", id).
		UpdateColumn("quantity", gorm.Expr("quantity - 1"))
	return result.RowsAffected > 0, result.Error
}

// IncrementQuantity puts one copy back.
func (r *Repository) IncrementQuantity(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + 1"))
	return result.RowsAffected > 0, result.Error
}

// CountBooks returns the number of catalog records.
func (r *Repository) CountBooks() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Count(&count).Error
	return count, err
}
