// Package catalog implements catalog writes with the duplicate merge rule:
// books whose title, author and genre match case-insensitively are one
// logical book, and a write that would create a second copy folds its
// quantity into the existing record instead.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/database/books"
	"github.com/mrlokans/bookhive/internal/entities"
)

var (
	ErrInvalidBook      = errors.New("title, author and genre are required")
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrQuantityTooLarge = errors.New("quantity is too large")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrBookNotFound     = errors.New("book not found")
	ErrNoPDF            = errors.New("no PDF found")
	ErrNotPDF           = errors.New("uploaded file is not a PDF")
)

// MaxQuantity is the largest number of copies a single book record may hold.
const MaxQuantity = math.MaxInt32

var pdfMagic = []byte("%PDF-")

// PDFUpload is an uploaded document.
type PDFUpload struct {
	Name string
	Data []byte
}

// BookInput carries the fields of a create or update request. An empty
// Status means the client did not supply one.
type BookInput struct {
	Title    string
	Author   string
	Genre    string
	Quantity int
	Status   entities.BookStatus
	PDF      *PDFUpload
}

// WriteResult describes the outcome of a catalog write.
type WriteResult struct {
	Book    *entities.Book
	Created bool // a new record was inserted
	Merged  bool // the write was folded into an existing duplicate
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ParseQuantity converts a submitted quantity. Anything non-numeric counts as 0
// and fractional values are truncated.
func ParseQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return QuantityFromFloat(f)
}

// QuantityFromFloat truncates f to an int. NaN and infinities count as 0;
// finite values beyond MaxQuantity saturate so validation still sees them.
func QuantityFromFloat(f float64) int {
	switch {
	case math.IsNaN(f), math.IsInf(f, 0):
		return 0
	case f > MaxQuantity:
		return math.MaxInt
	case f < -MaxQuantity:
		return math.MinInt
	}
	return int(f)
}

// addQuantity returns have+add, or ErrQuantityTooLarge past MaxQuantity.
func addQuantity(have, add int) (int, error) {
	if have > MaxQuantity-add {
		return 0, ErrQuantityTooLarge
	}
	return have + add, nil
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func (in *BookInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	if in.Title == "" || in.Author == "" || in.Genre == "" {
		return ErrInvalidBook
	}
	if in.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if in.Quantity > MaxQuantity {
		return ErrQuantityTooLarge
	}
	if in.Status != "" && !in.Status.IsValid() {
		return fmt.Errorf("%w %q", ErrInvalidStatus, in.Status)
	}
	if in.PDF != nil && !IsPDF(in.PDF.Data) {
		return ErrNotPDF
	}
	return nil
}

// Create adds a book, or increases the quantity of an existing duplicate.
//
// Status is the explicit value when supplied, otherwise online when a PDF is
// attached and offline when not. On a merge the duplicate's status and PDF
// are only overwritten when the request supplies them.
func (s *Service) Create(ctx context.Context, in BookInput) (*WriteResult, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var result *WriteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)

		existing, err := repo.FindByIdentity(in.Title, in.Author, in.Genre, 0)
		switch {
		case err == nil:
			if existing.Quantity, err = addQuantity(existing.Quantity, in.Quantity); err != nil {
				return err
			}
			if in.Status != "" {
				existing.Status = in.Status
			}
			if in.PDF != nil {
				existing.AttachPDF(in.PDF.Name, in.PDF.Data)
			}
			if err := repo.UpdateBook(existing, in.PDF != nil); err != nil {
				return fmt.Errorf("failed to merge book: %w", err)
			}
			result = &WriteResult{Book: existing, Merged: true}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up duplicate: %w", err)
		}

		book := &entities.Book{
			Title:    in.Title,
			Author:   in.Author,
			Genre:    in.Genre,
			Quantity: in.Quantity,
			Status:   createStatus(in),
		}
		if in.PDF != nil {
			book.AttachPDF(in.PDF.Name, in.PDF.Data)
		}
		if err := repo.CreateBook(book); err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}
		result = &WriteResult{Book: book, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Book.PDFData = nil
	return result, nil
}

// Update replaces the fields of book id. When the new identity collides with
// another record, that record absorbs the quantity, status and PDF and the
// edited record is deleted.
//
// Status is the explicit value when supplied, otherwise offline, and is
// forced to online when a PDF is uploaded.
func (s *Service) Update(ctx context.Context, id uint, in BookInput) (*WriteResult, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	status := updateStatus(in)

	var result *WriteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)

		book, err := repo.GetBookByID(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load book: %w", err)
		}

		duplicate, err := repo.FindByIdentity(in.Title, in.Author, in.Genre, id)
		switch {
		case err == nil:
			if duplicate.Quantity, err = addQuantity(duplicate.Quantity, in.Quantity); err != nil {
				return err
			}
			duplicate.Status = status
			if in.PDF != nil {
				duplicate.AttachPDF(in.PDF.Name, in.PDF.Data)
			}
			if err := repo.UpdateBook(duplicate, in.PDF != nil); err != nil {
				return fmt.Errorf("failed to merge book: %w", err)
			}
			if _, err := repo.DeleteBook(book.ID); err != nil {
				return fmt.Errorf("failed to delete merged book: %w", err)
			}
			result = &WriteResult{Book: duplicate, Merged: true}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up duplicate: %w", err)
		}

		book.Title = in.Title
		book.Author = in.Author
		book.Genre = in.Genre
		book.Quantity = in.Quantity
		book.Status = status
		if in.PDF != nil {
			book.AttachPDF(in.PDF.Name, in.PDF.Data)
		}
		if err := repo.UpdateBook(book, in.PDF != nil); err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		result = &WriteResult{Book: book}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Book.PDFData = nil
	return result, nil
}

// Delete removes book id.
func (s *Service) Delete(ctx context.Context, id uint) (*entities.Book, error) {
	var book *entities.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)

		var err error
		book, err = repo.GetBookByID(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load book: %w", err)
		}

		deleted, err := repo.DeleteBook(id)
		if err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		if !deleted {
			return ErrBookNotFound
		}
		return nil
	})
	return book, err
}

// List returns every book without PDF payloads.
func (s *Service) List(ctx context.Context) ([]entities.Book, error) {
	return books.NewRepository(s.db.WithContext(ctx)).GetAllBooks()
}

// Get returns one book without its PDF payload.
func (s *Service) Get(ctx context.Context, id uint) (*entities.Book, error) {
	book, err := books.NewRepository(s.db.WithContext(ctx)).GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	return book, err
}

// PDF returns the stored document of book id.
func (s *Service) PDF(ctx context.Context, id uint) (*PDFUpload, error) {
	book, err := books.NewRepository(s.db.WithContext(ctx)).GetBookWithPDF(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPDF
	}
	if err != nil {
		return nil, err
	}
	if len(book.PDFData) == 0 {
		return nil, ErrNoPDF
	}

	name := book.PDFName
	if name == "" {
		name = fmt.Sprintf("book-%d.pdf", book.ID)
	}
	return &PDFUpload{Name: name, Data: book.PDFData}, nil
}

func createStatus(in BookInput) entities.BookStatus {
	switch {
	case in.Status != "":
		return in.Status
	case in.PDF != nil:
		return entities.BookStatusOnline
	default:
		return entities.BookStatusOffline
	}
}

func updateStatus(in BookInput) entities.BookStatus {
	if in.PDF != nil {
		return entities.BookStatusOnline
	}
	if in.Status != "" {
		return in.Status
	}
	return entities.BookStatusOffline
}
