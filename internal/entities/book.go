package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type BookStatus string

const (
	BookStatusOnline  BookStatus = "online"  // a readable PDF is attached
	BookStatusOffline BookStatus = "offline" // physical copies only
)

// IsValid reports whether s is one of the known statuses.
func (s BookStatus) IsValid() bool {
	return s == BookStatusOnline || s == BookStatusOffline
}

type Book struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	Title    string     `gorm:"size:512;not null" json:"title"`
	Author   string     `gorm:"size:256;not null" json:"author"`
	Genre    string     `gorm:"size:128;not null" json:"genre"`
	Quantity int        `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	Status   BookStatus `gorm:"size:10;not null;default:offline" json:"status"`

	// Lower-cased copies of the identity fields, indexed for duplicate lookup.
	TitleLower  string `gorm:"size:512;index:idx_books_identity" json:"-"`
	AuthorLower string `gorm:"size:256;index:idx_books_identity" json:"-"`
	GenreLower  string `gorm:"size:128;index:idx_books_identity" json:"-"`

	PDFData []byte `gorm:"column:pdf_data" json:"-"`
	PDFName string `gorm:"column:pdf_name;size:255" json:"pdf_name,omitempty"`
	HasPDF  bool   `gorm:"column:has_pdf;not null;default:false" json:"has_pdf"`

	Available bool `gorm:"-" json:"available"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeIdentity refreshes the lower-cased identity columns from the display fields.
func (b *Book) NormalizeIdentity() {
	b.TitleLower = strings.ToLower(b.Title)
	b.AuthorLower = strings.ToLower(b.Author)
	b.GenreLower = strings.ToLower(b.Genre)
}

// AttachPDF stores the document on the book.
func (b *Book) AttachPDF(name string, data []byte) {
	b.PDFName = name
	b.PDFData = data
	b.HasPDF = len(data) > 0
}

func (b *Book) AfterFind(tx *gorm.DB) error {
	b.Available = b.Quantity > 0
	return nil
}

func (b *Book) AfterSave(tx *gorm.DB) error {
	b.Available = b.Quantity > 0
	return nil
}
