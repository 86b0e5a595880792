package entities

import "time"

// Loan links a user to a borrowed book. A loan with a nil ReturnedAt is open;
// at most one open loan may exist per (user, book).
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index;uniqueIndex:idx_loans_open,where:returned_at IS NULL" json:"user_id"`
	BookID     uint       `gorm:"not null;index;uniqueIndex:idx_loans_open,where:returned_at IS NULL" json:"book_id"`
	BorrowedAt time.Time  `gorm:"not null;index" json:"borrowed_at"`
	ReturnedAt *time.Time `gorm:"index" json:"returned_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}
