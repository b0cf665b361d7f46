package domain

import "time"

// BookCondition describes the physical state of a listed book.
type BookCondition string

const (
	ConditionLikeNew BookCondition = "like-new"
	ConditionGood    BookCondition = "good"
	ConditionFair    BookCondition = "fair"
	ConditionPoor    BookCondition = "poor"
)

// IsValid reports whether c is a known condition.
func (c BookCondition) IsValid() bool {
	switch c {
	case ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// BookType separates adult and children's titles.
type BookType string

const (
	BookTypeAdult    BookType = "adult"
	BookTypeChildren BookType = "children"
)

// IsValid reports whether t is a known type.
func (t BookType) IsValid() bool {
	return t == BookTypeAdult || t == BookTypeChildren
}

// BookStatus tracks where a book is in the swap lifecycle.
//
// A book is pending exactly while one swap request for it is pending or
// accepted, and swapped once that request completed. Only the swap state
// machine changes it.
type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookPending   BookStatus = "pending"
	BookSwapped   BookStatus = "swapped"
)

// Book is a listing owned by one user.
type Book struct {
	Timestamps
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	ISBN        string        `json:"isbn,omitempty"`
	Image       string        `json:"image,omitempty"`
	Description string        `json:"description,omitempty"`
	Condition   BookCondition `json:"condition"`
	Type        BookType      `json:"type"`
	Status      BookStatus    `json:"status"`
	OwnerID     string        `json:"owner_id"`
	// OwnerName and Postcode are copied from the owner at creation and are not
	// re-derived when the owner's profile changes.
	OwnerName string     `json:"owner_name"`
	Postcode  string     `json:"postcode"`
	DeletedAt *time.Time `json:"-"`
}

// IsDeleted reports whether the book has been soft-deleted.
func (b *Book) IsDeleted() bool {
	return b.DeletedAt != nil
}

// ApplyDefaults fills in the default condition, type and status.
func (b *Book) ApplyDefaults() {
	if b.Condition == "" {
		b.Condition = ConditionGood
	}
	if b.Type == "" {
		b.Type = BookTypeAdult
	}
	if b.Status == "" {
		b.Status = BookAvailable
	}
}
