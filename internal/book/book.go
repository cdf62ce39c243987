package book

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a book or holding does not exist.
var ErrNotFound = errors.New("book not found")

// Book is a catalog entry. Author is the display form of the author list.
type Book struct {
	ID            string    `json:"id"`
	ISBN          string    `json:"isbn"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Publisher     *string   `json:"publisher,omitempty"`
	PublishedYear *int      `json:"published_year,omitempty"`
	CoverURL      *string   `json:"cover_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LibraryBook is a library's holding of a book.
type LibraryBook struct {
	ID        string `json:"id"`
	LibraryID string `json:"library_id"`
	BookID    string `json:"book_id"`
	Copies    int    `json:"copies"`
	Available int    `json:"available"`
}

// NewBook is the add-book payload.
type NewBook struct {
	ISBN          string   `json:"isbn" validate:"required,isbn"`
	Title         string   `json:"title" validate:"required"`
	Authors       []string `json:"authors" validate:"required,min=1,dive,required"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear *int     `json:"published_year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	CoverURL      string   `json:"cover_url,omitempty" validate:"omitempty,url"`
	LibraryID     string   `json:"library_id" validate:"required,uuid"`
	Copies        int      `json:"copies" validate:"gte=1"`
}

// AddResult identifies the rows touched by an add-book call.
type AddResult struct {
	BookID        string `json:"book_id" validate:"required"`
	LibraryBookID string `json:"library_book_id" validate:"required"`
}

// AuthorLine joins author names the way they are displayed and searched.
func AuthorLine(names []string) string {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			trimmed = append(trimmed, n)
		}
	}
	return strings.Join(trimmed, ", ")
}
