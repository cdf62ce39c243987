package library

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("library not found")

type Library struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone *string   `json:"contact_phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewLibrary is the library-creation form.
type NewLibrary struct {
	Name         string `json:"name" validate:"required"`
	Address      string `json:"address" validate:"required"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// Membership links a user to a library. IsAdmin grants the admin-only views.
type Membership struct {
	LibraryID   string    `json:"library_id"`
	UserID      string    `json:"user_id"`
	IsAdmin     bool      `json:"is_admin"`
	MemberSince time.Time `json:"member_since"`
}

const (
	TypeAdministrator = "Administrator"
	TypeReader        = "Reader"
)

// UserLibrary is the profile view of one membership.
type UserLibrary struct {
	UserID              string    `json:"user_id"`
	LibraryID           string    `json:"library_id"`
	LibraryName         string    `json:"library_name"`
	MembershipType      string    `json:"membership_type"`
	MembershipStartDate time.Time `json:"membership_start_date"`
}

// MembershipType names the capability a membership grants.
func MembershipType(m Membership) string {
	if m.IsAdmin {
		return TypeAdministrator
	}
	return TypeReader
}

// Summarize shapes memberships into profile rows. names maps library id to
// library name; memberships of libraries missing from names are skipped.
func Summarize(userID string, memberships []Membership, names map[string]string) []UserLibrary {
	out := make([]UserLibrary, 0, len(memberships))
	for _, m := range memberships {
		name, ok := names[m.LibraryID]
		if !ok {
			continue
		}
		out = append(out, UserLibrary{
			UserID:              userID,
			LibraryID:           m.LibraryID,
			LibraryName:         name,
			MembershipType:      MembershipType(m),
			MembershipStartDate: m.MemberSince,
		})
	}
	return out
}
