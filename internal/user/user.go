package user

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// User is the profile row keyed by the auth identity id.
type User struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	ProfilePhotoURL *string   `json:"profile_photo_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProfileUpdate carries the fields a profile edit may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	FullName        *string `json:"full_name,omitempty" validate:"omitempty,min=1"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email"`
	ProfilePhotoURL *string `json:"profile_photo_url,omitempty" validate:"omitempty,url"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Email == nil && u.ProfilePhotoURL == nil
}
