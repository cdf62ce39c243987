package backend

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

const (
	bookCoversPrefix    = "book-covers"
	profilePhotosPrefix = "profile-photos"
)

// File is an upload: the original file name (for its extension), an
// optional content type and the bytes.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// storageKey is {prefix}/{id}.{ext}, ext taken from the original name.
// Names without an extension give {prefix}/{id}.
func storageKey(prefix, id, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return prefix + "/" + id
	}
	return prefix + "/" + id + "." + ext
}

// UploadBookCover stores the cover under the book's ISBN, replacing any
// previous one, and returns its public URL.
func (s *Service) UploadBookCover(ctx context.Context, f File, isbn string) (string, error) {
	if isbn == "" {
		return "", invalid("upload book cover", errors.New("isbn is required"))
	}
	return s.upload(ctx, "upload book cover", storageKey(bookCoversPrefix, isbn, f.Name), f)
}

// UploadProfilePhoto stores the photo under the user id, replacing any
// previous one, and returns its public URL.
func (s *Service) UploadProfilePhoto(ctx context.Context, f File, userID string) (string, error) {
	if userID == "" {
		return "", invalid("upload profile photo", errors.New("user id is required"))
	}
	return s.upload(ctx, "upload profile photo", storageKey(profilePhotosPrefix, userID, f.Name), f)
}

func (s *Service) upload(ctx context.Context, op, key string, f File) (string, error) {
	if f.Body == nil {
		return "", invalid(op, errors.New("file is empty"))
	}
	u, err := s.objects.Upload(ctx, key, f.Body, f.ContentType)
	if err != nil {
		return "", backendErr(op, err)
	}
	return u, nil
}
