// Package validation checks request and form structs against their
// `validate` tags and renders failures as field-level messages.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	isbn10 = regexp.MustCompile(`^\d{9}[\dX]$`)
	isbn13 = regexp.MustCompile(`^\d{13}$`)
)

func init() {
	validate = validator.New()

	// Replaces the built-in checksum validator: catalogs carry ISBNs as
	// printed, which are not always checksum-correct.
	validate.RegisterValidation("isbn", validateISBN)
}

func validateISBN(fl validator.FieldLevel) bool {
	isbn := NormalizeISBN(fl.Field().String())
	switch len(isbn) {
	case 10:
		return isbn10.MatchString(isbn)
	case 13:
		return isbn13.MatchString(isbn)
	}
	return false
}

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing x.
func NormalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	return strings.ToUpper(isbn)
}

// IsUUID reports whether id is a textual UUID.
func IsUUID(id string) bool {
	return validate.Var(id, "required,uuid") == nil
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is every field failure of one struct.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Struct validates s and returns Errors, or nil when s is valid.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		param := fe.Param()

		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, param)
		case "isbn":
			message = fmt.Sprintf("%s must be a valid ISBN (10 or 13 digits)", field)
		case "uuid":
			message = fmt.Sprintf("%s must be a valid id", field)
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", field)
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", field, param)
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", field, param)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}

		out = append(out, FieldError{
			Field:   strings.ToLower(field[:1]) + field[1:],
			Message: message,
		})
	}
	return out
}
