package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxTitleLen matches the input limit of the interactive editor.
const MaxTitleLen = 200

// ErrInvalidTitle is returned for empty or oversized titles.
var ErrInvalidTitle = errors.New("invalid title")

var validate = validator.New()

// Todo is the domain model for a todo entry. ID is the key the remote
// database assigned on create.
type Todo struct {
	ID    string `json:"id"`
	Title string `json:"title" validate:"required,max=200"`
}

// NormalizeTitle trims surrounding whitespace.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidateTitle checks a (normalized) title. The returned error wraps
// ErrInvalidTitle and carries a short user-facing reason.
func ValidateTitle(title string) error {
	t := Todo{Title: title}
	err := validate.StructPartial(t, "Title")
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return fmt.Errorf("%w: Title cannot be empty", ErrInvalidTitle)
		case "max":
			return fmt.Errorf("%w: Title is too long (max %d characters)", ErrInvalidTitle, MaxTitleLen)
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidTitle, err)
}

// Reason strips the sentinel prefix from a validation error for display.
func Reason(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, ErrInvalidTitle.Error()+": ")
}
