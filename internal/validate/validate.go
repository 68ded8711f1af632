// Package validate exposes a shared go-playground validator with
// readable error messages.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level validator. Custom registrations happen in init only.
//
//nolint:gochecknoglobals // The validator caches struct metadata and is safe for concurrent use.
var v = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalid marks every error returned by Struct.
var ErrInvalid = errors.New("validation failed")

// Struct validates s against its `validate` tags.
// The returned error wraps ErrInvalid and lists every failed field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, "; "))
}
