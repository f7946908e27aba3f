// Package validator validates request payloads with go-playground/validator
// and reports failures under the payload's own field names.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidate()

// newValidate reports fields under their JSON names so that error payloads
// match the request body the client sent.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return &ValidationError{Errors: validationErrors}
		}
		return err
	}
	return nil
}

// ValidationError wraps validator.ValidationErrors with a user-friendly message.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", err.Field(), msgForTag(err)))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns a map of field names to error messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, err := range e.Errors {
		fields[err.Field()] = msgForTag(err)
	}
	return fields
}

func msgForTag(fe validator.FieldError) string {
	if f, ok := tagMessages[fe.Tag()]; ok {
		return f(fe)
	}
	return fmt.Sprintf("failed on '%s' validation", fe.Tag())
}

// tagMessages renders each tag's message. Length tags read as characters for
// strings and as plain bounds for numbers.
var tagMessages = map[string]func(validator.FieldError) string{
	"required": func(validator.FieldError) string { return "is required" },
	"email":    func(validator.FieldError) string { return "must be a valid email address" },
	"min":      func(fe validator.FieldError) string { return bound("at least", fe) },
	"max":      func(fe validator.FieldError) string { return bound("at most", fe) },
	"gte": func(fe validator.FieldError) string {
		return "must be greater than or equal to " + fe.Param()
	},
	"lte": func(fe validator.FieldError) string {
		return "must be less than or equal to " + fe.Param()
	},
	"eqfield":  func(fe validator.FieldError) string { return "must match " + fe.Param() },
	"datetime": func(fe validator.FieldError) string { return "must be a date in " + fe.Param() + " format" },
	"oneof": func(fe validator.FieldError) string {
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	},
}

func bound(rel string, fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return fmt.Sprintf("must be %s %s characters", rel, fe.Param())
	}
	return fmt.Sprintf("must be %s %s", rel, fe.Param())
}

// DecodeAndValidate reads a single JSON object from the request body into dst
// and validates it. Empty bodies and trailing data are rejected.
func DecodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("decode request body: body is empty")
		case errors.As(err, &tooLarge):
			return fmt.Errorf("decode request body: larger than %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: unexpected data after JSON object")
	}
	return Validate(dst)
}
