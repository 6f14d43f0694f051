package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aicare/casemgr/internal/normalize"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":  "field is required",
	"min":       "value is too small",
	"max":       "value is too large",
	"oneof":     "value is not one of the allowed options",
	"twphone":   "expected a 10 digit mobile number starting with 09",
	"datefield": "expected a date such as 2026-03-15",
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator.
// It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("twphone", func(fl validator.FieldLevel) bool {
			return ValidPhone(fl.Field().String())
		})
		_ = v.RegisterValidation("datefield", func(fl validator.FieldLevel) bool {
			_, ok := normalize.Date(fl.Field().String())
			return ok
		})
	})
}

// ValidPhone accepts anything that normalizes to 09 followed by 8 digits.
func ValidPhone(raw string) bool {
	p := normalize.Phone(raw)
	if len(p) != 10 || !strings.HasPrefix(p, "09") {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BindingErrors renders a bind error as per-field messages, or nil if err
// is not a validation failure.
func BindingErrors(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := messages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
