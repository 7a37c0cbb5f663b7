// Package validation wraps go-playground/validator with the custom rules
// used by request payloads and converts failures into domain errors.
package validation

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"yamdb/internal/domain"
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

	instance *validator.Validate
	once     sync.Once
)

// ReservedUsername cannot be registered because /users/me addresses the
// caller's own profile.
const ReservedUsername = "me"

// Get returns the shared validator.
func Get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		mustRegister(v, "username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "notme", func(fl validator.FieldLevel) bool {
			return !strings.EqualFold(fl.Field().String(), ReservedUsername)
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("register validation " + tag + ": " + err.Error())
	}
}

// Struct validates s and returns a *domain.Error of kind validation_error
// describing the first failing field.
func Struct(ctx context.Context, s any) error {
	err := Get().StructCtx(ctx, s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Validation("", "%s", err.Error())
	}
	fe := verrs[0]
	return domain.Validation(fe.Field(), "%s", message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "ensure this field has no more than " + fe.Param() + " characters"
	case "min":
		return "ensure this field has at least " + fe.Param() + " characters"
	case "email":
		return "enter a valid email address"
	case "username":
		return "letters, digits and @/./+/-/_ only"
	case "slug":
		return "letters, digits, hyphens and underscores only"
	case "notme":
		return "the username \"me\" is reserved"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed on the " + fe.Tag() + " rule"
	}
}
