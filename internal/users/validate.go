package users

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notnumeric", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
	})
	return v
}

// Validate checks a struct carrying validate tags (NewUser, UserUpdate).
// Failures come back as validator.ValidationErrors.
func Validate(v any) error {
	return validate.Struct(v)
}

// Messages renders validator failures keyed by json field name.
func Messages(err error) map[string][]string {
	out := map[string][]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		if fe.StructField() == "Password" {
			return "This password is too short. It must contain at least " + fe.Param() + " characters."
		}
		return "Ensure this field has at least " + fe.Param() + " characters."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	case "email":
		return "Enter a valid email address."
	case "notnumeric":
		return "This password is entirely numeric."
	default:
		return "Invalid value."
	}
}
