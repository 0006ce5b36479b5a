package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/inkwell/blog/internal/apperr"
)

var (
	phonePattern      = regexp.MustCompile(`^\+\d{8,15}$`)
	phoneNoise        = regexp.MustCompile(`[^\+\d]`)
	alphaSpacePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	kebabPattern      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// messages overrides the generic wording for a field.tag pair
var messages = map[string]string{
	"phone.required":                "Phone number is required.",
	"phone.phone":                   "Please enter a valid phone number starting with + (e.g., +256779901499).",
	"password_confirmation.eqfield": "The password field confirmation does not match.",
	"content.min":                   "Post content must be at least 50 characters",
	"category_id.required":          "The category field is required.",
	"name.alphaspace":               "Category name can only contain letters and spaces",
	"slug.kebab":                    "Slug must contain only lowercase letters, numbers, and hyphens",
	"status.oneof":                  "The selected status is invalid.",
}

// Validator checks input structs and reports failures as apperr validation errors
type Validator struct {
	v *validator.Validate
	// overrides scoped to a struct type, keyed like messages
	scoped map[reflect.Type]map[string]string
}

// NewValidator builds a validator with the custom rules registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "phone", phonePattern)
	mustRegister(v, "alphaspace", alphaSpacePattern)
	mustRegister(v, "kebab", kebabPattern)

	return &Validator{v: v, scoped: map[reflect.Type]map[string]string{
		reflect.TypeOf(CategoryInput{}): {
			"name.required": "Category name is required",
			"slug.required": "Category slug is required",
		},
		reflect.TypeOf(CommentInput{}): {
			"content.required": "Comment content is required.",
			"content.min":      "Comment must be at least 3 characters long.",
			"content.max":      "Comment cannot exceed 1000 characters.",
		},
	}}
}

func mustRegister(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Struct validates s. The returned error is nil or an *apperr.Error of kind Validation.
func (v *Validator) Struct(s interface{}) error {
	return v.collect(s).err()
}

func (v *Validator) collect(s interface{}) fieldErrors {
	fields := fieldErrors{}
	err := v.v.Struct(s)
	if err == nil {
		return fields
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields.add("input", err.Error())
		return fields
	}

	scoped := v.scoped[reflect.Indirect(reflect.ValueOf(s)).Type()]
	for _, fe := range verrs {
		fields.add(fe.Field(), v.message(scoped, fe))
	}
	return fields
}

func (v *Validator) message(scoped map[string]string, fe validator.FieldError) string {
	key := fe.Field() + "." + fe.Tag()
	if msg, ok := scoped[key]; ok {
		return msg
	}
	if msg, ok := messages[key]; ok {
		return msg
	}

	attr := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", attr)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", attr)
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", attr, fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", attr, fe.Param())
	case "len":
		return fmt.Sprintf("The %s field must be %s characters.", attr, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", attr)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", attr)
	default:
		return fmt.Sprintf("The %s field format is invalid.", attr)
	}
}

// NormalizePhone strips everything but digits and a leading plus
func NormalizePhone(raw string) string {
	return phoneNoise.ReplaceAllString(raw, "")
}

// fieldErrors accumulates field messages in the order they are found
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

func (f fieldErrors) has(field string) bool {
	return len(f[field]) > 0
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation(f)
}
