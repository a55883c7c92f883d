package httpserver

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// brandNameRE allows letters, digits, spaces and the punctuation set
// -_&. only. Letters are Unicode classes, not ASCII, so accented brand
// names stay submittable and flow into the diacritic-folding matcher.
var brandNameRE = regexp.MustCompile(`^[\p{L}\p{N} \-_&.]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("brandname", func(fl validator.FieldLevel) bool {
		return brandNameRE.MatchString(fl.Field().String())
	})
	return v
}
