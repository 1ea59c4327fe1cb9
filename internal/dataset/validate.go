package dataset

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/model"
)

// ErrInvalid is returned when a dataset fails field validation.
var ErrInvalid = errors.New("dataset: validation failed")

// FieldError describes one rejected field, addressed by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every rejected field of a dataset.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validator checks datasets against the struct tags on the model types.
// It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator that compares decimals exactly and
// reports fields by their JSON names. Decimal bounds use the dgte and dlte
// tags.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Decimals are compared exactly. Converting to float64 would let
	// values such as 100.0000000000000001 pass lte=100.
	_ = v.RegisterValidation("dgte", decimalCmp(func(c int) bool { return c >= 0 }))
	_ = v.RegisterValidation("dlte", decimalCmp(func(c int) bool { return c <= 0 }))

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{v: v}
}

// Validate returns a *ValidationError when ds violates any field rule.
// Cross-reference checks (unknown sellers or SKUs) are left to the
// analysis.
func (v *Validator) Validate(ds *model.Dataset) error {
	if ds == nil {
		return &ValidationError{Fields: []FieldError{{Field: "dataset", Message: "is required"}}}
	}
	err := v.v.Struct(ds)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate dataset: %w", err)
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   strings.TrimPrefix(fe.Namespace(), "Dataset."),
			Message: message(fe),
		}
	}
	return &ValidationError{Fields: fields}
}

// decimalCmp builds a validation that compares a decimal.Decimal field
// against the tag parameter and passes when ok(field.Cmp(param)).
func decimalCmp(ok func(int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, isDec := fl.Field().Interface().(decimal.Decimal)
		if !isDec {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			panic(fmt.Sprintf("dataset: bad decimal bound %q", fl.Param()))
		}
		return ok(d.Cmp(bound))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	case "gte", "dgte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "dlte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
