package reports

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("fault_type", func(fl validator.FieldLevel) bool {
			_, ok := CanonicalFaultType(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

// Validate normalises the report and checks it, returning a
// *shared.ValidationError keyed by JSON field name.
func Validate(r *FaultReport) error {
	r.Normalize()
	err := validatorInstance().Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &shared.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Fields[fe.Field()] = message(fe)
	}
	return ve
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "too long"
	case "oneof":
		return "must be one of " + fe.Param()
	case "fault_type":
		return "unknown fault type"
	default:
		return fe.Tag()
	}
}
