package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func configureValidator(validate *validator.Validate) {
	validate.RegisterTagNameFunc(useJSONTagNames)

	// decimal.Decimal is an opaque struct to the validator, teach it to
	// see the numeric value so 'required' means non-zero amount
	validate.RegisterCustomTypeFunc(decimalValuer, decimal.Decimal{})
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func decimalValuer(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		value, _ := d.Float64()
		return value
	}
	return nil
}
