package validation

import (
	"reflect"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-orders/internal/pricing"
)

// DateLayout is the format of startDate/endDate query parameters.
const DateLayout = "2006-01-02"

// New returns a configured validator with the custom types and struct-level
// validation the request types need.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// validate Money as a number so gte/lte tags apply
	v.RegisterCustomTypeFunc(moneyValue, pricing.Money{})

	// an order listing range must not end before it starts
	v.RegisterStructValidation(listOrdersStructValidation, ListOrdersQuery{})

	return v
}

func moneyValue(field reflect.Value) interface{} {
	if m, ok := field.Interface().(pricing.Money); ok {
		return m.Float64()
	}
	return nil
}

func listOrdersStructValidation(sl validatorv10.StructLevel) {
	q := sl.Current().Interface().(ListOrdersQuery)
	if q.StartDate == "" || q.EndDate == "" {
		return
	}
	start, err1 := time.Parse(DateLayout, q.StartDate)
	end, err2 := time.Parse(DateLayout, q.EndDate)
	if err1 != nil || err2 != nil {
		// the datetime tag reports malformed dates
		return
	}
	if end.Before(start) {
		sl.ReportError(q.EndDate, "endDate", "EndDate", "date_range", q.StartDate)
	}
}
