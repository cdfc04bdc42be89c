package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError carries per-field messages for a malformed admission request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Validate checks the structure of an admission request. It does not check the total;
// that is the coordinator's job.
func (r CreateOrderRequest) Validate() error {
	fields := map[string]string{}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fieldPath(fe.Namespace())] = describe(fe)
		}
	}
	if r.TotalAmount.IsNegative() {
		fields["totalamount"] = "totalamount must not be negative"
	}
	for i, it := range r.Items {
		if it.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("items[%d].unitprice", i)] = "unitprice must not be negative"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldPath(ns string) string {
	// drop the struct name prefix, "CreateOrderRequest.Items[0].ProductID"
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
