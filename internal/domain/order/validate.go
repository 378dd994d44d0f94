package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidCheckout is matched by every ValidationError.
var ErrInvalidCheckout = errors.New("invalid checkout details")

// FieldError describes one rejected checkout field.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError lists the checkout fields that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s (%s)", f.Field, f.Rule)
	}
	return "invalid checkout details: " + strings.Join(parts, ", ")
}

// Is reports ErrInvalidCheckout.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidCheckout
}

type checkoutInput struct {
	Address Address       `validate:"required"`
	Payment PaymentMethod `validate:"required,oneof=card transfer cash_on_delivery"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the shipping address and payment method of a checkout.
func Validate(addr Address, payment PaymentMethod) error {
	err := validate.Struct(checkoutInput{
		Address: trimAddress(addr),
		Payment: payment,
	})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate checkout")
	}
	out := &ValidationError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{
			Field: strings.TrimPrefix(fe.Namespace(), "checkoutInput."),
			Rule:  fe.Tag(),
		}
	}
	return out
}

func trimAddress(a Address) Address {
	return Address{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		Department: strings.TrimSpace(a.Department),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Notes:      strings.TrimSpace(a.Notes),
	}
}
