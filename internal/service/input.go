package service

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"storefront-order-service/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// поля в ошибках называем как в API: json тег или snake_case
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return snakeCase(f.Name)
	})
	return v
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeAddress(a models.Address, defaultCountry string) models.Address {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = trimPtr(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = defaultCountry
	}
	return a
}

// normalizeCreateInput trims the contact and address snapshot and reports
// every malformed field at once. Items are checked by LineItemValidator.
func normalizeCreateInput(in CreateOrderInput, id Identity, defaultCountry string) (CreateOrderInput, error) {
	in.Customer.Email = strings.ToLower(strings.TrimSpace(in.Customer.Email))
	if in.Customer.Email == "" && id.Email != "" {
		in.Customer.Email = strings.ToLower(id.Email)
	}
	in.Customer.FirstName = strings.TrimSpace(in.Customer.FirstName)
	in.Customer.LastName = strings.TrimSpace(in.Customer.LastName)
	in.Customer.Phone = trimPtr(in.Customer.Phone)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.ShippingMethod = trimPtr(in.ShippingMethod)
	in.CustomerNotes = trimPtr(in.CustomerNotes)
	in.ShippingAddress = normalizeAddress(in.ShippingAddress, defaultCountry)
	if in.BillingSameAsShipping {
		in.BillingAddress = nil
	} else if in.BillingAddress != nil {
		b := normalizeAddress(*in.BillingAddress, defaultCountry)
		in.BillingAddress = &b
	}

	if err := validate.Struct(in); err != nil {
		return in, toValidationError(err)
	}
	return in, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.add(fieldPath(fe), fieldMessage(fe))
	}
	return out
}

// fieldPath drops the root struct name from the namespace:
// CreateOrderInput.customer.email -> customer.email.
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when billing differs from shipping"
	case "email":
		return "must be a valid email address"
	case "max":
		return "is too long"
	default:
		return "is invalid"
	}
}
