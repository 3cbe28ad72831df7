package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength mirrors the product name column size of the API.
const MaxNameLength = 200

// Field keys reported by ValidationError.
const (
	FieldName  = "name"
	FieldPrice = "price"
	FieldDate  = "date"
)

// User-facing messages, in the dashboard's language.
const (
	msgNameRequired = "Le nom du produit est obligatoire."
	msgNameTooLong  = "Le nom du produit ne doit pas dépasser 200 caractères."
	msgPriceInvalid = "Le prix doit être un nombre strictement positif."
	msgDateRequired = "La date est obligatoire."
	msgDateInvalid  = "La date doit être au format AAAA-MM-JJ."
)

// ErrValidation is the sentinel every *ValidationError unwraps to.
var ErrValidation = errors.New("validation failed")

var validate = validator.New()

// PurchaseInput is a purchase as typed by the user, before any coercion.
type PurchaseInput struct {
	Name  string `json:"nom_produit" validate:"required,max=200"`
	Price string `json:"prix" validate:"required"`
	Date  string `json:"date_achat" validate:"required,datetime=2006-01-02"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	if e.Has(field) {
		return
	}
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Parse validates the input and coerces it into a NewPurchase. The price is
// parsed exactly once here; nothing downstream re-reads the raw string.
func (in PurchaseInput) Parse() (NewPurchase, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Price = strings.TrimSpace(in.Price)
	in.Date = strings.TrimSpace(in.Date)

	verr := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return NewPurchase{}, err
		}
		for _, fe := range fieldErrs {
			switch fe.StructField() {
			case "Name":
				if fe.Tag() == "max" {
					verr.add(FieldName, msgNameTooLong)
				} else {
					verr.add(FieldName, msgNameRequired)
				}
			case "Price":
				verr.add(FieldPrice, msgPriceInvalid)
			case "Date":
				if fe.Tag() == "required" {
					verr.add(FieldDate, msgDateRequired)
				} else {
					verr.add(FieldDate, msgDateInvalid)
				}
			}
		}
	}

	var out NewPurchase
	out.Name = in.Name
	if !verr.Has(FieldPrice) {
		cents, err := ParseDecimalToCents(in.Price)
		if err != nil {
			verr.add(FieldPrice, msgPriceInvalid)
		}
		out.Price = Money{Cents: cents}
	}
	if !verr.Has(FieldDate) {
		d, err := ParseDate(in.Date)
		if err != nil {
			verr.add(FieldDate, msgDateInvalid)
		}
		out.Date = d
	}

	if len(verr.Fields) > 0 {
		return NewPurchase{}, verr
	}
	return out, nil
}

// Validate checks an already-coerced purchase request.
func (p NewPurchase) Validate() error {
	verr := &ValidationError{}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		verr.add(FieldName, msgNameRequired)
	} else if len([]rune(name)) > MaxNameLength {
		verr.add(FieldName, msgNameTooLong)
	}
	if err := p.Price.Validate(); err != nil {
		verr.add(FieldPrice, msgPriceInvalid)
	}
	if p.Date.IsZero() {
		verr.add(FieldDate, msgDateRequired)
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
