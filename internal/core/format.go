package core

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is appended to formatted amounts.
const DefaultCurrency = "FCFA"

// emptyDate is shown in place of a missing date.
const emptyDate = "—"

// Formatter renders money and dates for the dashboard locale.
type Formatter struct {
	printer  *message.Printer
	currency string
}

// NewFormatter returns a fr-FR formatter suffixing amounts with currency.
func NewFormatter(currency string) *Formatter {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Formatter{
		printer:  message.NewPrinter(language.French),
		currency: currency,
	}
}

var defaultFormatter = NewFormatter(DefaultCurrency)

// Money formats m with two fraction digits and locale grouping,
// e.g. "1 234,50 FCFA".
func (f *Formatter) Money(m Money) string {
	return f.printer.Sprintf("%v %s", number.Decimal(m.Amount(), number.Scale(2)), f.currency)
}

// Date formats d as DD/MM/YYYY.
func (f *Formatter) Date(d Date) string {
	if d.IsZero() {
		return emptyDate
	}
	return d.Format("02/01/2006")
}

func (f *Formatter) Currency() string {
	return f.currency
}

// FormatMoney formats m with the default currency.
func FormatMoney(m Money) string {
	return defaultFormatter.Money(m)
}

// FormatDate formats d as DD/MM/YYYY.
func FormatDate(d Date) string {
	return defaultFormatter.Date(d)
}

// Today returns the calendar date of now in UTC.
func Today(now time.Time) Date {
	y, m, d := now.UTC().Date()
	return NewDate(y, int(m), d)
}
