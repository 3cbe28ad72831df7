package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ISODate is the wire and comparison layout for purchase dates.
const ISODate = "2006-01-02"

// UnknownProduct is displayed when a purchase references a product that is
// not in the loaded collection.
const UnknownProduct = "Inconnu"

type (
	// ID identifies a product or a purchase. Remote ids are integers issued
	// by the API; ids synthesized in fallback mode are non-numeric strings.
	ID string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Product struct {
		ID   ID     `json:"id"`
		Name string `json:"nom_produit"`
	}

	Purchase struct {
		ID          ID     `json:"id"`
		ProductID   ID     `json:"produit"`
		ProductName string `json:"produit_nom,omitempty"` // snapshot taken at creation
		Price       Money  `json:"prix"`
		Date        Date   `json:"date_achat"`
	}

	// NewPurchase is a validated purchase request, ready for the store.
	NewPurchase struct {
		Name  string
		Price Money
		Date  Date
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// IsNumeric reports whether the id was issued by the remote API.
func (id ID) IsNumeric() bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (id ID) String() string {
	return string(id)
}

// MarshalJSON writes numeric ids as JSON numbers so they round-trip with
// the API, and every other id as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// MustDate parses an ISO date and panics on failure. Intended for fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(fmt.Sprintf("core: bad date %q", s))
	}
	return d
}

// ISO returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(ISODate)
}

func (d Date) String() string {
	return d.ISO()
}

// Compare orders dates by their ISO strings, which matches chronological
// order; the zero date sorts first.
func (d Date) Compare(o Date) int {
	return strings.Compare(d.ISO(), o.ISO())
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.ISO())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ResolvedName returns the display name of the purchase: the snapshot when
// present, otherwise a lookup of ProductID in products.
func (p Purchase) ResolvedName(products []Product) string {
	if p.ProductName != "" {
		return p.ProductName
	}
	for _, prod := range products {
		if prod.ID == p.ProductID {
			return prod.Name
		}
	}
	return UnknownProduct
}

// FindProductByName matches name case-insensitively against products.
func FindProductByName(products []Product, name string) (Product, bool) {
	for _, p := range products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}
