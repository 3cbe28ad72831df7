// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing request bodies and query
// parameters shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/core"
)

// maxBodyBytes bounds request bodies; a purchase is a few hundred bytes.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles both JSON and form-encoded request bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return p
}

// Parse decodes the body as JSON when it is declared or looks like JSON,
// and as a form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("decode JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue renders JSON scalars as the user would have typed them.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ParsePurchaseInput reads the purchase fields from the request body.
// Field names follow the purchases API.
func ParsePurchaseInput(r *http.Request) (core.PurchaseInput, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.PurchaseInput{}, err
	}
	return core.PurchaseInput{
		Name:  p.Get("nom_produit"),
		Price: p.Get("prix"),
		Date:  p.Get("date_achat"),
	}, nil
}

// ParseDateRange reads the optional start and end query parameters.
func ParseDateRange(query url.Values) (analytics.DateRange, error) {
	r, err := analytics.ParseDateRange(query.Get("start"), query.Get("end"))
	if err != nil {
		return analytics.DateRange{}, errors.New("start and end must be dates formatted YYYY-MM-DD")
	}
	return r, nil
}

// ParseDPR reads the device pixel ratio, defaulting to 1.
func ParseDPR(query url.Values) (float64, error) {
	v := strings.TrimSpace(query.Get("dpr"))
	if v == "" {
		return 1, nil
	}
	dpr, err := strconv.ParseFloat(v, 64)
	if err != nil || dpr <= 0 || dpr > 8 {
		return 0, fmt.Errorf("invalid dpr %q: must be a number in (0, 8]", v)
	}
	return dpr, nil
}

// ParseLimit reads a positive count parameter, defaulting to def.
func ParseLimit(query url.Values, key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(query.Get(key))); err == nil && n > 0 {
		return n
	}
	return def
}
