// Package remote is the client for the purchases REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"purchaseflow/internal/core"
	"purchaseflow/internal/log"
)

const (
	productsPath   = "api/produits/"
	purchasesPath  = "api/achats/"
	topProductPath = "api/achats/top_produit/"
	bilanPath      = "api/achats/bilan/"

	csrfHeader = "X-CSRFToken"

	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 4 << 10
)

type Client struct {
	base      *url.URL
	http      *http.Client
	csrfToken string
	logger    *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCSRFToken sends token in the X-CSRFToken header on every request.
func WithCSRFToken(token string) Option {
	return func(c *Client) { c.csrfToken = token }
}

// WithTimeout sets the overall per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API rooted at baseURL
// (e.g. "http://localhost:8000/").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		base:   u,
		http:   newHTTPClient(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClient creates a client with connection pooling and bounded
// timeouts; the API is a single host, so the pool stays small.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   15 * time.Second,
	}
}

type createProductRequest struct {
	Name string `json:"nom_produit"`
}

type createPurchaseRequest struct {
	ProductID core.ID    `json:"produit"`
	Price     core.Money `json:"prix"`
	Date      core.Date  `json:"date_achat"`
}

func (c *Client) ListPurchases(ctx context.Context) ([]core.Purchase, error) {
	var out []core.Purchase
	if err := c.do(ctx, "list purchases", http.MethodGet, purchasesPath, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]core.Product, error) {
	var out []core.Product
	if err := c.do(ctx, "list products", http.MethodGet, productsPath, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProduct registers a product; the server assigns the id.
func (c *Client) CreateProduct(ctx context.Context, name string) (core.Product, error) {
	var out core.Product
	err := c.do(ctx, "create product", http.MethodPost, productsPath, nil, createProductRequest{Name: name}, &out)
	return out, err
}

// CreatePurchase records a purchase of an existing product.
func (c *Client) CreatePurchase(ctx context.Context, productID core.ID, price core.Money, date core.Date) (core.Purchase, error) {
	var out core.Purchase
	body := createPurchaseRequest{ProductID: productID, Price: price, Date: date}
	err := c.do(ctx, "create purchase", http.MethodPost, purchasesPath, nil, body, &out)
	return out, err
}

func (c *Client) DeletePurchase(ctx context.Context, id core.ID) error {
	path := purchasesPath + url.PathEscape(id.String()) + "/"
	return c.do(ctx, "delete purchase", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	target := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	terr := &core.TransportError{Op: op, Method: method, URL: target.String()}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		terr.Err = err
		return terr
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.csrfToken != "" {
		req.Header.Set(csrfHeader, c.csrfToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		terr.Err = err
		c.logger.DebugContext(ctx, "API request failed",
			log.FieldOperation, op,
			log.FieldURL, terr.URL,
			log.FieldError, err)
		return terr
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API request completed",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldURL, terr.URL,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		terr.Status = resp.StatusCode
		terr.Body = strings.TrimSpace(string(raw))
		return terr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		terr.Status = resp.StatusCode
		terr.Err = fmt.Errorf("decode response: %w", err)
		return terr
	}
	return nil
}
