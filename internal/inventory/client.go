// Package inventory is a thin client for the third-party hotel inventory and rates provider.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/briangreenhill/nomadstay/internal/models"
)

const DefaultBaseURL = "https://api.stayprovider.example"

// ErrNotFound is returned when the provider has no such resource
var ErrNotFound = errors.New("inventory: not found")

type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("apiKey required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: u,
		apiKey:  apiKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) newReq(ctx context.Context, p string, q map[string]string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	qq := u.Query()
	for k, v := range q {
		qq.Set(k, v)
	}
	u.RawQuery = qq.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, p string, q map[string]string, out any) error {
	req, err := c.newReq(ctx, p, q)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", p, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: %s: %s", p, resp.Status, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", p, err)
	}
	return nil
}

// Rates returns live room rates for a stay
func (c *Client) Rates(ctx context.Context, id uuid.UUID, q models.RateQuery) ([]models.Rate, error) {
	var body struct {
		Rates []models.Rate `json:"rates"`
	}
	params := map[string]string{
		"check_in":  q.CheckIn,
		"check_out": q.CheckOut,
		"guests":    strconv.Itoa(q.Guests),
	}
	if err := c.getJSON(ctx, path.Join("/v1/hotels", id.String(), "rates"), params, &body); err != nil {
		return nil, err
	}
	for i := range body.Rates {
		body.Rates[i].HotelID = id
	}
	return body.Rates, nil
}
