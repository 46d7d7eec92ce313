// Package smarty resolves free-form address text to a USPS carrier route
// via the Smarty US Street API.
package smarty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quietroute/optout-api/pkg/model"
)

var (
	// ErrAddressNotFound means Smarty returned no candidates.
	ErrAddressNotFound = errors.New("smarty: address not found")
	// ErrNoCarrierRoute means the address matched but carries no carrier
	// route data (PO Box or business-only records).
	ErrNoCarrierRoute = errors.New("smarty: no carrier route data for address")
	// ErrUnavailable means the resolver is misconfigured or unreachable.
	ErrUnavailable = errors.New("smarty: resolver unavailable")
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls Smarty with retries. Mock mode returns a fixed route for
// local development without credentials.
type Client struct {
	authID     string
	authToken  string
	baseURL    string
	httpClient HTTPClient
	mock       bool
	maxRetries int
}

// Config defines settings for the Smarty client.
type Config struct {
	AuthID     string
	AuthToken  string
	BaseURL    string
	Mock       bool
	MaxRetries int
}

// New creates a Smarty client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://us-street.api.smarty.com/street-address"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		authID:     cfg.AuthID,
		authToken:  cfg.AuthToken,
		baseURL:    base,
		httpClient: httpClient,
		mock:       cfg.Mock,
		maxRetries: maxRetries,
	}
}

// Resolve maps address text to its carrier route and centroid.
func (c *Client) Resolve(ctx context.Context, addressText string) (model.RouteLookup, error) {
	if c.mock {
		return model.RouteLookup{
			CarrierRoute:     "C001",
			ZipCode:          "19901",
			City:             "Dover",
			State:            "DE",
			FormattedAddress: addressText,
			Lat:              39.1582,
			Lng:              -75.5244,
		}, nil
	}
	if c.authID == "" || c.authToken == "" {
		return model.RouteLookup{}, ErrUnavailable
	}

	params := url.Values{}
	params.Set("auth-id", c.authID)
	params.Set("auth-token", c.authToken)
	params.Set("street", addressText)
	params.Set("candidates", "1")

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.RouteLookup{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			lookup, err := decodeCandidates(resp.Body)
			resp.Body.Close()
			return lookup, err
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("smarty status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
			break
		}
	}
	return model.RouteLookup{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func decodeCandidates(body io.Reader) (model.RouteLookup, error) {
	var candidates []candidate
	buf, err := io.ReadAll(body)
	if err != nil {
		return model.RouteLookup{}, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(buf, &candidates); err != nil {
		return model.RouteLookup{}, fmt.Errorf("decode response: %w", err)
	}
	if len(candidates) == 0 {
		return model.RouteLookup{}, ErrAddressNotFound
	}

	first := candidates[0]
	if first.Metadata.CarrierRoute == "" {
		return model.RouteLookup{}, ErrNoCarrierRoute
	}
	formatted := first.DeliveryLine1
	if first.LastLine != "" {
		formatted += ", " + first.LastLine
	}
	return model.RouteLookup{
		CarrierRoute:     first.Metadata.CarrierRoute,
		ZipCode:          first.Components.Zipcode,
		City:             first.Components.CityName,
		State:            first.Components.StateAbbreviation,
		FormattedAddress: formatted,
		Lat:              first.Metadata.Latitude,
		Lng:              first.Metadata.Longitude,
	}, nil
}

type candidate struct {
	DeliveryLine1 string     `json:"delivery_line_1"`
	LastLine      string     `json:"last_line"`
	Components    components `json:"components"`
	Metadata      metadata   `json:"metadata"`
}

type components struct {
	CityName          string `json:"city_name"`
	StateAbbreviation string `json:"state_abbreviation"`
	Zipcode           string `json:"zipcode"`
}

type metadata struct {
	CarrierRoute string  `json:"carrier_route"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}
