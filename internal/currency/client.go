package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// RateProvider obtains exchange rates from an external source. The date
// identifies the historical day the rate should be priced at. A nil rate
// with a nil error means the provider has no quote for the target currency.
type RateProvider interface {
	Rate(ctx context.Context, from, to string, date time.Time) (*float64, error)
}

// Client fetches historical exchange rates from an exchangerate-api style
// HTTP endpoint: GET {base}/{apiKey}/history/{from}/{yyyy}/{m}/{d} returning
// a conversion_rates map keyed by currency code.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a Client with sensible defaults for connection
// pooling and timeouts.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// historyResponse mirrors the provider's history payload. Only the
// conversion_rates map is of interest.
type historyResponse struct {
	Result          string             `json:"result"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// Rate fetches the from→to rate priced at the given date. It returns
// (nil, nil) when the provider response carries no quote for the target
// currency, and an error on transport or decode failure.
func (c *Client) Rate(ctx context.Context, from, to string, date time.Time) (*float64, error) {
	url := fmt.Sprintf("%s/%s/history/%s/%d/%d/%d",
		c.baseURL, c.apiKey, from, date.Year(), int(date.Month()), date.Day())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("currency: creating rate request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currency: fetching rate %s->%s: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("currency: rate provider returned %d: %s", resp.StatusCode, string(body))
	}

	var hist historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		return nil, fmt.Errorf("currency: decoding rate response: %w", err)
	}

	rate, ok := hist.ConversionRates[to]
	if !ok {
		return nil, nil
	}
	return &rate, nil
}
