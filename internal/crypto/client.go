// Package crypto fetches current cryptocurrency prices from the
// CoinMarketCap quotes API.
package crypto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "https://pro-api.coinmarketcap.com/v2/cryptocurrency/quotes/latest"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Quote is a single price observation for one currency.
type Quote struct {
	Slug        string
	Price       float64
	LastUpdated time.Time
}

// Client queries the CoinMarketCap quotes endpoint.
type Client struct {
	client   HTTPClient
	endpoint string
	apiKey   string
}

// New creates a Client authenticated with the given API key.
func New(client HTTPClient, apiKey string) *Client {
	return &Client{
		client:   client,
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
	}
}

// quotesResponse mirrors the subset of the API response we read.
type quotesResponse struct {
	Data map[string]struct {
		Slug  string `json:"slug"`
		Quote struct {
			USD struct {
				Price       float64 `json:"price"`
				LastUpdated string  `json:"last_updated"`
			} `json:"USD"`
		} `json:"quote"`
	} `json:"data"`
}

// Quotes returns the current USD price for each of the given currency
// slugs.
func (c *Client) Quotes(ctx context.Context, slugs []string) ([]Quote, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("coinmarketcap api key is not set")
	}

	q := url.Values{}
	q.Set("slug", strings.Join(slugs, ","))
	q.Set("convert", "USD")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed quotesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}

	var quotes []Quote
	for _, entry := range parsed.Data {
		updated, err := time.Parse(time.RFC3339, entry.Quote.USD.LastUpdated)
		if err != nil {
			updated = time.Now().UTC()
		}
		quotes = append(quotes, Quote{
			Slug:        entry.Slug,
			Price:       entry.Quote.USD.Price,
			LastUpdated: updated,
		})
	}
	return quotes, nil
}

// Report renders quotes as the plain-text price report sent to
// subscribers and fed to the guidance prompt.
func Report(quotes []Quote) string {
	var b strings.Builder
	for _, q := range quotes {
		fmt.Fprintf(&b, "%s: $%.4f at %s\n",
			capitalize(q.Slug), q.Price, q.LastUpdated.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
