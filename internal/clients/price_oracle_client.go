package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// PriceOracleClient asset price API client. Prices are informational,
// used only by the valuation views; ledger math never depends on them.
type PriceOracleClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPriceOracleClient creates a price oracle client
func NewPriceOracleClient(baseURL string, timeout time.Duration) *PriceOracleClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &PriceOracleClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// priceResponse oracle API response
type priceResponse struct {
	Asset    string `json:"asset"`
	PriceUSD string `json:"priceUsd"`
	AsOf     string `json:"asOf"`
}

// GetPriceUSD fetches the USD price for an asset address. Returns zero
// when the oracle is unconfigured.
func (c *PriceOracleClient) GetPriceUSD(ctx context.Context, asset string) (decimal.Decimal, error) {
	if c.baseURL == "" {
		return decimal.Zero, nil
	}

	endpoint := fmt.Sprintf("%s/v1/prices/%s", c.baseURL, url.PathEscape(asset))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read oracle response: %w", err)
	}

	var priceResp priceResponse
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse oracle response: %w", err)
	}

	price, err := decimal.NewFromString(priceResp.PriceUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q from oracle: %w", priceResp.PriceUSD, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s from oracle", price)
	}
	return price, nil
}
