package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
)

const DefaultAlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantage queries the OVERVIEW function. It is the primary provider.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ core.MarketDataProvider = (*AlphaVantage)(nil)

func NewAlphaVantage(opts Options) *AlphaVantage {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultAlphaVantageURL
	}
	return &AlphaVantage{baseURL: base, apiKey: opts.APIKey, client: opts.client()}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

// FetchOverview returns nil without error when the service has no data for
// the identifier, including rate-limit and error payloads, which arrive
// with status 200.
func (a *AlphaVantage) FetchOverview(ctx context.Context, identifier string) (*core.Overview, error) {
	if a.apiKey == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("function", "OVERVIEW")
	q.Set("symbol", identifier)
	q.Set("apikey", a.apiKey)

	jobj, err := getJSON(ctx, a.client, a.baseURL+"/query?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("alphavantage overview %s: %w", identifier, err)
	}
	obj, ok := jobj.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, nil
	}
	for _, key := range []string{"Error Message", "Note", "Information"} {
		if _, found := obj[key]; found {
			return nil, nil
		}
	}

	ov := &core.Overview{
		Symbol:    stringAt(obj, "$.Symbol"),
		Name:      stringAt(obj, "$.Name"),
		AssetType: core.AssetTypeFromQuoteType(stringAt(obj, "$.AssetType")),
		Currency:  strings.ToUpper(stringAt(obj, "$.Currency")),
		Exchange:  stringAt(obj, "$.Exchange"),
		Country:   stringAt(obj, "$.Country"),
		Sector:    stringAt(obj, "$.Sector"),
		Industry:  stringAt(obj, "$.Industry"),
	}
	if ov.Name == "" {
		return nil, nil
	}
	return ov, nil
}
