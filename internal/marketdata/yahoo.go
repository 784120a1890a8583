package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo queries the v7 quote endpoint. It is the secondary provider and
// needs no key.
type Yahoo struct {
	baseURL string
	client  *http.Client
}

var _ core.MarketDataProvider = (*Yahoo)(nil)

func NewYahoo(opts Options) *Yahoo {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultYahooURL
	}
	return &Yahoo{baseURL: base, client: opts.client()}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) FetchOverview(ctx context.Context, identifier string) (*core.Overview, error) {
	q := url.Values{}
	q.Set("symbols", identifier)

	jobj, err := getJSON(ctx, y.client, y.baseURL+"/v7/finance/quote?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", identifier, err)
	}
	if jobj == nil || !has(jobj, "$.quoteResponse.result[0]") {
		return nil, nil
	}

	const first = "$.quoteResponse.result[0]"
	name := stringAt(jobj, first+".longName")
	if name == "" {
		name = stringAt(jobj, first+".shortName")
	}
	if name == "" {
		return nil, nil
	}

	exchange := stringAt(jobj, first+".fullExchangeName")
	if exchange == "" {
		exchange = stringAt(jobj, first+".exchange")
	}
	return &core.Overview{
		Symbol:    stringAt(jobj, first+".symbol"),
		Name:      name,
		AssetType: core.AssetTypeFromQuoteType(stringAt(jobj, first+".quoteType")),
		Currency:  strings.ToUpper(stringAt(jobj, first+".currency")),
		Exchange:  exchange,
		Country:   stringAt(jobj, first+".region"),
	}, nil
}
