// Package marketdata holds the market-data providers consulted when an
// identifier matches no stored security.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps provider payloads; an overview is a few KB.
	maxResponseBytes = 1 << 20

	userAgent = "portfolio-import/1.0"
)

// Options configures a provider client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client // defaults to a client with DefaultTimeout
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// getJSON performs a GET and decodes the JSON body into a generic value
// suitable for jsonpath queries.
func getJSON(ctx context.Context, client *http.Client, addr string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}

	var jobj any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&jobj); err != nil {
		return nil, fmt.Errorf("decode response from %v: %w", req.URL.Host, err)
	}
	return jobj, nil
}

// stringAt returns the string at path, or "" when the path is missing or
// not a string. jsonpath may return a single-element list for filters; the
// first element is kept.
func stringAt(jobj any, path string) string {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return ""
	}
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return ""
		}
		jval = jlist[0]
	}
	s, ok := jval.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "None" || s == "-" {
		return ""
	}
	return s
}

// has reports whether path resolves to a value.
func has(jobj any, path string) bool {
	_, err := jsonpath.Get(path, jobj)
	return err == nil
}
