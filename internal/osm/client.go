// Package osm talks to the OpenStreetMap Overpass and Nominatim services.
package osm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cityhex/cityhex/internal/cache"
)

const (
	DefaultOverpassURL  = "https://overpass-api.de/api/interpreter"
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent    = "cityhex/1.0 (+https://github.com/cityhex/cityhex)"

	maxBody = 64 << 20
)

type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches raw boundary data. A nil Cache disables response caching.
type Client struct {
	HTTP         HTTPDoer
	UserAgent    string
	OverpassURL  string
	NominatimURL string
	// OverpassTimeout is the server-side [timeout:N] in seconds.
	OverpassTimeout int
	Cache           cache.Store
	Log             zerolog.Logger
}

func (c *Client) http() HTTPDoer {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) userAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

// fetch executes req-building fn unless a cached body exists under key.
// Only 200 responses are cached.
func (c *Client) fetch(ctx context.Context, service, key string, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	if c.Cache != nil {
		body, ok, err := c.Cache.Get(ctx, key)
		if err != nil {
			c.Log.Warn().Err(err).Str("service", service).Msg("cache read failed")
		} else if ok {
			c.Log.Debug().Str("service", service).Str("key", key).Msg("cache hit")
			return body, nil
		}
	}

	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed creating %s request: %w", service, err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json")

	res, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", service, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed reading %s response: %w", service, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, &StatusCodeError{Service: service, StatusCode: res.StatusCode, Body: snippet(body)}
	}

	if c.Cache != nil {
		if err := c.Cache.Set(ctx, key, body); err != nil {
			c.Log.Warn().Err(err).Str("service", service).Msg("cache write failed")
		}
	}
	return body, nil
}

func (c *Client) postForm(rawURL string, form url.Values) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewBufferString(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
}

func (c *Client) getURL(rawURL string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
