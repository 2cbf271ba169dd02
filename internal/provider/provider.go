// Package provider defines the upstream data providers as descriptor
// values. A descriptor carries everything that varies between providers:
// endpoint, cache key derivation, query building and request auth. There
// is no per-provider type; adding a provider means adding a descriptor.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/config"
)

// Built-in provider names.
const (
	OpenWeatherMap  = "openweathermap"
	AviationWeather = "aviationweather"
	AviationStack   = "aviationstack"
	OpenSky         = "opensky"
	Nominatim       = "nominatim"
)

// openskyTokenURL is the default client-credentials endpoint for the
// flight position feed.
const openskyTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

// Query is the input to a provider call. Single-parameter providers
// (weather stations, geocoding) use Term; flight providers use Params.
type Query struct {
	Term   string
	Params map[string]string
}

// Descriptor describes one upstream provider. Values are built by New
// from config and are immutable afterwards.
type Descriptor struct {
	Name     string
	Category gateway.Category
	BaseURL  string

	path     string
	key      func(q Query) string
	values   func(q Query) url.Values
	header   http.Header
	basic    *config.BasicAuth
	tokenSrc oauth2.TokenSource
}

// CacheKey derives the deterministic cache key for q.
func (d *Descriptor) CacheKey(q Query) string { return d.key(q) }

// NewRequest builds the authenticated upstream GET request for q.
func (d *Descriptor) NewRequest(ctx context.Context, q Query) (*http.Request, error) {
	u := d.BaseURL + d.path
	if vals := d.values(q); len(vals) > 0 {
		u += "?" + vals.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", d.Name, err)
	}
	for k, vs := range d.header {
		req.Header[k] = vs
	}
	if d.basic != nil {
		req.SetBasicAuth(d.basic.Username, d.basic.Password)
	}
	if d.tokenSrc != nil {
		tok, err := d.tokenSrc.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: token: %w", d.Name, err)
		}
		tok.SetAuthHeader(req)
	}
	return req, nil
}

// New builds the descriptor for a configured provider. Unknown names are
// an error: queries must never silently hit an unconfigured endpoint.
func New(e config.ProviderEntry) (*Descriptor, error) {
	switch e.Name {
	case OpenWeatherMap:
		return &Descriptor{
			Name:     e.Name,
			Category: gateway.CategoryWeather,
			BaseURL:  baseURL(e, "https://api.openweathermap.org/data/2.5"),
			path:     "/weather",
			// Key preserves the trimmed user input: "Denver" and "KDEN"
			// are different lookups to this provider.
			key: func(q Query) string { return gateway.StableHash(strings.TrimSpace(q.Term)) },
			values: func(q Query) url.Values {
				return url.Values{
					"q":     {strings.TrimSpace(q.Term)},
					"appid": {e.APIKey},
					"units": {"metric"},
				}
			},
		}, nil

	case AviationWeather:
		return &Descriptor{
			Name:     e.Name,
			Category: gateway.CategoryWeather,
			BaseURL:  baseURL(e, "https://aviationweather.gov/api"),
			path:     "/data/metar",
			key:      func(q Query) string { return gateway.NormalizeCode(q.Term) },
			values: func(q Query) url.Values {
				v := url.Values{
					"ids":    {gateway.NormalizeCode(q.Term)},
					"format": {"json"},
				}
				if e.APIKey != "" {
					v.Set("apikey", e.APIKey)
				}
				return v
			},
		}, nil

	case AviationStack:
		return &Descriptor{
			Name:     e.Name,
			Category: gateway.CategoryFlight,
			BaseURL:  baseURL(e, "http://api.aviationstack.com/v1"),
			path:     "/flights",
			key:      func(q Query) string { return gateway.StableHash(q.Params) },
			values: func(q Query) url.Values {
				v := paramValues(q.Params)
				v.Set("access_key", e.APIKey)
				return v
			},
		}, nil

	case OpenSky:
		d := &Descriptor{
			Name:     e.Name,
			Category: gateway.CategoryFlight,
			BaseURL:  baseURL(e, "https://opensky-network.org/api"),
			path:     "/states/all",
			key: func(q Query) string {
				if len(q.Params) == 0 {
					return gateway.StableHash("all")
				}
				return gateway.StableHash(q.Params)
			},
			values: func(q Query) url.Values { return paramValues(q.Params) },
			basic:  e.Basic,
		}
		if e.OAuth != nil {
			cc := clientcredentials.Config{
				ClientID:     e.OAuth.ClientID,
				ClientSecret: e.OAuth.ClientSecret,
				TokenURL:     e.OAuth.TokenURL,
			}
			if cc.TokenURL == "" {
				cc.TokenURL = openskyTokenURL
			}
			d.tokenSrc = cc.TokenSource(context.Background())
			d.basic = nil // bearer token supersedes basic auth
		}
		return d, nil

	case Nominatim:
		email := e.Email
		if email == "" {
			email = "contact@example.com"
		}
		h := make(http.Header)
		h.Set("User-Agent", fmt.Sprintf("skygate/1.0 (%s)", email))
		return &Descriptor{
			Name:     e.Name,
			Category: gateway.CategoryGeo,
			BaseURL:  baseURL(e, "https://nominatim.openstreetmap.org"),
			path:     "/search",
			key:      func(q Query) string { return gateway.StableHash(q.Term) },
			values: func(q Query) url.Values {
				v := url.Values{
					"q":      {q.Term},
					"format": {"json"},
					"limit":  {"3"},
				}
				if e.Email != "" {
					v.Set("email", e.Email)
				}
				return v
			},
			header: h,
		}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", e.Name)
}

func baseURL(e config.ProviderEntry, def string) string {
	if e.BaseURL != "" {
		return strings.TrimSuffix(e.BaseURL, "/")
	}
	return def
}

func paramValues(params map[string]string) url.Values {
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return v
}
