// Package factory selects and caches provider instances for both market
// data contracts. Providers are registered in a static table with an
// availability probe and a constructor; lookups are by display name, with a
// safe variant that falls back to the default provider.
package factory

import "net/http"

// Options carries per-construction overrides. Passing any option bypasses
// the factory's singleton cache: the customized instance is built fresh and
// never stored.
type Options struct {
	apiKey      string
	gatewayAddr string
	gatewayURL  string
	httpClient  *http.Client
}

// Option customizes one provider construction.
type Option func(*Options)

// WithAPIKey overrides the environment-sourced API key for keyed providers.
func WithAPIKey(key string) Option {
	return func(o *Options) { o.apiKey = key }
}

// WithGatewayAddr overrides the terminal gateway host:port.
func WithGatewayAddr(addr string) Option {
	return func(o *Options) { o.gatewayAddr = addr }
}

// WithGatewayURL overrides the brokerage gateway base URL.
func WithGatewayURL(u string) Option {
	return func(o *Options) { o.gatewayURL = u }
}

// WithHTTPClient replaces the HTTP transport of web-backed providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Options) { o.httpClient = hc }
}

func applyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// httpConfigurable is implemented by the web-backed providers.
type httpConfigurable interface {
	SetHTTPClient(*http.Client)
}

func applyHTTPClient(provider any, o Options) {
	if o.httpClient == nil {
		return
	}
	if c, ok := provider.(httpConfigurable); ok {
		c.SetHTTPClient(o.httpClient)
	}
}

// probeSafely runs an availability probe, treating a panic as unavailable.
func probeSafely(probe func() bool) (available bool) {
	if probe == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			available = false
		}
	}()
	return probe()
}
