package factory

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/marketdata/clients/alphavantage"
	"github.com/aristath/marketdata/clients/bloomberg"
	"github.com/aristath/marketdata/clients/ibkr"
	"github.com/aristath/marketdata/clients/yahoo"
	"github.com/aristath/marketdata/config"
	"github.com/aristath/marketdata/domain"
)

// DefaultProvider is the provider every safe lookup falls back to. Yahoo
// needs no credential or local process, so it is always constructible.
const DefaultProvider = yahoo.DisplayName

type entry struct {
	name  string
	probe func() bool // nil means always available
	build func(f *Factory, o Options) (domain.DataProvider, error)
}

// Factory builds and caches tabular providers. Instances built without
// options are singletons; options always produce a fresh instance.
type Factory struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry []entry

	mu    sync.Mutex
	cache map[string]domain.DataProvider
}

// New creates a provider factory over the given configuration.
func New(cfg *config.Config, log zerolog.Logger) *Factory {
	f := &Factory{
		cfg:   cfg,
		log:   log.With().Str("component", "factory").Logger(),
		cache: make(map[string]domain.DataProvider),
	}
	f.registry = []entry{
		{
			name: yahoo.DisplayName,
			build: func(f *Factory, o Options) (domain.DataProvider, error) {
				p := yahoo.NewProvider(f.log)
				applyHTTPClient(p, o)
				return p, nil
			},
		},
		{
			name:  alphavantage.DisplayName,
			probe: alphavantage.IsAvailable,
			build: func(f *Factory, o Options) (domain.DataProvider, error) {
				key := o.apiKey
				if key == "" {
					key = f.cfg.AlphaVantageAPIKey
				}
				p, err := alphavantage.NewProvider(key, f.log)
				if err != nil {
					return nil, err
				}
				applyHTTPClient(p, o)
				return p, nil
			},
		},
		{
			name:  bloomberg.DisplayName,
			probe: bloomberg.IsAvailable,
			build: func(f *Factory, o Options) (domain.DataProvider, error) {
				addr := o.gatewayAddr
				if addr == "" {
					addr = f.cfg.BloombergGateway
				}
				return bloomberg.NewProvider(addr, f.log)
			},
		},
		{
			name:  ibkr.DisplayName,
			probe: ibkr.IsAvailable,
			build: func(f *Factory, o Options) (domain.DataProvider, error) {
				u := o.gatewayURL
				if u == "" {
					u = f.cfg.IBKRGatewayURL
				}
				return ibkr.NewProvider(u, f.log)
			},
		},
	}
	return f
}

// Available returns the display names of providers that can be constructed
// right now, in registry order. The default provider is always listed.
func (f *Factory) Available() []string {
	names := make([]string, 0, len(f.registry))
	for _, e := range f.registry {
		if e.name == DefaultProvider || probeSafely(e.probe) {
			names = append(names, e.name)
		}
	}
	return names
}

// Get returns the provider registered under name. Lookups without options
// are served from the singleton cache; any option builds a fresh,
// uncached instance. Construction errors propagate unmodified.
func (f *Factory) Get(name string, opts ...Option) (domain.DataProvider, error) {
	e := f.lookup(name)
	if e == nil {
		return nil, domain.ErrUnknownProvider{Name: name, Available: f.Available()}
	}

	if len(opts) > 0 {
		return e.build(f, applyOptions(opts))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.cache[e.name]; ok {
		return p, nil
	}

	p, err := e.build(f, Options{})
	if err != nil {
		return nil, err
	}
	f.cache[e.name] = p
	return p, nil
}

// GetSafe is Get with a guaranteed answer: when the requested provider
// cannot be built, it logs and returns the default provider instead. Only a
// failure of the default itself propagates.
func (f *Factory) GetSafe(name string, opts ...Option) (domain.DataProvider, error) {
	p, err := f.Get(name, opts...)
	if err == nil {
		return p, nil
	}
	if name == DefaultProvider {
		return nil, err
	}
	f.log.Warn().Err(err).Str("provider", name).Msg("Provider unavailable, falling back to default")
	return f.Get(DefaultProvider)
}

// ClearCache closes and discards every cached instance. Providers holding
// sessions implement domain.Closer; teardown errors are swallowed.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, p := range f.cache {
		if closer, ok := p.(domain.Closer); ok {
			if err := closer.Close(); err != nil {
				f.log.Debug().Err(err).Str("provider", name).Msg("Close failed during cache clear")
			}
		}
	}
	f.cache = make(map[string]domain.DataProvider)
}

func (f *Factory) lookup(name string) *entry {
	for i := range f.registry {
		if f.registry[i].name == name {
			return &f.registry[i]
		}
	}
	return nil
}
