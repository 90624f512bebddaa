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

type marketEntry struct {
	name  string
	probe func() bool
	build func(f *MarketFactory, o Options) (domain.MarketDataProvider, error)
}

// MarketFactory is the record-contract counterpart of Factory: same
// registry names, same probes, same caching and fallback rules, different
// constructors.
type MarketFactory struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry []marketEntry

	mu    sync.Mutex
	cache map[string]domain.MarketDataProvider
}

// NewMarket creates a market data provider factory over the given
// configuration.
func NewMarket(cfg *config.Config, log zerolog.Logger) *MarketFactory {
	f := &MarketFactory{
		cfg:   cfg,
		log:   log.With().Str("component", "market_factory").Logger(),
		cache: make(map[string]domain.MarketDataProvider),
	}
	f.registry = []marketEntry{
		{
			name: yahoo.DisplayName,
			build: func(f *MarketFactory, o Options) (domain.MarketDataProvider, error) {
				p := yahoo.NewMarketProvider(f.log)
				applyHTTPClient(p, o)
				return p, nil
			},
		},
		{
			name:  alphavantage.DisplayName,
			probe: alphavantage.IsAvailable,
			build: func(f *MarketFactory, o Options) (domain.MarketDataProvider, error) {
				key := o.apiKey
				if key == "" {
					key = f.cfg.AlphaVantageAPIKey
				}
				p, err := alphavantage.NewMarketProvider(key, f.log)
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
			build: func(f *MarketFactory, o Options) (domain.MarketDataProvider, error) {
				addr := o.gatewayAddr
				if addr == "" {
					addr = f.cfg.BloombergGateway
				}
				return bloomberg.NewMarketProvider(addr, f.log)
			},
		},
		{
			name:  ibkr.DisplayName,
			probe: ibkr.IsAvailable,
			build: func(f *MarketFactory, o Options) (domain.MarketDataProvider, error) {
				u := o.gatewayURL
				if u == "" {
					u = f.cfg.IBKRGatewayURL
				}
				return ibkr.NewMarketProvider(u, f.log)
			},
		},
	}
	return f
}

// Available returns the display names of providers that can be constructed
// right now, in registry order. The default provider is always listed.
func (f *MarketFactory) Available() []string {
	names := make([]string, 0, len(f.registry))
	for _, e := range f.registry {
		if e.name == DefaultProvider || probeSafely(e.probe) {
			names = append(names, e.name)
		}
	}
	return names
}

// Get returns the market data provider registered under name, with the same
// caching rules as Factory.Get.
func (f *MarketFactory) Get(name string, opts ...Option) (domain.MarketDataProvider, error) {
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

// GetSafe is Get with the default-provider fallback of Factory.GetSafe.
func (f *MarketFactory) GetSafe(name string, opts ...Option) (domain.MarketDataProvider, error) {
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

// ClearCache closes and discards every cached instance, swallowing
// teardown errors.
func (f *MarketFactory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, p := range f.cache {
		if closer, ok := p.(domain.Closer); ok {
			if err := closer.Close(); err != nil {
				f.log.Debug().Err(err).Str("provider", name).Msg("Close failed during cache clear")
			}
		}
	}
	f.cache = make(map[string]domain.MarketDataProvider)
}

func (f *MarketFactory) lookup(name string) *marketEntry {
	for i := range f.registry {
		if f.registry[i].name == name {
			return &f.registry[i]
		}
	}
	return nil
}
