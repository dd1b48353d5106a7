package provider

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/provider/channex"
)

// Factory creates channel manager clients by provider name
type Factory struct {
	providers map[string]provider.ChannelProvider
}

// NewFactory creates a new provider factory. recorder receives every
// outbound exchange.
func NewFactory(cfg *config.Config, recorder provider.ExchangeRecorder, logger *zap.Logger) *Factory {
	return &Factory{
		providers: map[string]provider.ChannelProvider{
			channex.ProviderName: channex.NewChannexProvider(cfg.Channex.BaseURL, cfg.Channex.UserAgent, recorder, logger),
		},
	}
}

// Register adds or replaces the client for name
func (f *Factory) Register(name string, p provider.ChannelProvider) {
	f.providers[strings.ToLower(name)] = p
}

// Get returns the client for the provider name; empty defaults to Channex
func (f *Factory) Get(name string) (provider.ChannelProvider, error) {
	if name == "" {
		name = channex.ProviderName
	}
	p, ok := f.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported provider type: %s", name)
	}
	return p, nil
}
