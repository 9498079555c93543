package provider

import (
	"fmt"
	"strings"
)

// Factory resolves a CurrencyProvider by its logical name. The registered set
// is built once at process start and is read-only afterwards, so Resolve is
// safe for concurrent use.
type Factory struct {
	providers map[string]CurrencyProvider
}

// NewFactory creates a Factory from the given name -> provider mapping.
// Names are stored lowercased.
func NewFactory(providers map[string]CurrencyProvider) *Factory {
	registered := make(map[string]CurrencyProvider, len(providers))
	for name, p := range providers {
		registered[strings.ToLower(name)] = p
	}
	return &Factory{providers: registered}
}

// Resolve returns the provider registered under the given name.
// Comparison is case-insensitive; unknown names fail with ErrUnknownProvider.
func (f *Factory) Resolve(name string) (CurrencyProvider, error) {
	p, ok := f.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names.
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}
