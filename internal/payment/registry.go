package payment

import (
	"errors"
	"fmt"
	"sort"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

// Registry is built once at startup and only read afterwards.
type Registry struct {
	providers map[paymentgatewaytypes.ProviderID]paymentgateway.Provider
	defaultID paymentgatewaytypes.ProviderID
}

func NewRegistry(defaultID paymentgatewaytypes.ProviderID, providers ...paymentgateway.Provider) (*Registry, error) {
	r := &Registry{
		providers: make(map[paymentgatewaytypes.ProviderID]paymentgateway.Provider, len(providers)),
		defaultID: defaultID,
	}
	for _, p := range providers {
		if _, exists := r.providers[p.ID()]; exists {
			return nil, fmt.Errorf("provider %q registered twice", p.ID())
		}
		r.providers[p.ID()] = p
	}
	if _, ok := r.providers[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default provider %q is not registered", ErrUnknownProvider, defaultID)
	}
	return r, nil
}

// Resolve returns the named provider, or the default one for an empty id.
func (r *Registry) Resolve(id paymentgatewaytypes.ProviderID) (paymentgateway.Provider, error) {
	if id == "" {
		id = r.defaultID
	}
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

func (r *Registry) Default() paymentgatewaytypes.ProviderID {
	return r.defaultID
}

func (r *Registry) IDs() []paymentgatewaytypes.ProviderID {
	ids := make([]paymentgatewaytypes.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
