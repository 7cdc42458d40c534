package adapter

import (
	"fmt"
	"net/http"

	"github.com/amishk599/hiringradar/internal/model"
)

// Registry is the dispatch table from ATS kind to connector.
type Registry struct {
	connectors map[model.ATSKind]model.Connector
}

// RegistryOptions tweaks vendor-specific behaviour.
type RegistryOptions struct {
	SmartRecruitersDetails bool
}

// NewRegistry wires one adapter per supported vendor around a shared client.
func NewRegistry(client *http.Client, opts RegistryOptions) *Registry {
	return &Registry{
		connectors: map[model.ATSKind]model.Connector{
			model.KindGreenhouse:      NewGreenhouseAdapter(client),
			model.KindLever:           NewLeverAdapter(client),
			model.KindAshby:           NewAshbyAdapter(client),
			model.KindSmartRecruiters: NewSmartRecruitersAdapter(client, opts.SmartRecruitersDetails),
		},
	}
}

// NewRegistryFrom builds a registry from explicit connectors. Useful for
// decorating or substituting individual vendors.
func NewRegistryFrom(connectors map[model.ATSKind]model.Connector) *Registry {
	copied := make(map[model.ATSKind]model.Connector, len(connectors))
	for k, c := range connectors {
		copied[k] = c
	}
	return &Registry{connectors: copied}
}

// Lookup returns the connector for kind.
func (r *Registry) Lookup(kind model.ATSKind) (model.Connector, error) {
	c, ok := r.connectors[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported ATS kind %q", kind)
	}
	return c, nil
}

// Wrap replaces every connector with wrap(kind, connector).
func (r *Registry) Wrap(wrap func(kind model.ATSKind, c model.Connector) model.Connector) {
	for kind, c := range r.connectors {
		r.connectors[kind] = wrap(kind, c)
	}
}
