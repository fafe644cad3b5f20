package payment

import (
	"sort"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/ports/adapter"
)

// Registry resolves a rail by name. It is built once at startup and read-only afterwards.
type Registry struct {
	rails map[string]adapter.PaymentRail
}

func NewRegistry(rails ...adapter.PaymentRail) *Registry {
	m := make(map[string]adapter.PaymentRail, len(rails))
	for _, r := range rails {
		if r != nil {
			m[r.Name()] = r
		}
	}
	return &Registry{rails: m}
}

func (r *Registry) Get(name string) (adapter.PaymentRail, error) {
	rail, ok := r.rails[name]
	if !ok {
		return nil, domain.ErrUnknownRail
	}
	return rail, nil
}

// Names lists the enabled rails in stable order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.rails))
	for n := range r.rails {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
