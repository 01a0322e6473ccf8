package gateway

import (
	"errors"
	"fmt"
)

// ErrUnknownGateway means a directory row names a slug no client was
// registered for. Registration is code, directory rows are data, so this
// only happens on misconfiguration.
var ErrUnknownGateway = errors.New("unknown gateway")

// Registry is the fixed slug → client mapping, populated once at startup.
// Adding a gateway means a new client implementation and a new Register
// call, not a data change.
type Registry struct {
	clients map[string]PaymentGateway
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]PaymentGateway)}
}

func (r *Registry) Register(slug string, client PaymentGateway) {
	r.clients[slug] = client
}

func (r *Registry) Resolve(slug string) (PaymentGateway, error) {
	client, ok := r.clients[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, slug)
	}
	return client, nil
}
