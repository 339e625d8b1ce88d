package resolver

import (
	"fmt"
	"strings"
)

const (
	KindStatic = "static"
	KindPrefix = "prefix"

	DefaultNamespace = "openai"
)

// Resolution is the outcome of resolving a client-facing model name.
type Resolution struct {
	// Backend is the identifier sent to the backend.
	Backend string
	// Client is the name echoed back in responses.
	Client string
}

// Resolver maps client-facing model names to backend identifiers.
type Resolver interface {
	Resolve(name string) (Resolution, error)
	// Models lists the client-facing names this resolver advertises.
	Models() []string
}

// Options selects and configures one resolver variant.
type Options struct {
	Kind       string
	Namespace  string
	Mapping    map[string]string
	Advertised []string
}

// New builds the resolver variant named by opts.Kind. An empty Kind selects static.
func New(opts Options) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindStatic:
		return NewStatic(opts.Mapping), nil
	case KindPrefix:
		return NewPrefix(opts.Namespace, opts.Advertised), nil
	default:
		return nil, fmt.Errorf("unknown model resolver %q", opts.Kind)
	}
}
