package resolver

import (
	"strings"

	"github.com/sleepstars/chatgate/internal/models"
)

// Prefix derives backend names as "<namespace>.<client name>".
type Prefix struct {
	prefix     string
	advertised []string
}

func NewPrefix(namespace string, advertised []string) *Prefix {
	namespace = strings.TrimSuffix(strings.TrimSpace(namespace), ".")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Prefix{
		prefix:     namespace + ".",
		advertised: append([]string(nil), advertised...),
	}
}

// ResolveToBackend prepends the namespace unless name already carries it.
func (p *Prefix) ResolveToBackend(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &models.UnrecognizedModelError{Model: name}
	}
	if strings.HasPrefix(name, p.prefix) {
		return name, nil
	}
	return p.prefix + name, nil
}

// ResolveToClient strips the namespace from a backend name.
func (p *Prefix) ResolveToClient(name string) (string, error) {
	if strings.TrimSpace(name) == "" || !strings.HasPrefix(name, p.prefix) {
		return "", &models.UnrecognizedModelError{Model: name, ExpectedPrefix: p.prefix}
	}
	client := strings.TrimSpace(strings.TrimPrefix(name, p.prefix))
	if client == "" {
		return "", &models.UnrecognizedModelError{Model: name, ExpectedPrefix: p.prefix}
	}
	return client, nil
}

func (p *Prefix) Resolve(name string) (Resolution, error) {
	backend, err := p.ResolveToBackend(name)
	if err != nil {
		return Resolution{}, err
	}
	client, err := p.ResolveToClient(backend)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Backend: backend, Client: client}, nil
}

func (p *Prefix) Models() []string {
	return append([]string(nil), p.advertised...)
}
