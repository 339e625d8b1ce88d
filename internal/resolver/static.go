package resolver

import (
	"sort"

	"github.com/sleepstars/chatgate/internal/models"
)

// Static resolves through a fixed client name -> backend name mapping.
// Backend names that appear as mapping values resolve to themselves.
type Static struct {
	mapping map[string]string
	targets map[string]struct{}
}

func NewStatic(mapping map[string]string) *Static {
	s := &Static{
		mapping: make(map[string]string, len(mapping)),
		targets: make(map[string]struct{}, len(mapping)),
	}
	for client, backend := range mapping {
		s.mapping[client] = backend
		s.targets[backend] = struct{}{}
	}
	return s
}

// Resolve is case-sensitive.
func (s *Static) Resolve(name string) (Resolution, error) {
	if backend, ok := s.mapping[name]; ok {
		return Resolution{Backend: backend, Client: name}, nil
	}
	if _, ok := s.targets[name]; ok {
		return Resolution{Backend: name, Client: name}, nil
	}
	return Resolution{}, &models.UnrecognizedModelError{Model: name}
}

func (s *Static) Models() []string {
	names := make([]string, 0, len(s.mapping))
	for client := range s.mapping {
		names = append(names, client)
	}
	sort.Strings(names)
	return names
}
