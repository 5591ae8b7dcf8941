package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store exposes the persona catalog to the session registry and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Len() int
}

// MemoryStore implements Store with an immutable in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	copied := make([]Persona, 0, len(items))
	for _, item := range items {
		copied = append(copied, clonePersona(item))
	}
	return &MemoryStore{items: copied}
}

// List returns a copy of the catalog in definition order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, clonePersona(item))
	}
	return out
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return clonePersona(item), true
		}
	}
	return Persona{}, false
}

// Len reports the catalog size.
func (s *MemoryStore) Len() int {
	return len(s.items)
}

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a YAML catalog of the form `personas: [...]`.
// Names must be unique, an empty catalog is rejected.
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML persona catalog.
func Parse(raw []byte) ([]Persona, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode persona catalog: %w", err)
	}
	if len(file.Personas) == 0 {
		return nil, errors.New("persona catalog is empty")
	}

	seen := make(map[string]struct{}, len(file.Personas))
	for i := range file.Personas {
		p := &file.Personas[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("persona #%d has no name", i)
		}
		if p.ID == "" {
			p.ID = strings.ToLower(strings.ReplaceAll(p.Name, " ", "-"))
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate persona name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return file.Personas, nil
}

func clonePersona(p Persona) Persona {
	p.Traits = append([]string(nil), p.Traits...)
	p.Specialties = append([]string(nil), p.Specialties...)
	return p
}
