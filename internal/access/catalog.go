package access

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the parsed permission catalog.
type Catalog struct {
	Apps  map[string]CatalogApp  `yaml:"apps"`
	Roles map[string]CatalogRole `yaml:"roles"`
}

// CatalogApp lists the models and custom permissions of one application.
type CatalogApp struct {
	Models []string          `yaml:"models"`
	Custom map[string]string `yaml:"custom"`
}

// CatalogRole holds the default permissions of a system role.
type CatalogRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// LoadCatalog parses a YAML catalog and builds its registry. Role defaults are
// validated against the registry.
func LoadCatalog(r io.Reader) (*Catalog, *Registry, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, nil, fmt.Errorf("access: decode catalog: %w", err)
	}
	reg := NewRegistry()
	for app, spec := range cat.Apps {
		app = strings.TrimSpace(app)
		for _, model := range spec.Models {
			for _, action := range DefaultActions {
				reg.Register(PermissionName(app, action, model), fmt.Sprintf("Can %s %s", action, strings.ReplaceAll(model, "_", " ")))
			}
		}
		for codename, desc := range spec.Custom {
			reg.Register(app+"."+codename, desc)
		}
	}
	for name, role := range cat.Roles {
		if !RoleName(name).Valid() {
			return nil, nil, fmt.Errorf("access: catalog role %q is not a valid role name", name)
		}
		if err := reg.Validate(role.Permissions...); err != nil {
			return nil, nil, fmt.Errorf("access: catalog role %q: %w", name, err)
		}
	}
	return &cat, reg, nil
}

// DefaultCatalog loads the embedded catalog.
func DefaultCatalog() (*Catalog, *Registry, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalog))
}

// RoleDefaults returns the role names of the catalog in a stable order.
func (c *Catalog) RoleDefaults() []RoleName {
	names := make([]RoleName, 0, len(c.Roles))
	for name := range c.Roles {
		names = append(names, RoleName(name))
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
