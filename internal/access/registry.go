package access

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Default model actions expanded for every catalog model.
var DefaultActions = []string{"view", "add", "change", "delete"}

// ConfigurationError reports a permission string that is not in the registry.
type ConfigurationError struct {
	Permission string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("access: unknown permission %q", e.Permission)
}

// Normalize trims and case folds a permission string.
func Normalize(perm string) string {
	perm = strings.TrimSpace(perm)
	if perm == "" {
		return ""
	}
	if isASCII(perm) {
		return strings.ToLower(perm)
	}
	return cases.Fold().String(perm)
}

// PermissionName builds the conventional "<app>.<action>_<model>" string.
func PermissionName(app, action, model string) string {
	return Normalize(app + "." + action + "_" + model)
}

// PermissionInfo describes one registered permission.
type PermissionInfo struct {
	Name        string
	Description string
}

// AppLabel returns the part before the dot.
func (p PermissionInfo) AppLabel() string {
	app, _, _ := strings.Cut(p.Name, ".")
	return app
}

// Registry holds every permission string known to the system.
type Registry struct {
	mu    sync.RWMutex
	perms map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{perms: make(map[string]string)}
}

// Register adds a permission. Registering twice keeps the first description.
func (r *Registry) Register(name, description string) string {
	name = Normalize(name)
	if name == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.perms[name]; !ok {
		r.perms[name] = strings.TrimSpace(description)
	}
	return name
}

// Has reports whether the permission is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.perms[Normalize(name)]
	return ok
}

// Validate returns a *ConfigurationError for the first unknown permission.
func (r *Registry) Validate(perms ...string) error {
	for _, p := range perms {
		if !r.Has(p) {
			return &ConfigurationError{Permission: p}
		}
	}
	return nil
}

// MustValidate panics with a *ConfigurationError when any permission is unknown.
// Guards call it while routes are mounted so typos stop the process at startup.
func (r *Registry) MustValidate(perms ...string) {
	if err := r.Validate(perms...); err != nil {
		panic(err)
	}
}

// List returns all registered permissions sorted by name.
func (r *Registry) List() []PermissionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PermissionInfo, 0, len(r.perms))
	for name, desc := range r.perms {
		out = append(out, PermissionInfo{Name: name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered permissions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.perms)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
