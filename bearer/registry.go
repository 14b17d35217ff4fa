package bearer

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/tenantauth/tenant"
)

// SchemeProvider is the part of the validation engine that owns named,
// isolated validation contexts. TryAddScheme must be safe for concurrent use
// and return false when the name already exists.
type SchemeProvider interface {
	HasScheme(name string) bool
	TryAddScheme(name string) bool
}

// SchemeName is the engine context name used for a tenant.
func SchemeName(id tenant.ID) string { return id.String() }

// SchemeRegistry makes sure every tenant has its own scheme in the engine.
type SchemeRegistry struct {
	provider SchemeProvider
	known    sync.Map // tenant.ID -> struct{}
	log      logrus.FieldLogger
}

// NewSchemeRegistry wraps provider.
func NewSchemeRegistry(provider SchemeProvider, log logrus.FieldLogger) *SchemeRegistry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SchemeRegistry{provider: provider, log: log}
}

// Ensure creates the tenant's scheme if needed and returns its name.
func (r *SchemeRegistry) Ensure(id tenant.ID) string {
	name := SchemeName(id)
	if _, ok := r.known.Load(id); ok {
		return name
	}
	if !r.provider.HasScheme(name) && r.provider.TryAddScheme(name) {
		r.log.WithFields(logrus.Fields{"tenant": id, "scheme": name}).Info("registered tenant scheme")
	}
	r.known.Store(id, struct{}{})
	return name
}
