// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/naturalsort"

	"github.com/canonical/cinder-volume/config"
)

// ContextsNamespace keys the backend aggregate in the render
// namespace.
const ContextsNamespace = "cinder_backends"

// ErrNoBackends reports a configuration with no enabled backend
// instances. Callers treat it as a signal to tear down rendered
// backend artifacts rather than as a hard failure.
const ErrNoBackends = errors.ConstError("at least one storage backend must be enabled")

// Contexts aggregates the contexts of every enabled backend instance.
type Contexts struct {
	enabled  []string
	contexts map[string]*Context
}

// NewContexts builds the aggregate. At least one backend must be
// enabled and every enabled key must have a context.
func NewContexts(enabled []string, contexts map[string]*Context) (*Contexts, error) {
	if len(enabled) == 0 {
		return nil, ErrNoBackends
	}
	var missing []string
	for _, key := range enabled {
		if _, ok := contexts[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NotValidf("backends %v missing a context", missing)
	}
	return &Contexts{enabled: enabled, contexts: contexts}, nil
}

// FromConfig derives the aggregate context from every backend record
// in the configuration. Kinds without a registered builder are
// skipped with a warning so one unknown kind never blocks the rest.
func FromConfig(cfg *config.Config) (*Contexts, error) {
	var enabled []string
	contexts := make(map[string]*Context)
	for _, kind := range config.Kinds() {
		build, ok := builders[kind]
		if !ok {
			logger.Warningf("no context builder registered for backend kind %q", kind)
			continue
		}
		backends := cfg.Backends(kind)
		keys := make([]string, 0, len(backends))
		for key := range backends {
			keys = append(keys, key)
		}
		naturalsort.Sort(keys)
		for _, key := range keys {
			if prior, ok := contexts[key]; ok {
				return nil, errors.NotValidf("backend %q declared under both %s and %s", key, prior.kind, kind)
			}
			contexts[key] = build(key, backends[key].AllAttrs())
			enabled = append(enabled, key)
		}
	}
	return NewContexts(enabled, contexts)
}

// Enabled returns the enabled instance keys in rendering order.
func (c *Contexts) Enabled() []string {
	return append([]string(nil), c.enabled...)
}

// Backends returns the per backend contexts in rendering order.
func (c *Contexts) Backends() []*Context {
	backends := make([]*Context, 0, len(c.enabled))
	for _, key := range c.enabled {
		backends = append(backends, c.contexts[key])
	}
	return backends
}

// Namespace implements render.Context.
func (c *Contexts) Namespace() string {
	return ContextsNamespace
}

// Context implements render.Context. A single backend that cannot run
// clustered vetoes the cluster_ok flag for the whole fleet.
func (c *Contexts) Context() map[string]interface{} {
	clusterOK := true
	contexts := make(map[string]interface{}, len(c.contexts))
	for _, ctx := range c.contexts {
		clusterOK = clusterOK && ctx.SupportsCluster()
		contexts[ctx.Key()] = ctx.CinderContext()
	}
	return map[string]interface{}{
		"enabled_backends": strings.Join(c.enabled, ","),
		"cluster_ok":       clusterOK,
		"contexts":         contexts,
	}
}
