// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package render composes template namespaces and materializes
// template descriptors into on disk artifacts, writing only what
// changed.
package render

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/juju/errors"
)

const (
	// BackendKey is the reserved namespace carrying the raw context of
	// the backend an artifact is rendered for.
	BackendKey = "ctx_backend"

	// CinderNameKey is the reserved namespace carrying the name of the
	// backend an artifact is rendered for.
	CinderNameKey = "ctx_cinder_name"
)

// Context contributes one namespace of template attributes.
type Context interface {
	// Namespace returns the name the attributes are addressed under.
	Namespace() string

	// Context returns the attributes.
	Context() map[string]interface{}
}

// MapContext is a Context over a plain attribute map.
type MapContext struct {
	name  string
	attrs map[string]interface{}
}

// NewMapContext returns a Context publishing attrs under namespace.
func NewMapContext(namespace string, attrs map[string]interface{}) MapContext {
	return MapContext{name: namespace, attrs: attrs}
}

// Namespace is part of the Context interface.
func (c MapContext) Namespace() string {
	return c.name
}

// Context is part of the Context interface.
func (c MapContext) Context() map[string]interface{} {
	return c.attrs
}

// Namespace is the composed attribute tree artifacts render against,
// keyed by namespace name.
type Namespace map[string]interface{}

// Compose assembles a Namespace from the given contexts. Later
// contexts replace earlier ones publishing the same namespace.
func Compose(contexts ...Context) Namespace {
	ns := make(Namespace, len(contexts))
	for _, ctx := range contexts {
		ns[ctx.Namespace()] = ctx.Context()
	}
	return ns
}

// Overlay returns a copy of the namespace with the named entry set.
// The receiver is left untouched, so reserved entries scoped to one
// render pass cannot leak into the next.
func (ns Namespace) Overlay(name string, value interface{}) Namespace {
	overlaid := make(Namespace, len(ns)+1)
	for key, entry := range ns {
		overlaid[key] = entry
	}
	overlaid[name] = value
	return overlaid
}

// ResolveValues renders template expressions embedded in the values of
// attrs against ns, walking nested maps and slices. Strings without
// expressions pass through untouched.
func ResolveValues(ns Namespace, attrs map[string]interface{}) (map[string]interface{}, error) {
	resolved, err := resolveValue(ns, attrs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return resolved.(map[string]interface{}), nil
}

func resolveValue(ns Namespace, value interface{}) (interface{}, error) {
	switch value := value.(type) {
	case string:
		if !strings.Contains(value, "{{") {
			return value, nil
		}
		resolved, err := resolveString(ns, value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return resolved, nil
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(value))
		for key, entry := range value {
			entry, err := resolveValue(ns, entry)
			if err != nil {
				return nil, errors.Annotatef(err, "value %q", key)
			}
			resolved[key] = entry
		}
		return resolved, nil
	case []interface{}:
		resolved := make([]interface{}, len(value))
		for i, entry := range value {
			entry, err := resolveValue(ns, entry)
			if err != nil {
				return nil, errors.Trace(err)
			}
			resolved[i] = entry
		}
		return resolved, nil
	}
	return value, nil
}

func resolveString(ns Namespace, value string) (string, error) {
	t, err := template.New("value").Funcs(templateFuncs).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", errors.Trace(err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]interface{}(ns)); err != nil {
		return "", errors.Trace(err)
	}
	return buf.String(), nil
}
