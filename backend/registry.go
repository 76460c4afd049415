// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/cinder-volume/config"
)

var logger = loggo.GetLogger("cindervolume.backend")

// BuilderFunc turns one validated backend record into its rendering
// context. The attribute map holds the declared and passthrough
// attributes merged, keyed by their normalized form.
type BuilderFunc func(key string, attrs map[string]interface{}) *Context

var builders = make(map[config.Kind]BuilderFunc)

// Register adds a context builder for a backend kind.
//
// Register panics if the kind already has a builder.
func Register(kind config.Kind, build BuilderFunc) {
	if _, ok := builders[kind]; ok {
		panic(errors.Errorf("duplicate context builder for backend kind %q", kind))
	}
	builders[kind] = build
}

// NewContext derives the context for one backend record of the given
// kind.
func NewContext(kind config.Kind, key string, attrs map[string]interface{}) (*Context, error) {
	build, ok := builders[kind]
	if !ok {
		return nil, errors.NotFoundf("context builder for backend kind %q", kind)
	}
	return build(key, attrs), nil
}
