// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package backend derives rendering contexts from validated backend
// records. Each backend kind registers a builder that turns one
// record into the variables, template files and directories its
// driver stanza needs.
package backend

import (
	"path"
	"strings"

	"github.com/juju/collections/set"

	"github.com/canonical/cinder-volume/config"
	"github.com/canonical/cinder-volume/render"
)

// Artifact directories, relative to the common directory of the snap.
const (
	EtcCinder   = "etc/cinder"
	FragmentDir = "etc/cinder/cinder.conf.d"
	EtcCeph     = "etc/ceph"
)

// commonDirExpr resolves to the common directory of the snap when the
// namespace is composed. Derived paths embed it so they stay literal
// until the final substitution pass.
const commonDirExpr = "{{ .snap_paths.common }}"

func commonPath(elem ...string) string {
	return path.Join(append([]string{commonDirExpr}, elem...)...)
}

// Context carries everything rendering needs for one enabled backend
// instance. It is derived once from the validated record and is
// immutable afterwards.
type Context struct {
	kind            config.Kind
	key             string
	supportsCluster bool

	// hidden names the variables kept out of the cinder facing
	// context, typically raw secret material and fields consumed by
	// kind specific artifacts instead of the driver stanza.
	hidden set.Strings

	attrs       map[string]interface{}
	templates   []render.Template
	directories []render.Directory
}

// newBase derives the variables and template files every kind shares.
// Kind builders extend the result.
func newBase(kind config.Kind, key string, attrs map[string]interface{}, hidden ...string) *Context {
	ctx := &Context{
		kind:            kind,
		key:             key,
		supportsCluster: true,
		hidden:          set.NewStrings("driver_ssl_cert"),
		attrs:           copyAttrs(attrs),
	}
	for _, name := range hidden {
		ctx.hidden.Add(name)
	}
	if truthy(ctx.attrs["driver_ssl_cert"]) {
		ctx.attrs["driver_ssl_cert_path"] = commonPath(FragmentDir, key+".pem")
		ctx.attrs["driver_ssl_cert_verify"] = true
	}
	ctx.templates = []render.Template{
		fragmentTemplate(key),
		pemTemplate(key),
	}
	return ctx
}

// Kind returns the backend kind the context was built for.
func (c *Context) Kind() config.Kind {
	return c.kind
}

// Key returns the instance key the backend was declared under. It
// names the driver stanza and every file derived for the instance.
func (c *Context) Key() string {
	return c.key
}

// Namespace implements render.Context.
func (c *Context) Namespace() string {
	return c.key
}

// BackendName returns the name the backend announces itself to cinder
// under. Unlike the instance key it carries no uniqueness guarantee of
// its own, so nothing on disk is derived from it.
func (c *Context) BackendName() string {
	name, _ := c.attrs["volume_backend_name"].(string)
	return name
}

// SupportsCluster reports whether the kind tolerates running the
// volume service clustered.
func (c *Context) SupportsCluster() bool {
	return c.supportsCluster
}

// Context implements render.Context. It returns the full derived
// variable set, hidden variables included.
func (c *Context) Context() map[string]interface{} {
	return copyAttrs(c.attrs)
}

// CinderContext returns the variables exposed to the rendered driver
// stanza. Hidden and unset variables are left out.
func (c *Context) CinderContext() map[string]interface{} {
	attrs := make(map[string]interface{}, len(c.attrs))
	for name, value := range c.attrs {
		if c.hidden.Contains(name) || value == nil {
			continue
		}
		attrs[name] = value
	}
	return attrs
}

// Templates returns the template files rendered for the instance.
func (c *Context) Templates() []render.Template {
	return append([]render.Template(nil), c.templates...)
}

// Directories returns the directories the instance needs created
// before rendering.
func (c *Context) Directories() []render.Directory {
	return append([]render.Directory(nil), c.directories...)
}

func fragmentTemplate(key string) render.Template {
	tpl := render.NewCommon(key+".conf", FragmentDir)
	tpl.Source = "backend.conf.tmpl"
	return tpl
}

func pemTemplate(key string) render.Template {
	tpl := render.NewCommon(key+".pem", FragmentDir)
	tpl.Source = "backend.pem.tmpl"
	tpl.Mode = 0o600
	tpl.Conditionals = []render.Conditional{
		VariableSet(key, "driver_ssl_cert_path"),
	}
	return tpl
}

// VariableSet returns a conditional that holds when every named
// variable has a truthy value in the cinder facing context of the
// given backend.
func VariableSet(key string, names ...string) render.Conditional {
	return func(ns render.Namespace) bool {
		ctx := cinderContext(ns, key)
		for _, name := range names {
			if !truthy(ctx[name]) {
				return false
			}
		}
		return true
	}
}

func cinderContext(ns render.Namespace, key string) map[string]interface{} {
	aggregate, _ := ns[ContextsNamespace].(map[string]interface{})
	contexts, _ := aggregate["contexts"].(map[string]interface{})
	ctx, _ := contexts[key].(map[string]interface{})
	return ctx
}

// protocol returns the lowercased data path protocol of the record,
// falling back when unset.
func protocol(attrs map[string]interface{}, fallback string) string {
	if s, ok := attrs["protocol"].(string); ok && s != "" {
		return strings.ToLower(s)
	}
	return fallback
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

func copyAttrs(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for name, value := range attrs {
		out[name] = value
	}
	return out
}
