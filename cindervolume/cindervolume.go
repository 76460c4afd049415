// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cindervolume drives the configuration lifecycle of the
// cinder-volume snap. The install and configure hooks funnel here:
// snap options are read and validated, one context is derived per
// declared storage backend, templates are rendered beneath the common
// directory and the snap services are restarted when an artifact they
// watch changed.
package cindervolume

import (
	"os"
	"path/filepath"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/cinder-volume/backend"
	"github.com/canonical/cinder-volume/config"
	"github.com/canonical/cinder-volume/render"
	"github.com/canonical/cinder-volume/snap"
)

var logger = loggo.GetLogger("cindervolume")

// CinderVolume wires the snap surface together: options in, rendered
// configuration artifacts and service restarts out.
type CinderVolume struct {
	paths    snap.Paths
	options  snap.Options
	services snap.ServiceManager
}

// New returns a CinderVolume reading options and managing services
// through the given snap interfaces.
func New(paths snap.Paths, options snap.Options, services snap.ServiceManager) *CinderVolume {
	return &CinderVolume{paths: paths, options: options, services: services}
}

// Install prepares the directory layout and renders whatever the
// options held at install time allow. Options are usually incomplete
// here, so validation failures only log and the configure hook
// finishes the job once the operator seeds the configuration.
func (cv *CinderVolume) Install() error {
	renderer := cv.renderer()
	if err := cv.ensureBaseDirectories(renderer); err != nil {
		return errors.Trace(err)
	}
	cfg, err := cv.loadConfig()
	if err != nil {
		logger.Warningf("not rendering at install time: %v", err)
		return nil
	}
	applyLogLevel(cfg)
	contexts, err := backend.FromConfig(cfg)
	if err != nil && !errors.Is(err, backend.ErrNoBackends) {
		logger.Warningf("not rendering at install time: %v", err)
		return nil
	}
	// contexts is nil when no backend is declared yet. The global
	// artifacts still render so the services can come up idle.
	if contexts != nil {
		if err := cv.ensureBackendDirectories(renderer, contexts); err != nil {
			return errors.Trace(err)
		}
	}
	_, err = cv.renderAll(renderer, cfg, contexts)
	return errors.Trace(err)
}

// Configure is the snap configure hook. It clears stale backend
// fragments, validates the full option document, renders every
// artifact and restarts the services whose configuration changed.
func (cv *CinderVolume) Configure() error {
	cv.clearFragments()
	cfg, err := cv.loadConfig()
	if err != nil {
		return errors.Trace(err)
	}
	applyLogLevel(cfg)
	contexts, err := backend.FromConfig(cfg)
	if errors.Is(err, backend.ErrNoBackends) {
		logger.Infof("no storage backend enabled, nothing to render")
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	renderer := cv.renderer()
	if err := cv.ensureBaseDirectories(renderer); err != nil {
		return errors.Trace(err)
	}
	if err := cv.ensureBackendDirectories(renderer, contexts); err != nil {
		return errors.Trace(err)
	}
	modified, err := cv.renderAll(renderer, cfg, contexts)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(reconcile(cv.services, Specs(), modified, watchedFiles(contexts)))
}

// loadConfig reads the snap option document and validates it into a
// typed configuration.
func (cv *CinderVolume) loadConfig() (*config.Config, error) {
	raw, err := cv.options.Get(config.TopLevelKeys()...)
	if err != nil {
		return nil, errors.Annotate(err, "reading snap options")
	}
	cfg, err := config.New(raw)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// applyLogLevel raises logging to DEBUG when the operator asked for it
// through the settings section.
func applyLogLevel(cfg *config.Config) {
	if cfg.Settings().Debug {
		logger.SetLogLevel(loggo.DEBUG)
	}
}

// renderer returns a Renderer looking for template sources in the
// operator override directory first, then the writable data directory,
// then the directory shipped with the snap.
func (cv *CinderVolume) renderer() *render.Renderer {
	return render.NewRenderer(cv.paths,
		filepath.Join(cv.paths.Common, "templates"),
		filepath.Join(cv.paths.Data, "templates"),
		filepath.Join(cv.paths.Snap, "templates"),
	)
}

// globalTemplates describes the service level artifacts. The sources
// carry no explicit template name, so an operator dropped override
// named after the artifact wins over the shipped <name>.tmpl.
func globalTemplates() []render.Template {
	return []render.Template{
		render.NewCommon("cinder.conf", backend.EtcCinder),
		render.NewCommon("rootwrap.conf", backend.EtcCinder),
	}
}

// ensureBaseDirectories creates the directories the services need
// regardless of which backends are enabled.
func (cv *CinderVolume) ensureBaseDirectories(renderer *render.Renderer) error {
	for _, dir := range []render.Directory{
		render.NewCommonDirectory(backend.EtcCinder),
		render.NewCommonDirectory(backend.FragmentDir),
		render.NewCommonDirectory("lib/cinder"),
		render.NewCommonDirectory("lock"),
	} {
		if err := renderer.EnsureDirectory(dir); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ensureBackendDirectories creates the extra directories the enabled
// backends asked for.
func (cv *CinderVolume) ensureBackendDirectories(renderer *render.Renderer, contexts *backend.Contexts) error {
	for _, bctx := range contexts.Backends() {
		for _, dir := range bctx.Directories() {
			if err := renderer.EnsureDirectory(dir); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// baseNamespace composes the rendering namespace: the snap directory
// paths, one section per service level settings group and the backend
// aggregate. Embedded expressions in backend values resolve against
// this same namespace.
func (cv *CinderVolume) baseNamespace(cfg *config.Config, contexts *backend.Contexts) (render.Namespace, error) {
	composed := []render.Context{cv.paths}
	for name, attrs := range cfg.Sections() {
		composed = append(composed, render.NewMapContext(name, attrs))
	}
	ns := render.Compose(composed...)
	aggregate := emptyAggregate()
	if contexts != nil {
		resolved, err := render.ResolveValues(ns, contexts.Context())
		if err != nil {
			return nil, errors.Trace(err)
		}
		aggregate = resolved
	}
	return ns.Overlay(backend.ContextsNamespace, aggregate), nil
}

// emptyAggregate mirrors the aggregate shape with no backend enabled,
// so the global templates render the same way on a virgin install.
func emptyAggregate() map[string]interface{} {
	return map[string]interface{}{
		"enabled_backends": "",
		"cluster_ok":       false,
		"contexts":         map[string]interface{}{},
	}
}

// renderAll renders the global artifacts and one artifact set per
// backend, returning the relative paths of the artifacts whose content
// changed on disk. A namespace that fails value resolution aborts
// rendering but not the run, so the services are still reconciled and
// a previously rendered configuration keeps serving.
func (cv *CinderVolume) renderAll(renderer *render.Renderer, cfg *config.Config, contexts *backend.Contexts) (set.Strings, error) {
	modified := set.NewStrings()
	ns, err := cv.baseNamespace(cfg, contexts)
	if err != nil {
		logger.Errorf("resolving configuration values: %v", err)
		return modified, nil
	}
	for _, tpl := range globalTemplates() {
		changed, err := renderer.Render(tpl, ns)
		if err != nil {
			return modified, errors.Trace(err)
		}
		if changed {
			modified.Add(tpl.RelPath())
		}
	}
	if contexts == nil {
		return modified, nil
	}
	for _, bctx := range contexts.Backends() {
		bns := ns.Overlay(render.BackendKey, bctx.Context()).
			Overlay(render.CinderNameKey, bctx.Key())
		for _, tpl := range bctx.Templates() {
			changed, err := renderer.Render(tpl, bns)
			if err != nil {
				return modified, errors.Trace(err)
			}
			if changed {
				modified.Add(tpl.RelPath())
			}
		}
	}
	return modified, nil
}

// watchedFiles returns the artifact paths of every enabled backend,
// which each service watches on top of its own configuration files.
func watchedFiles(contexts *backend.Contexts) set.Strings {
	watched := set.NewStrings()
	for _, bctx := range contexts.Backends() {
		for _, tpl := range bctx.Templates() {
			watched.Add(tpl.RelPath())
		}
	}
	return watched
}

// clearFragments removes every backend fragment before rendering, so
// backends removed from the options leave nothing behind. Failures
// only warn, a surviving fragment is either recreated or ignored.
func (cv *CinderVolume) clearFragments() {
	pattern := filepath.Join(cv.paths.Common, backend.FragmentDir, "*.conf")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		logger.Warningf("listing backend fragments: %v", err)
		return
	}
	for _, match := range matches {
		logger.Debugf("removing backend fragment %q", match)
		if err := os.Remove(match); err != nil {
			logger.Warningf("removing %q: %v", match, err)
		}
	}
}
