// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package render

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/cinder-volume/snap"
)

var logger = loggo.GetLogger("cindervolume.render")

// templateFuncs is the function set template bodies and embedded value
// expressions may call.
var templateFuncs = sprig.TxtFuncMap()

// Renderer materializes template descriptors against a composed
// namespace, beneath the directory roots of the running snap.
type Renderer struct {
	paths      snap.Paths
	searchPath []string
}

// NewRenderer returns a Renderer resolving template sources along the
// given search path, most specific directory first.
func NewRenderer(paths snap.Paths, searchPath ...string) *Renderer {
	return &Renderer{paths: paths, searchPath: searchPath}
}

// LookupTemplate returns the body of the first template along the
// search path matching name. Every directory is tried with the
// verbatim name before the lookup retries with Suffix appended.
// A miss satisfies errors.IsNotFound.
func (r *Renderer) LookupTemplate(name string) (string, error) {
	for _, candidate := range []string{name, name + Suffix} {
		for _, dir := range r.searchPath {
			data, err := os.ReadFile(filepath.Join(dir, candidate))
			if err == nil {
				return string(data), nil
			}
			if !os.IsNotExist(err) {
				return "", errors.Trace(err)
			}
		}
	}
	return "", errors.NotFoundf("template %q", name)
}

// EnsureDirectory creates the described directory, normalizing its
// permission mode.
func (r *Renderer) EnsureDirectory(dir Directory) error {
	root, err := r.paths.PathFor(dir.Location)
	if err != nil {
		return errors.Trace(err)
	}
	path := filepath.Join(root, dir.Path)
	logger.Debugf("creating directory %q", path)
	if err := os.MkdirAll(path, dir.Mode); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Chmod(path, dir.Mode))
}

// Render materializes the artifact described by tpl against ns. It
// reports true only when the artifact content changed on disk this
// run. An artifact whose conditionals do not hold is removed instead
// and reported unchanged.
func (r *Renderer) Render(tpl Template, ns Namespace) (bool, error) {
	root, err := r.paths.PathFor(tpl.Location)
	if err != nil {
		return false, errors.Trace(err)
	}
	destDir := filepath.Join(root, tpl.Dir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, errors.Trace(err)
	}
	dest := filepath.Join(destDir, strings.TrimSuffix(tpl.Filename, Suffix))

	original, err := os.ReadFile(dest)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Trace(err)
	}
	var originalSum string
	if exists {
		originalSum = fingerprint(original)
	}

	for _, conditional := range tpl.Conditionals {
		if conditional(ns) {
			continue
		}
		logger.Debugf("conditionals unmet for %q", tpl.RelPath())
		if exists {
			logger.Debugf("removing stale artifact %q", dest)
			if err := os.Remove(dest); err != nil {
				return false, errors.Trace(err)
			}
		}
		return false, nil
	}

	body, err := r.LookupTemplate(tpl.Source)
	if err != nil {
		return false, errors.Trace(err)
	}
	t, err := template.New(tpl.Source).Funcs(templateFuncs).Option("missingkey=error").Parse(body)
	if err != nil {
		return false, errors.Annotatef(err, "parsing template %q", tpl.Source)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]interface{}(ns)); err != nil {
		return false, errors.Annotatef(err, "rendering template %q", tpl.Source)
	}
	rendered := buf.Bytes()
	if trimmed := bytes.TrimRight(rendered, "\n"); len(trimmed) > 0 {
		rendered = append(trimmed, '\n')
	}

	if fingerprint(rendered) == originalSum {
		logger.Debugf("artifact %q unchanged", dest)
		return false, nil
	}
	logger.Debugf("writing artifact %q", dest)
	if err := os.WriteFile(dest, rendered, tpl.Mode); err != nil {
		return false, errors.Trace(err)
	}
	return true, errors.Trace(os.Chmod(dest, tpl.Mode))
}

func fingerprint(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
