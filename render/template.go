// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package render

import (
	"os"
	"path"
	"strings"

	"github.com/canonical/cinder-volume/snap"
)

// Suffix is the file name extension template sources carry on disk.
const Suffix = ".tmpl"

// Conditional gates the existence of a rendered artifact on the
// composed namespace.
type Conditional func(ns Namespace) bool

// Template describes one artifact rendered from a named template.
type Template struct {
	// Source is the logical template name, resolved along the
	// renderer search path, first verbatim and then with Suffix
	// appended.
	Source string

	// Location is the directory root the artifact lands under.
	Location snap.Location

	// Dir is the artifact directory, relative to Location.
	Dir string

	// Filename is the artifact file name. A Suffix carried here is
	// stripped from the destination.
	Filename string

	// Mode is the file mode applied to the rendered artifact.
	Mode os.FileMode

	// Conditionals gate the artifact. When any of them does not hold
	// the artifact must not exist, and a stale copy is removed.
	Conditionals []Conditional
}

// NewCommon describes an artifact rendered beneath the common root
// from the template named after it.
func NewCommon(filename, dir string) Template {
	return Template{
		Source:   filename,
		Location: snap.LocationCommon,
		Dir:      dir,
		Filename: filename,
		Mode:     0o640,
	}
}

// RelPath returns the artifact path relative to its location root.
func (t Template) RelPath() string {
	return path.Join(t.Dir, strings.TrimSuffix(t.Filename, Suffix))
}

// Directory describes a directory an artifact set needs present.
type Directory struct {
	// Location is the directory root the directory lives under.
	Location snap.Location

	// Path is the directory path, relative to Location.
	Path string

	// Mode is the permission mode of the directory.
	Mode os.FileMode
}

// NewCommonDirectory describes a directory beneath the common root.
func NewCommonDirectory(path string) Directory {
	return Directory{
		Location: snap.LocationCommon,
		Path:     path,
		Mode:     0o755,
	}
}
