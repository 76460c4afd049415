// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package snap exposes the confinement surface the snap runs against:
// the directory roots granted by snapd, configuration options set
// through snapctl, and control over the snap's own services.
package snap

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// Location identifies one of the directory roots rendered artifacts
// may live under.
type Location string

const (
	// LocationSnap is the read only mount of the snap itself. Bundled
	// templates live here.
	LocationSnap Location = "snap"

	// LocationCommon is the writable root shared across snap
	// revisions. Rendered configuration lives here.
	LocationCommon Location = "common"

	// LocationData is the writable root owned by the current snap
	// revision.
	LocationData Location = "data"
)

// PathsNamespace is the namespace templates address directory roots
// under.
const PathsNamespace = "snap_paths"

// Paths is the collection of directory roots granted to the running
// snap by snapd.
type Paths struct {
	// Snap is the $SNAP mount point.
	Snap string

	// Common is the $SNAP_COMMON directory.
	Common string

	// Data is the $SNAP_DATA directory.
	Data string
}

// NewPaths returns the directory roots of the running snap, as
// published by snapd through the environment.
func NewPaths() Paths {
	return Paths{
		Snap:   os.Getenv("SNAP"),
		Common: os.Getenv("SNAP_COMMON"),
		Data:   os.Getenv("SNAP_DATA"),
	}
}

// PathFor returns the directory root of the given location.
func (p Paths) PathFor(location Location) (string, error) {
	switch location {
	case LocationSnap:
		return p.Snap, nil
	case LocationCommon:
		return p.Common, nil
	case LocationData:
		return p.Data, nil
	}
	return "", errors.NotValidf("location %q", location)
}

// Join resolves a relative path against the root of the given
// location.
func (p Paths) Join(location Location, rel ...string) (string, error) {
	root, err := p.PathFor(location)
	if err != nil {
		return "", errors.Trace(err)
	}
	return filepath.Join(append([]string{root}, rel...)...), nil
}

// Namespace returns the namespace the directory roots are published
// to templates under.
func (p Paths) Namespace() string {
	return PathsNamespace
}

// Context returns the directory roots as template attributes.
func (p Paths) Context() map[string]interface{} {
	return map[string]interface{}{
		"snap":   p.Snap,
		"common": p.Common,
		"data":   p.Data,
	}
}
