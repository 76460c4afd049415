// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cindervolume

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/cinder-volume/snap"
)

// ServiceSpec ties one snap service to the configuration files it
// reads, relative to the common directory.
type ServiceSpec struct {
	Name        string
	ConfigFiles []string
}

// Specs returns the services shipped by the snap.
func Specs() []ServiceSpec {
	return []ServiceSpec{{
		Name: "cinder-volume.cinder-volume",
		ConfigFiles: []string{
			"etc/cinder/cinder.conf",
			"etc/cinder/rootwrap.conf",
		},
	}}
}

// reconcile restarts every service whose configuration changed in this
// run and makes sure the remaining ones are at least running. Backend
// fragments are loaded by every service, so they join each watch set.
// A service snapd does not report is skipped with a warning.
func reconcile(manager snap.ServiceManager, specs []ServiceSpec, modified, backendFiles set.Strings) error {
	services, err := manager.List()
	if err != nil {
		return errors.Trace(err)
	}
	for _, spec := range specs {
		service, ok := services[spec.Name]
		if !ok {
			logger.Warningf("service %q not registered with snapd, skipping", spec.Name)
			continue
		}
		watched := backendFiles.Union(set.NewStrings(spec.ConfigFiles...))
		if watched.Intersection(modified).IsEmpty() {
			if err := service.Start(); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		logger.Infof("configuration of %q changed", spec.Name)
		if err := service.Restart(); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
