// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"github.com/canonical/cinder-volume/config"
)

func init() {
	Register(config.KindDellSC, newDellSC)
}

// Dell Storage Center driver classes, one per data path protocol.
const (
	dellSCISCSIDriver = "cinder.volume.drivers.dell_emc.sc.storagecenter_iscsi.SCISCSIDriver"
	dellSCFCDriver    = "cinder.volume.drivers.dell_emc.sc.storagecenter_fc.SCFCDriver"
)

func newDellSC(key string, attrs map[string]interface{}) *Context {
	ctx := newBase(config.KindDellSC, key, attrs, "protocol")
	ctx.supportsCluster = false
	if protocol(ctx.attrs, "fc") == "iscsi" {
		ctx.attrs["volume_driver"] = dellSCISCSIDriver
	} else {
		ctx.attrs["volume_driver"] = dellSCFCDriver
	}
	return ctx
}
