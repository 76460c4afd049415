// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"github.com/canonical/cinder-volume/config"
)

func init() {
	Register(config.KindDellPowerStore, newDellPowerStore)
}

// dellPowerStoreDriver serves every PowerStore protocol. The driver
// reads the storage_protocol option instead of loading a protocol
// specific class.
const dellPowerStoreDriver = "cinder.volume.drivers.dell_emc.powerstore.driver.PowerStoreDriver"

func newDellPowerStore(key string, attrs map[string]interface{}) *Context {
	ctx := newBase(config.KindDellPowerStore, key, attrs, "protocol")
	ctx.supportsCluster = false
	ctx.attrs["volume_driver"] = dellPowerStoreDriver
	ctx.attrs["storage_protocol"] = protocol(ctx.attrs, "fc")
	return ctx
}
