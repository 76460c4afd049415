// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"github.com/canonical/cinder-volume/config"
)

func init() {
	Register(config.KindPure, newPure)
}

// Pure Storage FlashArray driver classes, one per data path protocol.
const (
	pureISCSIDriver = "cinder.volume.drivers.pure.PureISCSIDriver"
	pureFCDriver    = "cinder.volume.drivers.pure.PureFCDriver"
	pureNVMEDriver  = "cinder.volume.drivers.pure.PureNVMEDriver"
)

func newPure(key string, attrs map[string]interface{}) *Context {
	ctx := newBase(config.KindPure, key, attrs, "protocol")
	switch protocol(ctx.attrs, "fc") {
	case "iscsi":
		ctx.attrs["volume_driver"] = pureISCSIDriver
	case "nvme":
		ctx.attrs["volume_driver"] = pureNVMEDriver
	default:
		ctx.attrs["volume_driver"] = pureFCDriver
	}
	return ctx
}
