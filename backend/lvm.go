// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"strings"

	"github.com/canonical/cinder-volume/config"
)

func init() {
	Register(config.KindLVMSAN, newLVM)
}

const lvmDriver = "cinder.volume.drivers.lvm.LVMVolumeDriver"

func newLVM(key string, attrs map[string]interface{}) *Context {
	ctx := newBase(config.KindLVMSAN, key, attrs)
	ctx.supportsCluster = false
	ctx.attrs["volume_driver"] = lvmDriver

	// The tgt helper cannot serve nvmet targets. Switch to the nvmet
	// helper unless the record picked another one explicitly.
	proto, _ := ctx.attrs["target_protocol"].(string)
	helper, _ := ctx.attrs["target_helper"].(string)
	if strings.HasPrefix(strings.ToLower(proto), "nvmet") && (helper == "" || helper == "tgtadm") {
		ctx.attrs["target_helper"] = "nvmet"
	}
	return ctx
}
