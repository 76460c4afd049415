// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"github.com/canonical/cinder-volume/config"
	"github.com/canonical/cinder-volume/render"
)

func init() {
	Register(config.KindHitachi, newHitachi)
}

// Hitachi VSP driver classes, one per data path protocol.
const (
	hitachiFCDriver    = "cinder.volume.drivers.hitachi.hbsd_fc.HBSDFCDriver"
	hitachiISCSIDriver = "cinder.volume.drivers.hitachi.hbsd_iscsi.HBSDISCSIDriver"
)

// newHitachi derives the context for one Hitachi VSP backend. CHAP
// toggles follow from the presence of the matching credentials, and a
// replication mirror may carry its own certificate, rendered next to
// the primary one.
func newHitachi(key string, attrs map[string]interface{}) *Context {
	ctx := newBase(config.KindHitachi, key, attrs,
		"protocol", "hitachi_mirror_driver_ssl_cert")
	ctx.supportsCluster = false

	if protocol(ctx.attrs, "fc") == "fc" {
		ctx.attrs["volume_driver"] = hitachiFCDriver
	} else {
		ctx.attrs["volume_driver"] = hitachiISCSIDriver
	}
	if _, ok := ctx.attrs["chap_username"]; ok {
		ctx.attrs["use_chap_auth"] = true
	}
	if _, ok := ctx.attrs["hitachi_mirror_auth_username"]; ok {
		ctx.attrs["hitachi_mirror_use_chap_auth"] = true
	}
	if truthy(ctx.attrs["hitachi_mirror_driver_ssl_cert"]) {
		ctx.attrs["hitachi_mirror_ssl_cert_path"] = commonPath(FragmentDir, key+"_mirror.pem")
		ctx.attrs["hitachi_mirror_ssl_cert_verify"] = true
	}

	mirror := render.NewCommon(key+"_mirror.pem", FragmentDir)
	mirror.Source = "hitachi_backend.pem.tmpl"
	mirror.Mode = 0o600
	mirror.Conditionals = []render.Conditional{
		VariableSet(key, "hitachi_mirror_ssl_cert_path"),
	}
	ctx.templates = append(ctx.templates, mirror)
	return ctx
}
