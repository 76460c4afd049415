// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend

import (
	"github.com/canonical/cinder-volume/config"
	"github.com/canonical/cinder-volume/render"
)

func init() {
	Register(config.KindCeph, newCeph)
}

// rbdDriver is the only driver class ceph backends load.
const rbdDriver = "cinder.volume.drivers.rbd.RBDDriver"

// newCeph derives the context for one ceph backend. Beside the driver
// stanza the instance owns a cluster config file and a client keyring
// under etc/ceph, both named after the instance key.
func newCeph(key string, attrs map[string]interface{}) *Context {
	ctx := newBase(config.KindCeph, key, attrs,
		"rbd_key", "keyring", "mon_hosts", "auth")

	cephConf := key + ".conf"
	keyring := "ceph.client." + key + ".keyring"
	ctx.attrs["volume_driver"] = rbdDriver
	ctx.attrs["rbd_ceph_conf"] = commonPath(EtcCeph, cephConf)
	ctx.attrs["keyring"] = keyring

	ctx.directories = append(ctx.directories, render.NewCommonDirectory(EtcCeph))

	conf := render.NewCommon(cephConf, EtcCeph)
	conf.Source = "ceph.conf.tmpl"
	keyringTpl := render.NewCommon(keyring, EtcCeph)
	keyringTpl.Source = "ceph.client.keyring.tmpl"
	keyringTpl.Mode = 0o600
	ctx.templates = append(ctx.templates, conf, keyringTpl)
	return ctx
}
