// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"net"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
)

// Backend is one validated backend record. Declared attributes and
// attributes outside the declared schema are kept apart, so consumers
// can tell validated options from passthrough ones.
type Backend struct {
	kind Kind
	key  string

	// attrs holds the declared attributes with defaults applied,
	// keyed by their normalized underscore form.
	attrs map[string]interface{}

	// extra holds attributes outside the declared schema, kept only
	// for extensible kinds, also underscore keyed.
	extra map[string]interface{}
}

// Kind returns the backend kind the record was declared under.
func (b *Backend) Kind() Kind {
	return b.kind
}

// Key returns the instance key the record was declared under.
func (b *Backend) Key() string {
	return b.key
}

// Name returns the name the backend announces itself to cinder under.
func (b *Backend) Name() string {
	return stringAttr(b.attrs, "volume_backend_name")
}

// Attrs returns a copy of the declared attributes.
func (b *Backend) Attrs() map[string]interface{} {
	attrs := make(map[string]interface{}, len(b.attrs))
	for key, value := range b.attrs {
		attrs[key] = value
	}
	return attrs
}

// Extra returns a copy of the attributes outside the declared schema.
func (b *Backend) Extra() map[string]interface{} {
	extra := make(map[string]interface{}, len(b.extra))
	for key, value := range b.extra {
		extra[key] = value
	}
	return extra
}

// AllAttrs returns declared and extra attributes merged into one map.
// The two sets are disjoint by construction.
func (b *Backend) AllAttrs() map[string]interface{} {
	attrs := b.Attrs()
	for key, value := range b.extra {
		attrs[key] = value
	}
	return attrs
}

// backendSchema describes how records of one kind validate.
type backendSchema struct {
	fields   environschema.Fields
	defaults schema.Defaults

	// overrides replaces generated checkers for fields whose accepted
	// forms environschema cannot express.
	overrides schema.Fields

	// extensible kinds keep attributes outside the declared schema as
	// passthrough cinder options. Non extensible kinds drop them.
	extensible bool

	// ipFields name attributes that must parse as IP addresses when
	// set.
	ipFields []string
}

var baseBackendFields = environschema.Fields{
	"image-volume-cache-enabled": {
		Description: "Override the service level image volume cache toggle.",
		Type:        environschema.Tbool,
	},
	"image-volume-cache-max-size-gb": {
		Description: "Override the service level image volume cache size limit.",
		Type:        environschema.Tint,
	},
	"image-volume-cache-max-count": {
		Description: "Override the service level image volume cache count limit.",
		Type:        environschema.Tint,
	},
	"volume-dd-blocksize": {
		Description: "Block size used when copying or clearing volumes.",
		Type:        environschema.Tint,
	},
	"volume-backend-name": {
		Description: "Name the backend announces itself to cinder under.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
	"driver-ssl-cert": {
		Description: "PEM bundle used to verify the backend management endpoint.",
		Type:        environschema.Tstring,
		Secret:      true,
	},
}

// minBlockSize is the smallest block size cinder will copy volumes
// with.
const minBlockSize = 512

var backendSchemas = map[Kind]backendSchema{
	KindCeph: {
		fields: environschema.Fields{
			"rbd-exclusive-cinder-pool": {
				Description: "Assume cinder is the only writer of the rbd pool.",
				Type:        environschema.Tbool,
			},
			"report-discard-supported": {
				Description: "Advertise discard support to attached guests.",
				Type:        environschema.Tbool,
			},
			"rbd-flatten-volume-from-snapshot": {
				Description: "Flatten volumes created from snapshots.",
				Type:        environschema.Tbool,
			},
			"auth": {
				Description: "Ceph authentication scheme.",
				Type:        environschema.Tstring,
			},
			"mon-hosts": {
				Description: "Comma separated ceph monitor addresses.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"rbd-pool": {
				Description: "Pool volumes are carved out of.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"rbd-user": {
				Description: "Ceph user the driver authenticates as.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"rbd-secret-uuid": {
				Description: "Libvirt secret carrying the ceph key on compute hosts.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"rbd-key": {
				Description: "Cephx key of the rbd user.",
				Type:        environschema.Tstring,
				Mandatory:   true,
				Secret:      true,
			},
		},
		defaults: schema.Defaults{
			"rbd-exclusive-cinder-pool":        true,
			"report-discard-supported":         true,
			"rbd-flatten-volume-from-snapshot": false,
			"auth":                             "cephx",
		},
	},
	KindHitachi: {
		fields: environschema.Fields{
			"san-ip": {
				Description: "Management address of the VSP array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"san-username": {
				Description: "Management user of the VSP array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"san-password": {
				Description: "Management password of the VSP array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
				Secret:      true,
			},
			"hitachi-storage-id": {
				Description: "Storage id of the VSP array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"hitachi-pools": {
				Description: "Comma separated pool names or ids.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"protocol": {
				Description: "Data path protocol the driver speaks.",
				Type:        environschema.Tstring,
				Values:      []interface{}{"fc", "iscsi"},
			},
		},
		defaults: schema.Defaults{
			"protocol": "fc",
		},
		overrides: schema.Fields{
			// Arrays report either a numeric or a string id.
			"hitachi-storage-id": schema.OneOf(schema.String(), schema.ForceInt()),
		},
		extensible: true,
		ipFields:   []string{"san-ip"},
	},
	KindPure: {
		fields: environschema.Fields{
			"san-ip": {
				Description: "Management address of the FlashArray.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"pure-api-token": {
				Description: "REST API token of the FlashArray.",
				Type:        environschema.Tstring,
				Mandatory:   true,
				Secret:      true,
			},
			"protocol": {
				Description: "Data path protocol the driver speaks.",
				Type:        environschema.Tstring,
				Values:      []interface{}{"iscsi", "fc", "nvme"},
			},
		},
		defaults: schema.Defaults{
			"protocol": "fc",
		},
		extensible: true,
		ipFields:   []string{"san-ip"},
	},
	KindDellSC: {
		fields: environschema.Fields{
			"san-ip": {
				Description: "Management address of the DSM.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"san-login": {
				Description: "Management user of the DSM.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"san-password": {
				Description: "Management password of the DSM.",
				Type:        environschema.Tstring,
				Mandatory:   true,
				Secret:      true,
			},
			"dell-sc-ssn": {
				Description: "Storage Center system serial number.",
				Type:        environschema.Tint,
				Mandatory:   true,
			},
			"protocol": {
				Description: "Data path protocol the driver speaks.",
				Type:        environschema.Tstring,
				Values:      []interface{}{"iscsi", "fc"},
			},
			"enable-unsupported-driver": {
				Description: "Acknowledge the driver is unsupported upstream. Must be set true.",
				Type:        environschema.Tbool,
				Mandatory:   true,
				Values:      []interface{}{true},
			},
			"secondary-san-ip": {
				Description: "Management address of the secondary DSM.",
				Type:        environschema.Tstring,
			},
			"secondary-san-login": {
				Description: "Management user of the secondary DSM.",
				Type:        environschema.Tstring,
			},
			"secondary-san-password": {
				Description: "Management password of the secondary DSM.",
				Type:        environschema.Tstring,
				Secret:      true,
			},
		},
		defaults: schema.Defaults{
			"protocol": "fc",
		},
		overrides: schema.Fields{
			// The driver refuses to load unless the operator opts in
			// with a literal true.
			"enable-unsupported-driver": schema.Const(true),
		},
		extensible: true,
		ipFields:   []string{"san-ip", "secondary-san-ip"},
	},
	KindDellPowerStore: {
		fields: environschema.Fields{
			"san-ip": {
				Description: "Management address of the PowerStore array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"san-login": {
				Description: "Management user of the PowerStore array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"san-password": {
				Description: "Management password of the PowerStore array.",
				Type:        environschema.Tstring,
				Mandatory:   true,
				Secret:      true,
			},
			"protocol": {
				Description: "Data path protocol the driver speaks.",
				Type:        environschema.Tstring,
				Values:      []interface{}{"iscsi", "fc"},
			},
		},
		defaults: schema.Defaults{
			"protocol": "fc",
		},
		extensible: true,
		ipFields:   []string{"san-ip"},
	},
	KindLVMSAN: {
		fields: environschema.Fields{
			"volume-driver": {
				Description: "Driver class cinder loads for the backend.",
				Type:        environschema.Tstring,
			},
			"volume-group": {
				Description: "Volume group volumes are carved out of.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"target-protocol": {
				Description: "Target protocol exported to initiators.",
				Type:        environschema.Tstring,
			},
			"target-helper": {
				Description: "Target administration helper.",
				Type:        environschema.Tstring,
			},
			"iscsi-ip-address": {
				Description: "Address targets are exported on.",
				Type:        environschema.Tstring,
				Mandatory:   true,
			},
			"lvm-type": {
				Description: "LVM allocation type.",
				Type:        environschema.Tstring,
			},
			"lvm-pool-name": {
				Description: "Thin pool volumes are carved out of.",
				Type:        environschema.Tstring,
			},
			"backend-availability-zone": {
				Description: "Availability zone the backend reports.",
				Type:        environschema.Tstring,
			},
		},
		defaults: schema.Defaults{
			"volume-driver":   "cinder.volume.drivers.lvm.LVMVolumeDriver",
			"target-protocol": "iscsi",
			"target-helper":   "lioadm",
		},
		extensible: true,
	},
}

// newBackend validates one raw backend record of the given kind.
func newBackend(kind Kind, key string, raw map[string]interface{}) (*Backend, error) {
	ks, ok := backendSchemas[kind]
	if !ok {
		return nil, errors.NotValidf("backend kind %q", kind)
	}
	fields := make(environschema.Fields, len(baseBackendFields)+len(ks.fields))
	for name, attr := range baseBackendFields {
		fields[name] = attr
	}
	for name, attr := range ks.fields {
		fields[name] = attr
	}
	defaults := schema.Defaults{
		"volume-dd-blocksize": 4096,
	}
	for name, value := range ks.defaults {
		defaults[name] = value
	}
	overrides := schema.Fields{
		"volume-backend-name": schema.NonEmptyString("volume-backend-name"),
	}
	for name, checker := range ks.overrides {
		overrides[name] = checker
	}

	attrs, err := coerceAttrs(raw, fields, defaults, overrides)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if size := intAttr(attrs, "volume_dd_blocksize"); size < minBlockSize {
		return nil, errors.NotValidf("volume-dd-blocksize %d below minimum %d", size, minBlockSize)
	}
	for _, field := range ks.ipFields {
		value := stringAttr(attrs, Normalize(field))
		if value == "" {
			continue
		}
		if net.ParseIP(value) == nil {
			return nil, errors.NotValidf("%s %q", field, value)
		}
	}

	backend := &Backend{
		kind:  kind,
		key:   key,
		attrs: attrs,
		extra: make(map[string]interface{}),
	}
	if !ks.extensible {
		return backend, nil
	}
	for name, value := range raw {
		if _, ok := fields[name]; ok {
			continue
		}
		backend.extra[Normalize(name)] = value
	}
	return backend, nil
}
