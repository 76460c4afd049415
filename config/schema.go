// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/juju/environschema.v1"
)

// topLevelChecker shapes the raw document: plain sections are string
// keyed maps, backend kind sections are string keyed maps of backend
// records. Keys outside the declared set are ignored.
var topLevelChecker = schema.FieldMap(
	schema.Fields{
		"settings":                    schema.StringMap(schema.Any()),
		"database":                    schema.StringMap(schema.Any()),
		"rabbitmq":                    schema.StringMap(schema.Any()),
		"cinder":                      schema.StringMap(schema.Any()),
		string(KindCeph):              schema.StringMap(schema.StringMap(schema.Any())),
		string(KindHitachi):           schema.StringMap(schema.StringMap(schema.Any())),
		string(KindPure):              schema.StringMap(schema.StringMap(schema.Any())),
		string(KindDellSC):            schema.StringMap(schema.StringMap(schema.Any())),
		string(KindDellPowerStore):    schema.StringMap(schema.StringMap(schema.Any())),
		string(KindLVMSAN):            schema.StringMap(schema.StringMap(schema.Any())),
	},
	schema.Defaults{
		"settings":                 schema.Omit,
		"database":                 schema.Omit,
		"rabbitmq":                 schema.Omit,
		"cinder":                   schema.Omit,
		string(KindCeph):           schema.Omit,
		string(KindHitachi):        schema.Omit,
		string(KindPure):           schema.Omit,
		string(KindDellSC):         schema.Omit,
		string(KindDellPowerStore): schema.Omit,
		string(KindLVMSAN):         schema.Omit,
	},
)

var settingsFields = environschema.Fields{
	"debug": {
		Description: "Log the snap services at debug level.",
		Type:        environschema.Tbool,
	},
	"enable-telemetry-notifications": {
		Description: "Emit telemetry notifications on the message queue.",
		Type:        environschema.Tbool,
	},
}

var settingsDefaults = schema.Defaults{
	"debug":                          false,
	"enable-telemetry-notifications": false,
}

var databaseFields = environschema.Fields{
	"url": {
		Description: "Connection URL of the cinder database.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
}

var rabbitmqFields = environschema.Fields{
	"url": {
		Description: "Connection URL of the message queue.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
}

var cinderFields = environschema.Fields{
	"project-id": {
		Description: "OpenStack project the cinder services run under.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
	"user-id": {
		Description: "OpenStack user the cinder services run under.",
		Type:        environschema.Tstring,
		Mandatory:   true,
	},
	"image-volume-cache-enabled": {
		Description: "Enable the image volume cache.",
		Type:        environschema.Tbool,
	},
	"image-volume-cache-max-size-gb": {
		Description: "Image volume cache size limit, in gigabytes.",
		Type:        environschema.Tint,
	},
	"image-volume-cache-max-count": {
		Description: "Image volume cache entry count limit.",
		Type:        environschema.Tint,
	},
	"default-volume-type": {
		Description: "Volume type used when a request names none.",
		Type:        environschema.Tstring,
	},
	"cluster": {
		Description: "Cluster name to join for active/active volume services.",
		Type:        environschema.Tstring,
	},
}

var cinderDefaults = schema.Defaults{
	"image-volume-cache-enabled":     false,
	"image-volume-cache-max-size-gb": 0,
	"image-volume-cache-max-count":   0,
}

// coerceSection validates one plain section of the document against
// its field schema and returns the attributes keyed by their
// normalized underscore form. A section absent from the document is
// coerced from empty, so defaults still apply.
func coerceSection(doc map[string]interface{}, name string, fields environschema.Fields, defaults schema.Defaults) (map[string]interface{}, error) {
	section, ok := doc[name].(map[string]interface{})
	if !ok {
		section = map[string]interface{}{}
	}
	attrs, err := coerceAttrs(section, fields, defaults, nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "invalid "+name+" configuration")
	}
	return attrs, nil
}

// coerceAttrs validates raw kebab-keyed attributes against the given
// field schema, layering defaults and checker overrides on top of the
// generated validation schema. The result is keyed by the normalized
// underscore form.
func coerceAttrs(raw map[string]interface{}, fields environschema.Fields, defaults schema.Defaults, overrides schema.Fields) (map[string]interface{}, error) {
	schemaFields, schemaDefaults, err := fields.ValidationSchema()
	if err != nil {
		return nil, errors.Trace(err)
	}
	for key, value := range defaults {
		schemaDefaults[key] = value
	}
	for key, checker := range overrides {
		schemaFields[key] = checker
	}
	coerced, err := schema.FieldMap(schemaFields, schemaDefaults).Coerce(raw, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	attrs := coerced.(map[string]interface{})
	normalized := make(map[string]interface{}, len(attrs))
	for key, value := range attrs {
		normalized[Normalize(key)] = value
	}
	return normalized, nil
}
