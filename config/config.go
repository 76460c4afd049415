// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config defines the configuration document the snap accepts
// through snap options, and validates raw option values into their
// typed form. Externally every key is kebab-case; internally keys are
// addressed by their normalized underscore form, so that rendered
// cinder options keep the spelling cinder expects.
package config

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/naturalsort"
	"github.com/juju/schema"
)

// Kind identifies a storage backend flavour the snap can drive.
type Kind string

const (
	KindCeph           Kind = "ceph"
	KindHitachi        Kind = "hitachi"
	KindPure           Kind = "pure"
	KindDellSC         Kind = "dellsc"
	KindDellPowerStore Kind = "dellpowerstore"
	KindLVMSAN         Kind = "lvm-san"
)

// Kinds returns every backend kind, in the order backend records are
// scanned for uniqueness.
func Kinds() []Kind {
	return []Kind{
		KindCeph,
		KindHitachi,
		KindPure,
		KindDellSC,
		KindDellPowerStore,
		KindLVMSAN,
	}
}

// TopLevelKeys lists the snap option names a configuration document is
// assembled from.
func TopLevelKeys() []string {
	keys := []string{"settings", "database", "rabbitmq", "cinder"}
	for _, kind := range Kinds() {
		keys = append(keys, string(kind))
	}
	return keys
}

// Normalize translates an external kebab-case key to its internal
// underscore form.
func Normalize(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// Denormalize translates an internal underscore key back to the
// external kebab-case form. Declared keys never mix the two
// separators, so the translation is lossless.
func Denormalize(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Settings are the top level operational toggles of the snap.
type Settings struct {
	Debug                        bool
	EnableTelemetryNotifications bool
}

// Database holds the connection details of the cinder database.
type Database struct {
	URL string
}

// RabbitMQ holds the connection details of the message queue.
type RabbitMQ struct {
	URL string
}

// Cinder holds the service level cinder options.
type Cinder struct {
	ProjectID                 string
	UserID                    string
	ImageVolumeCacheEnabled   bool
	ImageVolumeCacheMaxSizeGB int
	ImageVolumeCacheMaxCount  int
	DefaultVolumeType         string
	Cluster                   string
}

// Config is a validated configuration document.
type Config struct {
	settings map[string]interface{}
	database map[string]interface{}
	rabbitmq map[string]interface{}
	cinder   map[string]interface{}
	backends map[Kind]map[string]*Backend
}

// New validates a raw configuration document, as returned by the snap
// option store, into its typed form. Raw documents use kebab-case keys
// throughout. Validation failures satisfy errors.IsNotValid.
func New(raw map[string]interface{}) (*Config, error) {
	coerced, err := topLevelChecker.Coerce(raw, nil)
	if err != nil {
		return nil, errors.NewNotValid(err, "invalid configuration")
	}
	doc := coerced.(map[string]interface{})

	cfg := &Config{
		backends: make(map[Kind]map[string]*Backend),
	}
	if cfg.settings, err = coerceSection(doc, "settings", settingsFields, settingsDefaults); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.database, err = coerceSection(doc, "database", databaseFields, nil); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.rabbitmq, err = coerceSection(doc, "rabbitmq", rabbitmqFields, nil); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.cinder, err = coerceSection(doc, "cinder", cinderFields, cinderDefaults); err != nil {
		return nil, errors.Trace(err)
	}

	for _, kind := range Kinds() {
		section, ok := doc[string(kind)].(map[string]interface{})
		if !ok {
			continue
		}
		cfg.backends[kind] = make(map[string]*Backend, len(section))
		for key, value := range section {
			record, _ := value.(map[string]interface{})
			backend, err := newBackend(kind, key, record)
			if err != nil {
				return nil, errors.NewNotValid(err, "invalid "+string(kind)+" backend "+key)
			}
			cfg.backends[kind][key] = backend
		}
	}

	if err := cfg.validateUniqueness(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// validateUniqueness walks every backend record and rejects duplicate
// backend names across all kinds, and duplicate rbd pools among ceph
// backends.
func (c *Config) validateUniqueness() error {
	names := make(map[string]bool)
	pools := make(map[string]bool)
	for _, kind := range Kinds() {
		var keys []string
		for key := range c.backends[kind] {
			keys = append(keys, key)
		}
		naturalsort.Sort(keys)
		for _, key := range keys {
			backend := c.backends[kind][key]
			name := backend.Name()
			if names[name] {
				return errors.NotValidf("duplicate backend name %q in %s backend %q", name, kind, key)
			}
			names[name] = true

			if kind != KindCeph {
				continue
			}
			pool, _ := backend.attrs["rbd_pool"].(string)
			if pools[pool] {
				return errors.NotValidf("duplicate ceph pool %q in backend %q", pool, key)
			}
			pools[pool] = true
		}
	}
	return nil
}

// Settings returns the typed settings section.
func (c *Config) Settings() Settings {
	return Settings{
		Debug:                        boolAttr(c.settings, "debug"),
		EnableTelemetryNotifications: boolAttr(c.settings, "enable_telemetry_notifications"),
	}
}

// Database returns the typed database section.
func (c *Config) Database() Database {
	return Database{URL: stringAttr(c.database, "url")}
}

// RabbitMQ returns the typed rabbitmq section.
func (c *Config) RabbitMQ() RabbitMQ {
	return RabbitMQ{URL: stringAttr(c.rabbitmq, "url")}
}

// Cinder returns the typed cinder section.
func (c *Config) Cinder() Cinder {
	return Cinder{
		ProjectID:                 stringAttr(c.cinder, "project_id"),
		UserID:                    stringAttr(c.cinder, "user_id"),
		ImageVolumeCacheEnabled:   boolAttr(c.cinder, "image_volume_cache_enabled"),
		ImageVolumeCacheMaxSizeGB: intAttr(c.cinder, "image_volume_cache_max_size_gb"),
		ImageVolumeCacheMaxCount:  intAttr(c.cinder, "image_volume_cache_max_count"),
		DefaultVolumeType:         stringAttr(c.cinder, "default_volume_type"),
		Cluster:                   stringAttr(c.cinder, "cluster"),
	}
}

// Sections returns the service level sections as template attribute
// maps keyed by section name. Every declared attribute is present,
// unset optionals as their zero value, so templates can test them
// without tripping strict lookup.
func (c *Config) Sections() map[string]map[string]interface{} {
	settings := c.Settings()
	cinder := c.Cinder()
	return map[string]map[string]interface{}{
		"settings": {
			"debug":                          settings.Debug,
			"enable_telemetry_notifications": settings.EnableTelemetryNotifications,
		},
		"database": {
			"url": c.Database().URL,
		},
		"rabbitmq": {
			"url": c.RabbitMQ().URL,
		},
		"cinder": {
			"project_id":                     cinder.ProjectID,
			"user_id":                        cinder.UserID,
			"image_volume_cache_enabled":     cinder.ImageVolumeCacheEnabled,
			"image_volume_cache_max_size_gb": cinder.ImageVolumeCacheMaxSizeGB,
			"image_volume_cache_max_count":   cinder.ImageVolumeCacheMaxCount,
			"default_volume_type":            cinder.DefaultVolumeType,
			"cluster":                        cinder.Cluster,
		},
	}
}

// Backends returns the validated backend records of the given kind,
// keyed by instance key.
func (c *Config) Backends(kind Kind) map[string]*Backend {
	result := make(map[string]*Backend, len(c.backends[kind]))
	for key, backend := range c.backends[kind] {
		result[key] = backend
	}
	return result
}

// AllBackends returns every validated backend record, grouped by kind
// and keyed by instance key.
func (c *Config) AllBackends() map[Kind]map[string]*Backend {
	result := make(map[Kind]map[string]*Backend, len(c.backends))
	for kind := range c.backends {
		result[kind] = c.Backends(kind)
	}
	return result
}

func stringAttr(attrs map[string]interface{}, key string) string {
	v, _ := attrs[key].(string)
	return v
}

func boolAttr(attrs map[string]interface{}, key string) bool {
	v, _ := attrs[key].(bool)
	return v
}

func intAttr(attrs map[string]interface{}, key string) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
