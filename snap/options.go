// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package snap

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

// Options provides read access to the snap's configuration options.
type Options interface {
	// Get returns the values of the named top level options, keyed by
	// option name. Options never set are absent from the result.
	Get(keys ...string) (map[string]interface{}, error)
}

type runFunc func(command string, args ...string) (string, error)

type ctlOptions struct {
	run runFunc
}

// CtlOptions returns an Options reading configuration through snapctl,
// which snapd exposes to hooks of the running snap.
func CtlOptions() Options {
	return &ctlOptions{run: utils.RunCommand}
}

// Get is part of the Options interface.
func (o *ctlOptions) Get(keys ...string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, key := range keys {
		out, err := o.run("snapctl", "get", "-d", key)
		if err != nil {
			return nil, errors.Annotatef(err, "reading option %q: %s", key, strings.TrimSpace(out))
		}
		if strings.TrimSpace(out) == "" {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			return nil, errors.Annotatef(err, "parsing option %q", key)
		}
		for name, value := range doc {
			if value == nil {
				continue
			}
			result[name] = value
		}
	}
	return result, nil
}

type fileOptions struct {
	path string
}

// FileOptions returns an Options backed by a YAML document holding the
// same tree snapctl would return. It serves runs outside snap
// confinement.
func FileOptions(path string) Options {
	return &fileOptions{path: path}
}

// Get is part of the Options interface.
func (o *fileOptions) Get(keys ...string) (map[string]interface{}, error) {
	data, err := os.ReadFile(o.path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Annotatef(err, "parsing options file %q", o.path)
	}
	result := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if value, ok := doc[key]; ok && value != nil {
			result[key] = value
		}
	}
	return result, nil
}
