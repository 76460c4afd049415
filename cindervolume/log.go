// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cindervolume

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
)

// SetupHookLogging sends all logging to the given file, rotated so
// repeated hook runs cannot grow it without bound. Hooks run headless,
// the file is the only trace they leave behind.
func SetupHookLogging(logFile string) error {
	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 2,
		Compress:   true,
	}
	_, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(writer, loggo.DefaultFormatter))
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(loggo.ConfigureLoggers("<root>=INFO"))
}
