// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// cinder-volume dispatches the snap hooks. snapd invokes it with the
// hook name as the only argument, the --config flag serves runs
// outside snap confinement.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"

	"github.com/canonical/cinder-volume/cindervolume"
	"github.com/canonical/cinder-volume/snap"
)

var logger = loggo.GetLogger("cindervolume.cmd")

func main() {
	os.Exit(Main(os.Args[1:]))
}

// Main runs one hook and returns the process exit code. Incomplete
// configuration leaves the hook green so the next option change gets
// another go, anything else fails the hook.
func Main(args []string) int {
	flags := gnuflag.NewFlagSet("cinder-volume", gnuflag.ContinueOnError)
	var configFile string
	flags.StringVar(&configFile, "config", "", "YAML options document to use instead of snapctl")
	if err := flags.Parse(true, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cinder-volume [--config <file>] install|configure")
		return 2
	}

	paths := snap.NewPaths()
	if err := cindervolume.SetupHookLogging(filepath.Join(paths.Common, "hooks.log")); err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		return 1
	}
	options := snap.CtlOptions()
	if configFile != "" {
		options = snap.FileOptions(configFile)
	}
	cv := cindervolume.New(paths, options, snap.CtlServiceManager())

	hook := flags.Arg(0)
	var err error
	switch hook {
	case "install":
		err = cv.Install()
	case "configure":
		err = cv.Configure()
	default:
		fmt.Fprintf(os.Stderr, "unknown hook %q\n", hook)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errors.NotValid):
		logger.Warningf("configuration not complete: %v", err)
		return 0
	default:
		logger.Errorf("%s hook failed: %v", hook, err)
		return 1
	}
}
