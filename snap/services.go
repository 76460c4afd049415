// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package snap

import (
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
	"github.com/juju/utils/v4"
)

var logger = loggo.GetLogger("cindervolume.snap")

// Command is the executable hooks drive snapd with.
const Command = "snapctl"

const (
	retryAttempts = 3
	retryDelay    = 250 * time.Millisecond
)

// Service is one long running process snapd manages on behalf of the
// snap.
type Service interface {
	// Name returns the qualified <snap>.<app> service name.
	Name() string

	// Running reports whether the service is currently active.
	Running() (bool, error)

	// Start starts the service and enables it at startup. A running
	// service is left untouched.
	Start() error

	// Restart restarts the service, starting it when not yet running.
	Restart() error
}

// ServiceManager enumerates the services of the running snap.
type ServiceManager interface {
	// List returns the snap's services keyed by qualified name.
	List() (map[string]Service, error)
}

type ctlServices struct {
	run   runFunc
	clock clock.Clock
}

// CtlServiceManager returns a ServiceManager driving the running
// snap's own services through snapctl.
func CtlServiceManager() ServiceManager {
	return &ctlServices{run: utils.RunCommand, clock: clock.WallClock}
}

// List is part of the ServiceManager interface.
//
// It interprets the table output of `snapctl services`. For example
//
//	Service                      Startup  Current   Notes
//	cinder-volume.cinder-volume  enabled  inactive  -
//
// yields one service named cinder-volume.cinder-volume.
func (m *ctlServices) List() (map[string]Service, error) {
	out, err := m.runRetry("services")
	if err != nil {
		return nil, errors.Trace(err)
	}
	services := make(map[string]Service)
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 3 {
			continue
		}
		services[fields[0]] = &ctlService{parent: m, name: fields[0]}
	}
	return services, nil
}

// runRetry invokes snapctl, retrying when snapd momentarily refuses
// the request.
func (m *ctlServices) runRetry(args ...string) (string, error) {
	var out string
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			out, err = m.run(Command, args...)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("%s %s attempt %d: %v", Command, strings.Join(args, " "), attempt, err)
		},
		Attempts: retryAttempts,
		Delay:    retryDelay,
		Clock:    m.clock,
	})
	if err != nil {
		return out, errors.Annotatef(err, "%s %s: %s", Command, strings.Join(args, " "), strings.TrimSpace(out))
	}
	return out, nil
}

type ctlService struct {
	parent *ctlServices
	name   string
}

// Name is part of the Service interface.
func (s *ctlService) Name() string {
	return s.name
}

// Running is part of the Service interface.
func (s *ctlService) Running() (bool, error) {
	_, _, active, err := s.status()
	if err != nil {
		return false, errors.Trace(err)
	}
	return active, nil
}

// status interprets the `snapctl services <name>` table, reporting
// whether the service is known, enabled at startup and currently
// active.
func (s *ctlService) status() (known, enabled, active bool, err error) {
	out, err := s.parent.runRetry("services", s.name)
	if err != nil {
		return false, false, false, errors.Trace(err)
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != s.name {
			continue
		}
		return true, fields[1] == "enabled", fields[2] == "active", nil
	}
	return false, false, false, nil
}

// Start is part of the Service interface.
func (s *ctlService) Start() error {
	running, err := s.Running()
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		return nil
	}
	logger.Infof("starting service %q", s.name)
	if _, err := s.parent.runRetry("start", "--enable", s.name); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Restart is part of the Service interface.
func (s *ctlService) Restart() error {
	logger.Infof("restarting service %q", s.name)
	if _, err := s.parent.runRetry("restart", s.name); err != nil {
		return errors.Trace(err)
	}
	return nil
}
