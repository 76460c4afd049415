// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package snap_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cinder-volume/snap"
)

type optionsSuite struct {
	testing.IsolationSuite
	stub *testing.Stub
}

var _ = gc.Suite(&optionsSuite{})

func (s *optionsSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &testing.Stub{}
}

func (s *optionsSuite) runner(responses map[string]string) func(string, ...string) (string, error) {
	return func(command string, args ...string) (string, error) {
		c := command
		for _, arg := range args {
			c += " " + arg
		}
		s.stub.AddCall(c)
		if err := s.stub.NextErr(); err != nil {
			return "error: snapd busy", err
		}
		return responses[c], nil
	}
}

func (s *optionsSuite) TestGetMergesDocuments(c *gc.C) {
	options := snap.NewCtlOptions(s.runner(map[string]string{
		"snapctl get -d database": `{"database": {"url": "mysql://x"}}`,
		"snapctl get -d cinder":   `{"cinder": {"project-id": "abc", "image-volume-cache-max-count": 8}}`,
	}))

	raw, err := options.Get("database", "cinder")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(raw, jc.DeepEquals, map[string]interface{}{
		"database": map[string]interface{}{"url": "mysql://x"},
		"cinder": map[string]interface{}{
			"project-id":                   "abc",
			"image-volume-cache-max-count": float64(8),
		},
	})
	s.stub.CheckCallNames(c, "snapctl get -d database", "snapctl get -d cinder")
}

func (s *optionsSuite) TestGetSkipsUnsetOptions(c *gc.C) {
	options := snap.NewCtlOptions(s.runner(map[string]string{
		"snapctl get -d settings": "\n",
		"snapctl get -d ceph":     "{}",
	}))

	raw, err := options.Get("settings", "ceph")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(raw, gc.HasLen, 0)
}

func (s *optionsSuite) TestGetCommandError(c *gc.C) {
	s.stub.SetErrors(errors.New("exit status 1"))
	options := snap.NewCtlOptions(s.runner(nil))

	_, err := options.Get("database")
	c.Assert(err, gc.ErrorMatches, `reading option "database": error: snapd busy: exit status 1`)
}

func (s *optionsSuite) TestGetBadPayload(c *gc.C) {
	options := snap.NewCtlOptions(s.runner(map[string]string{
		"snapctl get -d database": "not json",
	}))

	_, err := options.Get("database")
	c.Assert(err, gc.ErrorMatches, `parsing option "database": .*`)
}

func (s *optionsSuite) TestFileOptions(c *gc.C) {
	path := filepath.Join(c.MkDir(), "options.yaml")
	err := os.WriteFile(path, []byte(`
database:
  url: mysql://x
rabbitmq:
  url: rabbit://y
unrelated:
  dropped: true
`), 0o644)
	c.Assert(err, jc.ErrorIsNil)

	raw, err := snap.FileOptions(path).Get("database", "rabbitmq", "settings")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(raw, jc.DeepEquals, map[string]interface{}{
		"database": map[string]interface{}{"url": "mysql://x"},
		"rabbitmq": map[string]interface{}{"url": "rabbit://y"},
	})
}

func (s *optionsSuite) TestFileOptionsMissingFile(c *gc.C) {
	_, err := snap.FileOptions(filepath.Join(c.MkDir(), "nope.yaml")).Get("database")
	c.Assert(err, gc.NotNil)
}
