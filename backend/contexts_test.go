// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backend_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cinder-volume/backend"
	"github.com/canonical/cinder-volume/config"
)

type contextsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&contextsSuite{})

func testDoc() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{"debug": false},
		"database": map[string]interface{}{"url": "mysql+pymysql://cinder:pw@10.0.0.10/cinder"},
		"rabbitmq": map[string]interface{}{"url": "rabbit://cinder:pw@10.0.0.11:5672/openstack"},
		"cinder":   map[string]interface{}{"project-id": "proj", "user-id": "user"},
	}
}

func cephRecord(name string) map[string]interface{} {
	return map[string]interface{}{
		"volume-backend-name": name,
		"mon-hosts":           "10.0.0.1,10.0.0.2",
		"rbd-pool":            name + "-pool",
		"rbd-user":            "cinder",
		"rbd-secret-uuid":     "uuid-" + name,
		"rbd-key":             "AQByczRo",
	}
}

func pureRecord(name string) map[string]interface{} {
	return map[string]interface{}{
		"volume-backend-name": name,
		"san-ip":              "10.10.10.2",
		"pure-api-token":      "token",
	}
}

func lvmRecord(name string) map[string]interface{} {
	return map[string]interface{}{
		"volume-backend-name": name,
		"volume-group":        "cinder-volumes",
		"iscsi-ip-address":    "10.50.0.4",
	}
}

func (s *contextsSuite) mustContext(c *gc.C, kind config.Kind, key string, attrs map[string]interface{}) *backend.Context {
	ctx, err := backend.NewContext(kind, key, attrs)
	c.Assert(err, jc.ErrorIsNil)
	return ctx
}

func (s *contextsSuite) TestNewContextsNoBackends(c *gc.C) {
	_, err := backend.NewContexts(nil, nil)
	c.Assert(err, gc.Equals, backend.ErrNoBackends)
}

func (s *contextsSuite) TestNewContextsMissingContext(c *gc.C) {
	ceph := s.mustContext(c, config.KindCeph, "ceph0", cephAttrs())
	_, err := backend.NewContexts(
		[]string{"ceph0", "ghost"},
		map[string]*backend.Context{"ceph0": ceph},
	)
	c.Assert(err, gc.ErrorMatches, `backends \[ghost\] missing a context not valid`)
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
}

func (s *contextsSuite) TestAggregateContext(c *gc.C) {
	ceph := s.mustContext(c, config.KindCeph, "ceph0", cephAttrs())
	pure := s.mustContext(c, config.KindPure, "pure0", pureAttrs())
	contexts, err := backend.NewContexts(
		[]string{"ceph0", "pure0"},
		map[string]*backend.Context{"ceph0": ceph, "pure0": pure},
	)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(contexts.Namespace(), gc.Equals, "cinder_backends")
	aggregate := contexts.Context()
	c.Check(aggregate["enabled_backends"], gc.Equals, "ceph0,pure0")
	c.Check(aggregate["cluster_ok"], gc.Equals, true)

	byKey, ok := aggregate["contexts"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	c.Assert(byKey, gc.HasLen, 2)
	cephCtx, ok := byKey["ceph0"].(map[string]interface{})
	c.Assert(ok, jc.IsTrue)
	c.Check(cephCtx["volume_driver"], gc.Equals, "cinder.volume.drivers.rbd.RBDDriver")
	_, ok = cephCtx["rbd_key"]
	c.Check(ok, jc.IsFalse)
}

func (s *contextsSuite) TestClusterVetoedByOneBackend(c *gc.C) {
	pure := s.mustContext(c, config.KindPure, "pure0", pureAttrs())
	vsp := s.mustContext(c, config.KindHitachi, "vsp0", hitachiAttrs())
	contexts, err := backend.NewContexts(
		[]string{"pure0", "vsp0"},
		map[string]*backend.Context{"pure0": pure, "vsp0": vsp},
	)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(contexts.Context()["cluster_ok"], gc.Equals, false)
}

func (s *contextsSuite) TestBackendsInRenderingOrder(c *gc.C) {
	ceph := s.mustContext(c, config.KindCeph, "ceph0", cephAttrs())
	pure := s.mustContext(c, config.KindPure, "pure0", pureAttrs())
	contexts, err := backend.NewContexts(
		[]string{"pure0", "ceph0"},
		map[string]*backend.Context{"ceph0": ceph, "pure0": pure},
	)
	c.Assert(err, jc.ErrorIsNil)

	backends := contexts.Backends()
	c.Assert(backends, gc.HasLen, 2)
	c.Check(backends[0].Key(), gc.Equals, "pure0")
	c.Check(backends[1].Key(), gc.Equals, "ceph0")
}

func (s *contextsSuite) TestFromConfig(c *gc.C) {
	doc := testDoc()
	doc["pure"] = map[string]interface{}{"pure0": pureRecord("pure-array-1")}
	doc["ceph"] = map[string]interface{}{"ceph0": cephRecord("ceph-rbd-1")}
	doc["lvm-san"] = map[string]interface{}{"lvm0": lvmRecord("lvm-1")}
	cfg, err := config.New(doc)
	c.Assert(err, jc.ErrorIsNil)

	contexts, err := backend.FromConfig(cfg)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(contexts.Enabled(), jc.DeepEquals, []string{"ceph0", "pure0", "lvm0"})

	aggregate := contexts.Context()
	c.Check(aggregate["enabled_backends"], gc.Equals, "ceph0,pure0,lvm0")
	c.Check(aggregate["cluster_ok"], gc.Equals, false)
}

func (s *contextsSuite) TestFromConfigKeepsPassthroughOptions(c *gc.C) {
	record := pureRecord("pure-array-1")
	record["pure-eradicate-on-delete"] = true
	doc := testDoc()
	doc["pure"] = map[string]interface{}{"pure0": record}
	cfg, err := config.New(doc)
	c.Assert(err, jc.ErrorIsNil)

	contexts, err := backend.FromConfig(cfg)
	c.Assert(err, jc.ErrorIsNil)

	backends := contexts.Backends()
	c.Assert(backends, gc.HasLen, 1)
	c.Check(backends[0].CinderContext()["pure_eradicate_on_delete"], gc.Equals, true)
}

func (s *contextsSuite) TestFromConfigNaturalOrderWithinKind(c *gc.C) {
	doc := testDoc()
	doc["ceph"] = map[string]interface{}{
		"vol10": cephRecord("b10"),
		"vol2":  cephRecord("b2"),
	}
	cfg, err := config.New(doc)
	c.Assert(err, jc.ErrorIsNil)

	contexts, err := backend.FromConfig(cfg)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(contexts.Enabled(), jc.DeepEquals, []string{"vol2", "vol10"})
}

func (s *contextsSuite) TestFromConfigNoBackends(c *gc.C) {
	cfg, err := config.New(testDoc())
	c.Assert(err, jc.ErrorIsNil)

	_, err = backend.FromConfig(cfg)
	c.Assert(err, gc.Equals, backend.ErrNoBackends)
}

func (s *contextsSuite) TestFromConfigDuplicateKeyAcrossKinds(c *gc.C) {
	doc := testDoc()
	doc["ceph"] = map[string]interface{}{"dup": cephRecord("ceph-rbd-1")}
	doc["pure"] = map[string]interface{}{"dup": pureRecord("pure-array-1")}
	cfg, err := config.New(doc)
	c.Assert(err, jc.ErrorIsNil)

	_, err = backend.FromConfig(cfg)
	c.Assert(err, gc.ErrorMatches, `backend "dup" declared under both ceph and pure not valid`)
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
}

func (s *contextsSuite) TestFromConfigSkipsUnregisteredKind(c *gc.C) {
	patched := make(map[config.Kind]backend.BuilderFunc)
	for kind, build := range *backend.Builders {
		if kind != config.KindPure {
			patched[kind] = build
		}
	}
	s.PatchValue(backend.Builders, patched)

	doc := testDoc()
	doc["ceph"] = map[string]interface{}{"ceph0": cephRecord("ceph-rbd-1")}
	doc["pure"] = map[string]interface{}{"pure0": pureRecord("pure-array-1")}
	cfg, err := config.New(doc)
	c.Assert(err, jc.ErrorIsNil)

	contexts, err := backend.FromConfig(cfg)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(contexts.Enabled(), jc.DeepEquals, []string{"ceph0"})
}
