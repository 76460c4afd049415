// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package render_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/cinder-volume/render"
	"github.com/canonical/cinder-volume/snap"
)

type rendererSuite struct {
	testing.IsolationSuite
	paths    snap.Paths
	override string
	builtin  string
}

var _ = gc.Suite(&rendererSuite{})

func (s *rendererSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.paths = snap.Paths{
		Snap:   c.MkDir(),
		Common: c.MkDir(),
		Data:   c.MkDir(),
	}
	s.override = filepath.Join(s.paths.Common, "templates")
	s.builtin = filepath.Join(s.paths.Snap, "templates")
	c.Assert(os.MkdirAll(s.override, 0o755), jc.ErrorIsNil)
	c.Assert(os.MkdirAll(s.builtin, 0o755), jc.ErrorIsNil)
}

func (s *rendererSuite) renderer() *render.Renderer {
	return render.NewRenderer(s.paths, s.override, s.builtin)
}

func (s *rendererSuite) writeTemplate(c *gc.C, dir, name, body string) {
	c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644), jc.ErrorIsNil)
}

func (s *rendererSuite) readArtifact(c *gc.C, rel string) string {
	data, err := os.ReadFile(filepath.Join(s.paths.Common, rel))
	c.Assert(err, jc.ErrorIsNil)
	return string(data)
}

func (s *rendererSuite) TestRenderWritesArtifact(c *gc.C) {
	s.writeTemplate(c, s.builtin, "greeting.conf.tmpl", "hello = {{ .who.name }}")
	tpl := render.NewCommon("greeting.conf", "etc/cinder")
	ns := render.Namespace{"who": map[string]interface{}{"name": "cinder"}}

	modified, err := s.renderer().Render(tpl, ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsTrue)
	c.Check(s.readArtifact(c, "etc/cinder/greeting.conf"), gc.Equals, "hello = cinder\n")

	info, err := os.Stat(filepath.Join(s.paths.Common, "etc/cinder/greeting.conf"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0o640))
}

func (s *rendererSuite) TestRenderIdempotent(c *gc.C) {
	s.writeTemplate(c, s.builtin, "greeting.conf.tmpl", "hello = {{ .who.name }}")
	tpl := render.NewCommon("greeting.conf", "etc/cinder")
	ns := render.Namespace{"who": map[string]interface{}{"name": "cinder"}}

	modified, err := s.renderer().Render(tpl, ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsTrue)

	modified, err = s.renderer().Render(tpl, ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsFalse)
}

func (s *rendererSuite) TestRenderDetectsChange(c *gc.C) {
	s.writeTemplate(c, s.builtin, "greeting.conf.tmpl", "hello = {{ .who.name }}")
	tpl := render.NewCommon("greeting.conf", "etc/cinder")

	_, err := s.renderer().Render(tpl, render.Namespace{"who": map[string]interface{}{"name": "a"}})
	c.Assert(err, jc.ErrorIsNil)

	modified, err := s.renderer().Render(tpl, render.Namespace{"who": map[string]interface{}{"name": "b"}})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsTrue)
	c.Check(s.readArtifact(c, "etc/cinder/greeting.conf"), gc.Equals, "hello = b\n")
}

func (s *rendererSuite) TestRenderTrailingNewline(c *gc.C) {
	s.writeTemplate(c, s.builtin, "a.conf.tmpl", "no newline")
	s.writeTemplate(c, s.builtin, "b.conf.tmpl", "many newlines\n\n\n")

	_, err := s.renderer().Render(render.NewCommon("a.conf", "etc"), render.Namespace{})
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.renderer().Render(render.NewCommon("b.conf", "etc"), render.Namespace{})
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.readArtifact(c, "etc/a.conf"), gc.Equals, "no newline\n")
	c.Check(s.readArtifact(c, "etc/b.conf"), gc.Equals, "many newlines\n")
}

func (s *rendererSuite) TestRenderConditionalRemovesStaleArtifact(c *gc.C) {
	s.writeTemplate(c, s.builtin, "secret.pem.tmpl", "{{ .cert.blob }}")
	tpl := render.NewCommon("secret.pem", "etc/cinder/cinder.conf.d")
	hold := true
	tpl.Conditionals = []render.Conditional{
		func(render.Namespace) bool { return hold },
	}
	ns := render.Namespace{"cert": map[string]interface{}{"blob": "PEM"}}

	modified, err := s.renderer().Render(tpl, ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsTrue)

	hold = false
	modified, err = s.renderer().Render(tpl, ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsFalse)
	_, err = os.Stat(filepath.Join(s.paths.Common, "etc/cinder/cinder.conf.d/secret.pem"))
	c.Check(os.IsNotExist(err), jc.IsTrue)

	// A second pass with the artifact already absent stays quiet.
	modified, err = s.renderer().Render(tpl, ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(modified, jc.IsFalse)
}

func (s *rendererSuite) TestLookupOverrideWins(c *gc.C) {
	s.writeTemplate(c, s.override, "greeting.conf.tmpl", "from override")
	s.writeTemplate(c, s.builtin, "greeting.conf.tmpl", "from builtin")

	body, err := s.renderer().LookupTemplate("greeting.conf")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(body, gc.Equals, "from override")
}

func (s *rendererSuite) TestLookupExactNameBeforeSuffix(c *gc.C) {
	// A verbatim match anywhere on the search path beats a suffixed
	// one, even in a more specific directory.
	s.writeTemplate(c, s.override, "greeting.conf.tmpl", "suffixed override")
	s.writeTemplate(c, s.builtin, "greeting.conf", "exact builtin")

	body, err := s.renderer().LookupTemplate("greeting.conf")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(body, gc.Equals, "exact builtin")
}

func (s *rendererSuite) TestLookupNotFound(c *gc.C) {
	_, err := s.renderer().LookupTemplate("never-written.conf")
	c.Assert(err, gc.ErrorMatches, `template "never-written.conf" not found`)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *rendererSuite) TestRenderMissingTemplate(c *gc.C) {
	_, err := s.renderer().Render(render.NewCommon("ghost.conf", "etc"), render.Namespace{})
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *rendererSuite) TestRenderUnknownReferenceFails(c *gc.C) {
	s.writeTemplate(c, s.builtin, "bad.conf.tmpl", "{{ .missing.value }}")
	_, err := s.renderer().Render(render.NewCommon("bad.conf", "etc"), render.Namespace{})
	c.Assert(err, gc.ErrorMatches, `rendering template "bad.conf": .*`)
}

func (s *rendererSuite) TestRenderSprigFunctions(c *gc.C) {
	s.writeTemplate(c, s.builtin, "fn.conf.tmpl", `value = {{ .v.name | upper }}`)
	_, err := s.renderer().Render(render.NewCommon("fn.conf", "etc"),
		render.Namespace{"v": map[string]interface{}{"name": "abc"}})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.readArtifact(c, "etc/fn.conf"), gc.Equals, "value = ABC\n")
}

func (s *rendererSuite) TestRenderSortsMapKeys(c *gc.C) {
	s.writeTemplate(c, s.builtin, "stanza.conf.tmpl",
		"{{ range $key, $value := .options }}{{ $key }} = {{ $value }}\n{{ end }}")
	ns := render.Namespace{"options": map[string]interface{}{
		"zeta":  "1",
		"alpha": "2",
		"mid":   "3",
	}}

	_, err := s.renderer().Render(render.NewCommon("stanza.conf", "etc"), ns)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.readArtifact(c, "etc/stanza.conf"), gc.Equals, "alpha = 2\nmid = 3\nzeta = 1\n")
}

func (s *rendererSuite) TestEnsureDirectory(c *gc.C) {
	err := s.renderer().EnsureDirectory(render.NewCommonDirectory("etc/ceph"))
	c.Assert(err, jc.ErrorIsNil)

	info, err := os.Stat(filepath.Join(s.paths.Common, "etc/ceph"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.IsDir(), jc.IsTrue)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0o755))
}

func (s *rendererSuite) TestTemplateRelPath(c *gc.C) {
	c.Check(render.NewCommon("cinder.conf", "etc/cinder").RelPath(), gc.Equals, "etc/cinder/cinder.conf")
	suffixed := render.NewCommon("cinder.conf.tmpl", "etc/cinder")
	c.Check(suffixed.RelPath(), gc.Equals, "etc/cinder/cinder.conf")
}
