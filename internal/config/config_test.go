package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefault(t *testing.T) {
	Convey("Default returns sane bootstrap values", t, func() {
		cfg := Default()
		So(cfg.DefaultTarget, ShouldEqual, 60.0)
		So(cfg.DefaultRefund, ShouldEqual, 0.5)
		So(cfg.DefaultScorer, ShouldEqual, "linear")
		So(cfg.DefaultCostWeights.Exp, ShouldEqual, 0.001)
	})
}

func TestFromYAML(t *testing.T) {
	Convey("Given an outer {kind, def} YAML document on disk", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "catalogue.yaml")
		doc := `
kind: CatalogueConfig
def:
  defaultTargetScore: 75
  defaultExpRefundRatio: 0.25
  defaultScorerType: fixed
  defaultCostWeights:
    wEcho: 2
    wTuner: 1
    wExp: 0.01
  buffGridOverrides:
    - id: crit_rate
      values: [50, 100]
      counts: [1, 1]
  userCounts:
    crit_rate:
      100: 500
`
		err := os.WriteFile(path, []byte(doc), 0o644)
		So(err, ShouldBeNil)

		Convey("loading re-marshals the payload into a concrete struct", func() {
			cfg, err := FromYAML(path)
			So(err, ShouldBeNil)
			So(cfg.DefaultTarget, ShouldEqual, 75.0)
			So(cfg.DefaultRefund, ShouldEqual, 0.25)
			So(cfg.DefaultScorer, ShouldEqual, "fixed")
			So(cfg.DefaultCostWeights.Echo, ShouldEqual, 2.0)
			So(len(cfg.BuffGridOverrides), ShouldEqual, 1)
			So(cfg.BuffGridOverrides[0].ID, ShouldEqual, "crit_rate")
			So(cfg.UserCounts["crit_rate"][100], ShouldEqual, uint64(500))
		})
	})

	Convey("a missing config file is an error", t, func() {
		_, err := FromYAML("/no/such/file.yaml")
		So(err, ShouldNotBeNil)
	})
}
