package httpapi

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
	"github.com/2-07665/ww-echo-policy-calculator/internal/montecarlo"
	"github.com/2-07665/ww-echo-policy-calculator/internal/policycache"
)

func TestAPI(t *testing.T) {
	Convey("Given an API over the default catalogue", t, func() {
		cat, err := catalog.New(config.Default())
		So(err, ShouldBeNil)
		cache := policycache.New(cat, 4)
		api := New(cat, cache)
		srv := httptest.NewServer(api.Router())
		defer srv.Close()

		Convey("GET /bootstrap returns the catalogue and its defaults", func() {
			resp, err := http.Get(srv.URL + "/bootstrap")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body bootstrapResponse
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(len(body.Buffs), ShouldBeGreaterThan, 0)
			So(body.DefaultTarget, ShouldEqual, cat.DefaultTarget)
		})

		Convey("POST /policies kicks off a solve and GET summary eventually succeeds", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"buffWeights": map[string]float64{"crit_damage": 1},
				"targetScore": 50,
				"scorerType":  "linear",
				"costWeights": map[string]float64{"echo": 0, "tuner": 1, "exp": 0},
			})
			resp, err := http.Post(srv.URL+"/policies", "application/json", bytes.NewReader(body))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)

			var created computePolicyResponse
			So(json.NewDecoder(resp.Body).Decode(&created), ShouldBeNil)
			So(created.PolicyID, ShouldNotBeEmpty)

			var summaryResp *http.Response
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				summaryResp, err = http.Get(srv.URL + "/policies/" + created.PolicyID + "/summary")
				So(err, ShouldBeNil)
				if summaryResp.StatusCode == http.StatusOK {
					break
				}
				summaryResp.Body.Close()
				time.Sleep(20 * time.Millisecond)
			}
			So(summaryResp.StatusCode, ShouldEqual, http.StatusOK)
			summaryResp.Body.Close()
		})

		Convey("a request against an unknown policy id is NotReady", func() {
			resp, err := http.Get(srv.URL + "/policies/does-not-exist/summary")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("POST /validate checks the policy against its own cost model, not a default", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"buffWeights":    map[string]float64{"crit_damage": 1},
				"targetScore":    50,
				"scorerType":     "linear",
				"costWeights":    map[string]float64{"echo": 3, "tuner": 5, "exp": 0.01},
				"expRefundRatio": 0.25,
			})
			resp, err := http.Post(srv.URL+"/policies", "application/json", bytes.NewReader(body))
			So(err, ShouldBeNil)
			var created computePolicyResponse
			So(json.NewDecoder(resp.Body).Decode(&created), ShouldBeNil)
			resp.Body.Close()

			var summaryResp *http.Response
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				summaryResp, err = http.Get(srv.URL + "/policies/" + created.PolicyID + "/summary")
				So(err, ShouldBeNil)
				if summaryResp.StatusCode == http.StatusOK {
					break
				}
				summaryResp.Body.Close()
				time.Sleep(20 * time.Millisecond)
			}
			So(summaryResp.StatusCode, ShouldEqual, http.StatusOK)
			var summary policycache.Summary
			So(json.NewDecoder(summaryResp.Body).Decode(&summary), ShouldBeNil)
			summaryResp.Body.Close()

			validateBody, _ := json.Marshal(map[string]interface{}{"n": 2000, "seed": 7, "workers": 2})
			validateResp, err := http.Post(srv.URL+"/policies/"+created.PolicyID+"/validate", "application/json", bytes.NewReader(validateBody))
			So(err, ShouldBeNil)
			defer validateResp.Body.Close()
			So(validateResp.StatusCode, ShouldEqual, http.StatusOK)

			var report montecarlo.Report
			So(json.NewDecoder(validateResp.Body).Decode(&report), ShouldBeNil)
			// A hardcoded default cost model here would diverge sharply
			// from the non-default weights this policy was solved under.
			So(report.MeanCostPerSuccess, ShouldBeGreaterThan, 0)
			So(math.Abs(report.MeanCostPerSuccess-summary.ExpectedCostPerSuccess), ShouldBeLessThan, summary.ExpectedCostPerSuccess)
		})
	})
}
