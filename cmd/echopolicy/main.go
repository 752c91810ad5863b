// Command echopolicy solves a single echo policy request from the command
// line and prints its summary as JSON, for scripting and local debugging
// without standing up the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/policycache"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
)

func main() {
	configPath := flag.String("config", "", "path to a catalogue YAML config (optional)")
	weightsFlag := flag.String("weights", "", "comma-separated buffId=weight pairs, e.g. crit_rate=2,crit_damage=1")
	target := flag.Float64("target", 0, "target score; 0 uses the catalogue default")
	scorerType := flag.String("scorer", string(scorer.Linear), "scorer variant: linear or fixed")
	echoWeight := flag.Float64("echoWeight", 1, "cost weight for the echo axis")
	tunerWeight := flag.Float64("tunerWeight", 1, "cost weight for the tuner axis")
	expWeight := flag.Float64("expWeight", 0.001, "cost weight for the exp axis")
	refund := flag.Float64("refund", 0, "exp refund ratio on abandon; 0 uses the catalogue default")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.FromYAML(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	cat, err := catalog.New(cfg)
	if err != nil {
		log.Fatalf("building catalogue: %v", err)
	}

	weights, err := parseWeights(*weightsFlag)
	if err != nil {
		log.Fatalf("parsing -weights: %v", err)
	}

	targetScore := *target
	if targetScore == 0 {
		targetScore = cat.DefaultTarget
	}
	refundRatio := *refund
	if refundRatio == 0 {
		refundRatio = cat.DefaultRefund
	}

	cost, err := costmodel.New(costmodel.Weights{Echo: *echoWeight, Tuner: *tunerWeight, Exp: *expWeight}, refundRatio)
	if err != nil {
		log.Fatalf("building cost model: %v", err)
	}

	cache := policycache.New(cat, policycache.DefaultBound)
	handle, err := cache.Compute(context.Background(), policycache.Request{
		Weights: weights,
		Target:  targetScore,
		Scorer:  scorer.Variant(*scorerType),
		Cost:    cost,
	})
	if err != nil {
		log.Fatalf("compute_policy: %v", err)
	}

	summary, err := handle.Summary()
	if err != nil {
		log.Fatalf("summary: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("encoding summary: %v", err)
	}
}

func parseWeights(raw string) (catalog.WeightVector, error) {
	weights := catalog.WeightVector{}
	if raw == "" {
		return weights, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, err
		}
		weights[catalog.BuffID(strings.TrimSpace(kv[0]))] = v
	}
	return weights, nil
}
