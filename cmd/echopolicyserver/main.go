// Command echopolicyserver serves the echo policy solver's HTTP/websocket
// API over a static buff catalogue, optionally customised via a YAML
// config file.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/config"
	"github.com/2-07665/ww-echo-policy-calculator/internal/httpapi"
	"github.com/2-07665/ww-echo-policy-calculator/internal/policycache"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	configPath := flag.String("config", "", "path to a catalogue YAML config (optional)")
	cacheBound := flag.Int("cacheBound", policycache.DefaultBound, "max solved policies retained in the LRU cache")
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

	cache := policycache.New(cat, *cacheBound)
	api := httpapi.New(cat, cache)

	log.Printf("echopolicyserver listening on %s", *addr)
	if err := http.ListenAndServe(*addr, api.Router()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
