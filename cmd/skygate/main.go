// Skygate is a caching gateway in front of the external weather, flight
// and geocoding APIs used by the flight tracking backend. It enforces
// per-provider daily budgets and pacing so free-tier quotas survive the
// day, and serves stale data rather than nothing when an upstream is
// down or the budget is spent.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/skygate.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("skygate", version)
		os.Exit(0)
	}

	// Provider credentials usually live in .env during development.
	// A missing file is fine; production sets real environment variables.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
