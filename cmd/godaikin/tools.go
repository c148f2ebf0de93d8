package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/logging"
	"github.com/joshp123/godaikin/internal/server"
	"github.com/joshp123/godaikin/plugins/daikin"
)

// checkAuthMain logs in with the configured account and prints the units the
// cloud returns. Nothing is published.
func checkAuthMain(args []string) {
	fs := flag.NewFlagSet("check-auth", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout for login and listing")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		fatal("check-auth", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: "console"})
	if err != nil {
		fatal("check-auth", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	units, err := newCloudClient(cfg, logger).ListDevices(ctx)
	if err != nil {
		fatal("check-auth", err)
	}
	views := make([]bridge.UnitView, 0, len(units))
	for _, unit := range units {
		views = append(views, bridge.NewUnitView(unit, 0))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(views); err != nil {
		fatal("check-auth", err)
	}
}

func dashboardsMain(args []string) {
	fs := flag.NewFlagSet("dashboards", flag.ExitOnError)
	out := fs.String("out", "", "Directory to write dashboards into")
	_ = fs.Parse(args)
	if *out == "" {
		usage()
		os.Exit(2)
	}
	if err := server.WriteDashboards(*out, daikin.Dashboards()); err != nil {
		fatal("dashboards", err)
	}
}

func fatal(cmd string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
	os.Exit(1)
}
