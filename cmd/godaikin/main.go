package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/godaikin/internal/auth"
	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/config"
	"github.com/joshp123/godaikin/internal/energy"
	"github.com/joshp123/godaikin/internal/logging"
	"github.com/joshp123/godaikin/internal/mqtt"
	"github.com/joshp123/godaikin/internal/publish"
	"github.com/joshp123/godaikin/internal/rate"
	"github.com/joshp123/godaikin/internal/rpc"
	"github.com/joshp123/godaikin/internal/server"
	"github.com/joshp123/godaikin/internal/telemetry"
	"github.com/joshp123/godaikin/plugins/daikin"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "check-auth":
			checkAuthMain(os.Args[2:])
			return
		case "dashboards":
			dashboardsMain(os.Args[2:])
			return
		case "help", "-h", "--help":
			usage()
			return
		}
	}
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "godaikin:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  godaikin [-config path]                  run the bridge
  godaikin check-auth [-config path]       log in and list units once
  godaikin dashboards -out dir             write Grafana dashboards`)
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	path := fs.String("config", envOrDefault("GODAIKIN_CONFIG", ""), "Path to config YAML (optional; env overrides apply)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config.Load(*path)
}

func run(args []string) error {
	fs := flag.NewFlagSet("godaikin", flag.ExitOnError)
	dashboardsDir := fs.String("dashboards-dir", "", "Write Grafana dashboards here at startup")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.WriteDashboards(*dashboardsDir, daikin.Dashboards()); err != nil {
		return err
	}

	api := newCloudClient(cfg, logger)
	topics := bridge.NewTopics(cfg.MQTT.Prefix, cfg.MQTT.DiscoveryPrefix)

	bus := mqtt.NewClient(mqtt.Config{
		BrokerURL: cfg.MQTT.BrokerURL(),
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		KeepAlive: cfg.MQTT.KeepAlive,
		Will: &mqtt.Will{
			Topic:    topics.BridgeAvailability(),
			Payload:  bridge.Availability(false),
			QoS:      1,
			Retained: true,
		},
	}, logger)
	if err := bus.Connect(ctx); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer bus.Close()

	sinks, closeSinks := openSinks(ctx, cfg, logger)
	defer closeSinks()

	controller := bridge.NewController(bridge.Config{
		Prefix:          cfg.MQTT.Prefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		RefreshInterval: cfg.Daikin.RefreshInterval,
	}, api, bus, publish.NewPublisher(bus, logger), energy.NewAccumulator(), logger, sinks...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		daikin.NewMetricsCollector(controller).WithHealth(api),
	)
	for _, group := range [][]prometheus.Collector{
		auth.MetricsCollectors(),
		rate.MetricsCollectors(),
		publish.MetricsCollectors(),
		bridge.MetricsCollectors(),
		server.MetricsCollectors(),
	} {
		registry.MustRegister(group...)
	}

	grpcServer, err := server.NewGRPCServer(cfg.GRPC.Addr, logger)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	if err := rpc.Register(grpcServer.Server, controller, logger); err != nil {
		return err
	}
	httpServer := server.NewHTTPServer(cfg.HTTP.Addr, server.NewRouter(server.Deps{
		Bridge:     controller,
		Cloud:      api,
		Registry:   registry,
		Dashboards: server.DashboardsMap(daikin.Dashboards()),
		Logger:     logger,
	}), logger)

	// The bridge decides the process lifetime; the servers follow it down.
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	var servers errgroup.Group
	servers.Go(func() error { return httpServer.Run(serveCtx) })
	servers.Go(func() error { return grpcServer.Run(serveCtx) })

	runErr := controller.Run(ctx)
	stopServing()
	if err := servers.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("server shutdown", zap.Error(err))
	}
	return runErr
}

func newCloudClient(cfg *config.Config, logger *zap.Logger) *daikin.Client {
	cognito := auth.NewCognito(cfg.Daikin.Region, cfg.Daikin.ClientID, &http.Client{Timeout: cfg.Daikin.RequestTimeout})
	tokens := auth.NewManager(cognito, cfg.Daikin.Username, cfg.Daikin.Password, logger)
	return daikin.NewClient(daikin.Config{
		BaseURL:        cfg.Daikin.BaseURL,
		Username:       cfg.Daikin.Username,
		RequestTimeout: cfg.Daikin.RequestTimeout,
		RatePerMinute:  cfg.Daikin.Rate.PerMinute,
		RatePerDay:     cfg.Daikin.Rate.PerDay,
	}, tokens, logger)
}

// openSinks starts the optional telemetry sinks. A sink that cannot start is
// logged and skipped.
func openSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]bridge.Sink, func()) {
	var (
		sinks   []bridge.Sink
		closers []func()
	)

	influx, err := telemetry.NewInflux(ctx, cfg.InfluxDB, logger)
	switch {
	case err == nil:
		sinks = append(sinks, influx)
		closers = append(closers, influx.Close)
	case !errors.Is(err, telemetry.ErrDisabled):
		logger.Warn("influxdb sink disabled", zap.Error(err))
	}

	mirror, err := telemetry.NewNATSMirror(cfg.NATS, logger)
	switch {
	case err == nil:
		sinks = append(sinks, mirror)
		closers = append(closers, func() { _ = mirror.Close() })
	case !errors.Is(err, telemetry.ErrDisabled):
		logger.Warn("nats mirror disabled", zap.Error(err))
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
