// Command atvbridge runs the Gray Logic Android TV and Fire TV bridge.
//
// It keeps one ADB connection per configured device, publishes each device
// as a media player over MQTT and serves the setup flows and player
// controls over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/gray-logic-androidtv/internal/adb"
	"github.com/nerrad567/gray-logic-androidtv/internal/api"
	"github.com/nerrad567/gray-logic-androidtv/internal/bridges/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/discovery"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
	"github.com/nerrad567/gray-logic-androidtv/internal/flow"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-androidtv/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge together and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Android TV bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// A missing .env is normal; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to load .env file", "error", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	// ── Storage ───────────────────────────────────────────────────────

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := entry.NewRegistry(entry.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading config entries: %w", err)
	}
	log.Info("config entries loaded", "entries", len(registry.List()))

	keyPath := cfg.DefaultKeyPath()
	if created, keyErr := adb.EnsureKey(keyPath); keyErr != nil {
		return fmt.Errorf("preparing ADB key: %w", keyErr)
	} else if created {
		log.Info("generated ADB key", "path", keyPath)
	}

	// ── Transport ─────────────────────────────────────────────────────

	will, err := androidtv.Will(cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("building MQTT will: %w", err)
	}
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT, will)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var telemetry androidtv.Telemetry
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB, log)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// ── Bridge ────────────────────────────────────────────────────────

	server := adb.ServerConfig{Host: cfg.ADB.ServerHost, Port: cfg.ADB.ServerPort, PathToAdb: cfg.ADB.Binary}
	connectCfg := entry.ConnectConfig{
		DefaultKeyPath:  keyPath,
		LocalServerHost: cfg.ADB.ServerHost,
		LocalServerPort: cfg.ADB.ServerPort,
		ADBPath:         cfg.ADB.Binary,
		ConnectTimeout:  cfg.GetConnectTimeout(),
		CommandTimeout:  cfg.GetCommandTimeout(),
		LockTimeout:     cfg.GetLockTimeout(),
		Logger:          log,
	}

	bridge, err := androidtv.NewBridge(androidtv.BridgeOptions{
		Config:     cfg,
		Version:    version,
		MQTTClient: mqttClient,
		Connect:    connectCfg,
		Entries:    registry,
		Telemetry:  telemetry,
		Watch: func(ctx context.Context) (<-chan adb.StateChange, error) {
			return adb.Watch(ctx, server)
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer bridge.Stop()

	// ── Setup flows and API ───────────────────────────────────────────

	scanner := discovery.NewScanner(cfg.Discovery, log)
	flows, err := flow.NewManager(flow.Config{
		Store:      registry,
		Checker:    flow.ConnectChecker(connectCfg),
		Listener:   bridge,
		Discoverer: scanner,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating flow manager: %w", err)
	}

	apiDeps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Entries:   registry,
		Players:   bridge,
		Flows:     flows,
		Discovery: scanner,
		MQTT:      mqttClient,
		DB:        db,
		Version:   version,
	}
	if influxClient != nil {
		apiDeps.Telemetry = influxClient
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred closes run in reverse: API, bridge, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns ATVBRIDGE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("ATVBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. influxClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
