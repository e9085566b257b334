// Gray Logic Galaxie bridge
//
// This is the main entry point of the Galaxie bridge. It polls the Galaxie
// motorsport API and exposes previous, next and live race data to the Gray
// Logic host as devices over MQTT.
//
// Configuration is read from the YAML file named by GALAXIE_CONFIG
// (default configs/galaxie.yaml), falling back to built-in defaults when the
// file does not exist. A .env file in the working directory is loaded first.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/gray-logic-galaxie/migrations"

	"github.com/nerrad567/gray-logic-galaxie/internal/api"
	"github.com/nerrad567/gray-logic-galaxie/internal/bridges/galaxie"
	"github.com/nerrad567/gray-logic-galaxie/internal/device"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/live"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/reconcile"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/galaxie.yaml"

// shutdownTimeout bounds the removal of live devices on exit.
const shutdownTimeout = 15 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is sequential by nature
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Galaxie bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to load .env file", "error", err)
	}

	cfg, err := loadConfig(getConfigPath(), log)
	if err != nil {
		return err
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Initialise device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log.With("component", "device"))
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var metrics coordinator.Metrics
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Upstream client and coordinator
	feedClient, err := feed.New(feed.Options{
		BaseURL:   cfg.Galaxie.BaseURL,
		Timeout:   cfg.Galaxie.GetRequestTimeout(),
		UserAgent: cfg.Galaxie.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("creating feed client: %w", err)
	}

	coord, err := coordinator.New(coordinator.Options{
		Fetcher:     feedClient,
		NewStreamer: streamerFactory(feedClient, cfg.Galaxie, log.With("component", "live")),
		Stream:      cfg.Galaxie.Stream,
		Metrics:     metrics,
		Logger:      log.With("component", "coordinator"),
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}
	defer coord.Stop()

	// Host side: bridge and reconciler
	bridge, err := galaxie.NewBridge(galaxie.Options{
		MQTT:           mqttClient,
		Registry:       deviceRegistry,
		Source:         coord,
		Version:        version,
		HealthInterval: cfg.Galaxie.GetHealthInterval(),
		Logger:         log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer bridge.Stop()

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		go func() {
			if repErr := bridge.Republish(ctx); repErr != nil {
				log.Warn("republish after reconnect incomplete", "error", repErr)
			}
		}()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	reconciler := reconcile.New(bridge, log.With("component", "reconcile"))
	if bootErr := reconciler.Bootstrap(ctx); bootErr != nil {
		log.Warn("some fixed devices could not be created; retrying on next snapshot", "error", bootErr)
	}
	coord.Subscribe(func(snap *model.Snapshot) error {
		res := reconciler.OnSnapshot(ctx, snap)
		if len(res.Failures) > 0 {
			return fmt.Errorf("%d host instructions failed", len(res.Failures))
		}
		return nil
	})

	// HTTP API
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.With("component", "api"),
		Registry: deviceRegistry,
		Source:   coord,
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if startErr := coord.Start(ctx); startErr != nil {
		return fmt.Errorf("starting coordinator: %w", startErr)
	}
	log.Info("Galaxie bridge started",
		"base_url", cfg.Galaxie.BaseURL,
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()
	log.Info("shutdown signal received")

	// Stop polling before tearing down the host side so no snapshot
	// arrives mid-shutdown.
	coord.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutErr := reconciler.Shutdown(shutdownCtx); shutErr != nil {
		log.Warn("failed to remove some live devices", "error", shutErr)
	}

	log.Info("Galaxie bridge stopped")
	return nil
}

// loadConfig reads the configuration file, using defaults when it does not exist.
func loadConfig(path string, log *logging.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		log.Info("configuration loaded", "path", path)
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log.Warn("config file not found, using defaults", "path", path)
	cfg, err = config.Default()
	if err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	return cfg, nil
}

// getConfigPath returns the configuration file path.
// Checks GALAXIE_CONFIG env var first, then falls back to default.
func getConfigPath() string {
	if path := os.Getenv("GALAXIE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// streamerFactory builds push streamers against the feed client's stream URLs.
func streamerFactory(fc *feed.Client, cfg config.GalaxieConfig, log *logging.Logger) func(coordinator.StreamHandlers) (coordinator.Streamer, error) {
	return func(h coordinator.StreamHandlers) (coordinator.Streamer, error) {
		s, err := live.New(live.Options{
			URL:         fc.StreamURL,
			UserAgent:   cfg.UserAgent,
			OnRunDetail: h.OnRunDetail,
			OnVehicles:  h.OnVehicles,
			OnState:     h.OnState,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
