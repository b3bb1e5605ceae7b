package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnordin/composite-hass/internal/app"
	"github.com/mnordin/composite-hass/internal/config"
	"github.com/mnordin/composite-hass/internal/mqtt"
	"github.com/mnordin/composite-hass/internal/store"
	"github.com/sirupsen/logrus"
)

// version is injected at build time via ldflags
var version = "dev"

func main() {
	cfg := parseFlags()

	logger := setupLogger(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logrus.Fields{
		"version":   version,
		"client_id": cfg.ClientID,
		"trackers":  cfg.TrackersFile,
	}).Info("Starting composite-hass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Core clients ---------------------------------------------------------------
	mqttClient, err := mqtt.NewClient(cfg.MQTTUrl, cfg.ClientID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MQTT client")
	}
	defer mqttClient.Disconnect(250)

	var st *store.Store
	if cfg.HasStore() {
		st, err = store.Open(cfg.StorePath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open state store")
		}
		defer st.Close()
	} else {
		logger.Warn("State restore disabled; trackers start empty after restart")
	}

	// Run application ------------------------------------------------------------
	if err := app.Run(ctx, cfg, mqttClient, st, logger); err != nil {
		logger.WithError(err).Error("composite-hass exited with error")
	}

	logger.Info("composite-hass stopped")
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags() *config.Config {
	cfg := config.GetDefaultConfig()

	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.StringVar(&cfg.MQTTUrl, "mqtt-url", getEnv("COMPOSITE_HASS_MQTT_URL", cfg.MQTTUrl), "MQTT URL")
	flag.StringVar(&cfg.DiscoveryPrefix, "discovery-prefix", getEnv("COMPOSITE_HASS_DISCOVERY_PREFIX", cfg.DiscoveryPrefix), "HA discovery prefix")
	flag.StringVar(&cfg.SourcePrefix, "source-prefix", getEnv("COMPOSITE_HASS_SOURCE_PREFIX", cfg.SourcePrefix), "Topic prefix for source entity states")
	flag.StringVar(&cfg.ClientID, "client-id", getEnv("COMPOSITE_HASS_CLIENT_ID", cfg.ClientID), "MQTT client identifier")
	flag.StringVar(&cfg.TrackersFile, "trackers", getEnv("COMPOSITE_HASS_TRACKERS", cfg.TrackersFile), "Trackers/zones YAML file")
	flag.StringVar(&cfg.StorePath, "store", getEnv("COMPOSITE_HASS_STORE", cfg.StorePath), "State restore database path (empty disables restore)")
	flag.BoolVar(&cfg.Verbose, "verbose", getEnv("COMPOSITE_HASS_VERBOSE", "false") == "true", "Verbose logging")

	flag.Parse()

	if *showVersion {
		fmt.Printf("composite-hass %s\n", version)
		os.Exit(0)
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
