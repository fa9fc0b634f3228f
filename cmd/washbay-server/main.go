package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/washbay-server/washbay-server-pro/internal/api"
	"github.com/washbay-server/washbay-server-pro/internal/backend"
	"github.com/washbay-server/washbay-server-pro/internal/broadcast"
	"github.com/washbay-server/washbay-server-pro/internal/config"
	"github.com/washbay-server/washbay-server-pro/internal/core"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/washbay-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Broadcast gateway
	var gateway core.Gateway = broadcast.NewNopGateway()
	var natsGateway *broadcast.NATSGateway

	switch cfg.Broadcast.Driver {
	case "nats":
		if cfg.NATS.URL == "" {
			log.Warn().Msg("NATS not configured, broadcasts disabled")
			break
		}
		natsGateway, err = broadcast.NewNATSGateway(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsGateway.Close()
		gateway = natsGateway

	case "mqtt":
		mqttGateway, err := broadcast.NewMQTTGateway(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
		}
		defer mqttGateway.Close()
		gateway = mqttGateway

	case "none", "":
		log.Info().Msg("Broadcasts disabled")

	default:
		log.Fatal().Str("driver", cfg.Broadcast.Driver).Msg("Unknown broadcast driver")
	}

	// Backend client and domain services
	backendClient := backend.NewHTTPClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout)
	configEngine := core.NewConfigurationEngine(store, gateway)
	registry := core.NewDeviceRegistry(store, backendClient, gateway, configEngine)
	sessionManager := core.NewSessionManager(store, gateway)

	// REST API server
	var apiServer *api.RESTServer
	if natsGateway != nil {
		apiServer = api.NewRESTServer(cfg, store, registry, sessionManager, configEngine, natsGateway.Conn())
	} else {
		apiServer = api.NewRESTServer(cfg, store, registry, sessionManager, configEngine, nil)
	}

	// WaitGroup for services
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Periodic status sweep
	var sweeper *core.StatusSweeper
	if cfg.Sweeper.Enabled {
		sweeper = core.NewStatusSweeper(store, registry, cfg.Sweeper.Schedule)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start status sweeper")
		}
	}

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Wash bay server stopped")
}
