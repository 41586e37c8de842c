// This file orchestrates the slides worker, loading configuration and running
// the NATS consume loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/pipeline"
)

// ErrConfigURLMissing is returned when SLIDES_CONFIG_URL is not set.
var ErrConfigURLMissing = errors.New("SLIDES_CONFIG_URL is not set")

const configURLEnv = "SLIDES_CONFIG_URL"

// Config represents the overall configuration structure for the slides worker.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Paths      PathsConfig      `toml:"paths"`
	Conversion ConversionConfig `toml:"conversion"`
}

// PathsConfig holds common path configurations.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// NATSConfig holds NATS-specific configuration for the slides worker.
type NATSConfig struct {
	URL                    string `toml:"url"`
	RequestStreamName      string `toml:"request_stream_name"`
	RequestConsumerName    string `toml:"request_consumer_name"`
	RequestSubject         string `toml:"request_subject"`
	SourceObjectStore      string `toml:"source_object_store_bucket"`
	ArtifactStreamName     string `toml:"artifact_stream_name"`
	ArtifactCreatedSubject string `toml:"artifact_created_subject"`
	ArtifactObjectStore    string `toml:"artifact_object_store_bucket"`
}

// ConversionConfig holds defaults applied to every request.
type ConversionConfig struct {
	DPI    int  `toml:"dpi"`
	Hidden bool `toml:"hidden"`
}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)

	runErr := run(ctx)

	stop()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Printf("Fatal application error: %v", runErr)
		os.Exit(1)
	}

	log.Println("Application shut down gracefully.")
}

// run initializes all components and starts the message processing loop.
func run(ctx context.Context) error {
	cfg, appLogger, setupErr := setupConfigAndLogger()
	if setupErr != nil {
		return setupErr
	}

	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	natsConnection, connErr := nats.Connect(cfg.NATS.URL)
	if connErr != nil {
		return fmt.Errorf("failed to connect to NATS: %w", connErr)
	}
	defer natsConnection.Close()

	appLogger.Info("Connected to NATS server at %s", natsConnection.ConnectedUrl())

	jetStream, jsErr := jetstream.New(natsConnection)
	if jsErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	if jsSetupErr := setupJetStream(ctx, jetStream, cfg); jsSetupErr != nil {
		return fmt.Errorf("failed to set up JetStream resources: %w", jsSetupErr)
	}

	consumer, consumerErr := jetStream.Consumer(ctx, cfg.NATS.RequestStreamName, cfg.NATS.RequestConsumerName)
	if consumerErr != nil {
		return fmt.Errorf("failed to get consumer: %w", consumerErr)
	}

	sourceStore, sourceErr := jetStream.ObjectStore(ctx, cfg.NATS.SourceObjectStore)
	if sourceErr != nil {
		return fmt.Errorf("failed to bind to source object store: %w", sourceErr)
	}

	artifactStore, artifactErr := jetStream.ObjectStore(ctx, cfg.NATS.ArtifactObjectStore)
	if artifactErr != nil {
		return fmt.Errorf("failed to bind to artifact object store: %w", artifactErr)
	}

	w := &worker{
		sources:   sourceStore,
		artifacts: artifactStore,
		publisher: jetStream,
		converter: pipeline.New(&pipeline.Options{
			ProgressBarOutput: os.Stdout,
			Launch:            host.Launch,
			Host:              host.Options{Hidden: cfg.Conversion.Hidden},
		}, appLogger),
		cfg: cfg,
		log: appLogger,
	}

	appLogger.Info("Worker is running, listening for jobs on '%s'...", cfg.NATS.RequestSubject)

	return processMessages(ctx, consumer, w)
}

// setupConfigAndLogger loads .env, fetches configuration and sets up the main
// application logger.
func setupConfigAndLogger() (*Config, *logger.Logger, error) {
	if envErr := godotenv.Load(); envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env: %w", envErr)
	}

	configURL := os.Getenv(configURLEnv)
	if configURL == "" {
		return nil, nil, ErrConfigURLMissing
	}

	tempLogger, tempLoggerErr := logger.New(os.TempDir(), "slides-worker-bootstrap.log")
	if tempLoggerErr != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", tempLoggerErr)
	}

	defer func() {
		if closeErr := tempLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close temp logger: %v", closeErr)
		}
	}()

	var cfg Config

	if loadErr := configurator.LoadFromURL(configURL, &cfg, tempLogger); loadErr != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from URL %s: %w", configURL, loadErr)
	}

	log.Printf("Configuration loaded from %s", configURL)
	applyConfigDefaults(&cfg)

	appLogger, loggerErr := logger.New(cfg.Paths.BaseLogsDir, "slides-worker.log")
	if loggerErr != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", loggerErr)
	}

	return &cfg, appLogger, nil
}

// applyConfigDefaults fills names left empty in the fetched configuration.
func applyConfigDefaults(cfg *Config) {
	defaults := []struct {
		field *string
		value string
	}{
		{&cfg.NATS.URL, nats.DefaultURL},
		{&cfg.NATS.RequestStreamName, "SLIDES_REQUESTS"},
		{&cfg.NATS.RequestConsumerName, "slides-worker"},
		{&cfg.NATS.RequestSubject, "slides.conversion.requested"},
		{&cfg.NATS.SourceObjectStore, "slides-sources"},
		{&cfg.NATS.ArtifactStreamName, "SLIDES_ARTIFACTS"},
		{&cfg.NATS.ArtifactCreatedSubject, "slides.artifact.created"},
		{&cfg.NATS.ArtifactObjectStore, "slides-artifacts"},
		{&cfg.Paths.BaseLogsDir, "logs"},
	}

	for _, entry := range defaults {
		if *entry.field == "" {
			*entry.field = entry.value
		}
	}
}
