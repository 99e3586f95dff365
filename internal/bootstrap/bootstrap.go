package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/global-data-controller/countryseed/internal/config"
	"github.com/global-data-controller/countryseed/internal/logging"
	"github.com/global-data-controller/countryseed/internal/telemetry"
)

// Bootstrap initializes the ambient components a run depends on
type Bootstrap struct {
	Config    *config.Config
	Logger    logging.Logger
	Telemetry *telemetry.Telemetry
}

// New creates a new bootstrap instance
func New() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and sets up logging and telemetry. flags
// may be nil; when set, changed flags override the loaded configuration.
func (b *Bootstrap) Initialize(ctx context.Context, configFile string, flags *pflag.FlagSet) error {
	cfg, err := config.LoadWithFlags(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	b.Config = cfg

	logger, err := b.initLogging(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	b.Logger = logger

	logger.Debug(ctx, "Configuration loaded",
		zap.String("config_file", configFile),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("data_source", cfg.Data.Source))

	tel, err := b.initTelemetry(cfg.Telemetry, logger.Zap())
	if err != nil {
		logger.Error(ctx, "Failed to initialize telemetry", zap.Error(err))
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	b.Telemetry = tel

	if cfg.Telemetry.Enabled {
		logger.Debug(ctx, "Telemetry initialized",
			zap.String("service_name", cfg.Telemetry.ServiceName),
			zap.Int("prometheus_port", cfg.Telemetry.PrometheusPort),
			zap.String("pushgateway_url", cfg.Telemetry.PushgatewayURL),
			zap.Float64("sample_rate", cfg.Telemetry.SampleRate))
	}

	return nil
}

// Start starts all initialized components
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.Logger == nil {
		return fmt.Errorf("bootstrap not initialized")
	}

	if b.Telemetry != nil {
		if err := b.Telemetry.Start(ctx); err != nil {
			b.Logger.Error(ctx, "Failed to start telemetry", zap.Error(err))
			return fmt.Errorf("failed to start telemetry: %w", err)
		}
	}

	return nil
}

// Stop flushes telemetry and the logger
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.Logger == nil {
		return nil
	}

	if b.Telemetry != nil {
		if err := b.Telemetry.Stop(ctx); err != nil {
			b.Logger.Warn(ctx, "Failed to stop telemetry", zap.Error(err))
			return fmt.Errorf("failed to stop telemetry: %w", err)
		}
	}

	// Sync on a terminal stderr reports EINVAL on some platforms.
	_ = b.Logger.Sync()

	return nil
}

func (b *Bootstrap) initLogging(cfg config.LoggingConfig) (logging.Logger, error) {
	loggingConfig := logging.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		OutputPath: cfg.OutputPath,
		ErrorPath:  cfg.ErrorPath,
	}

	if err := logging.InitGlobalLogger(loggingConfig); err != nil {
		return nil, err
	}

	return logging.GetLogger(), nil
}

func (b *Bootstrap) initTelemetry(cfg config.TelemetryConfig, logger *zap.Logger) (*telemetry.Telemetry, error) {
	telemetryConfig := telemetry.TelemetryConfig{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		PrometheusPort: cfg.PrometheusPort,
		PushgatewayURL: cfg.PushgatewayURL,
		JaegerEndpoint: cfg.JaegerEndpoint,
		SampleRate:     cfg.SampleRate,
	}

	if err := telemetry.InitGlobalTelemetry(telemetryConfig, logger); err != nil {
		return nil, err
	}

	return telemetry.GetGlobalTelemetry(), nil
}

// GetConfig returns the loaded configuration
func (b *Bootstrap) GetConfig() *config.Config {
	return b.Config
}

// GetLogger returns the initialized logger
func (b *Bootstrap) GetLogger() logging.Logger {
	return b.Logger
}

// GetTelemetry returns the initialized telemetry
func (b *Bootstrap) GetTelemetry() *telemetry.Telemetry {
	return b.Telemetry
}
