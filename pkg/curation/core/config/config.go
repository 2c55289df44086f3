package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// RetryConfig holds backoff settings for transient repository errors
// during bulk item application.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of attempts per item.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval is the maximum backoff interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor is the backoff multiplier.
}

// BulkConfig holds configuration for the bulk execution engine.
type BulkConfig struct {
	// MaxBatchSize is the maximum number of target ids a single request may carry.
	MaxBatchSize int `yaml:"max_batch_size"`
	// SyncThreshold is the largest batch executed synchronously before responding.
	SyncThreshold int `yaml:"sync_threshold"`
	// WorkerCount is the size of the per-execution worker pool.
	WorkerCount int `yaml:"worker_count"`
	// RetentionMinutes is how long terminal executions remain pollable in memory.
	RetentionMinutes int `yaml:"retention_minutes"`
	// Retry is the item-level retry configuration.
	Retry RetryConfig `yaml:"retry"`
}

// GuardConfig holds rate and quota limits for manual curation calls.
type GuardConfig struct {
	// StandardLimit is the number of single-page actions allowed per caller per window.
	StandardLimit int `yaml:"standard_limit"`
	// StandardWindowSeconds is the window length for single-page actions.
	StandardWindowSeconds int `yaml:"standard_window_seconds"`
	// BulkLimit is the number of bulk submissions allowed per caller per window.
	BulkLimit int `yaml:"bulk_limit"`
	// BulkWindowSeconds is the window length for bulk submissions.
	BulkWindowSeconds int `yaml:"bulk_window_seconds"`
	// ActionCaps maps an action name to its per-batch target cap. Actions
	// without an entry fall back to MaxBatchSize.
	ActionCaps map[string]int `yaml:"action_caps"`
}

// OverrideConfig holds settings for single-page override handling.
type OverrideConfig struct {
	// RepositoryTimeoutSeconds bounds the repository round trips of one
	// override call. Zero disables the bound.
	RepositoryTimeoutSeconds int `yaml:"repository_timeout_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Address is the listen address (e.g., ":8080").
	Address string `yaml:"address"`
	// ReadTimeoutSeconds bounds request header reads.
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig holds the persistence connection settings.
type DatabaseConfig struct {
	// Driver selects the dialector: "sqlite", "mysql" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn"`
}

// AuditConfig holds audit sink settings.
type AuditConfig struct {
	// BufferSize is the capacity of the asynchronous event channel.
	BufferSize int `yaml:"buffer_size"`
}

// ArchiveConfig holds settings for the terminal-execution result archiver.
type ArchiveConfig struct {
	// Enabled toggles writing Parquet result files for terminal executions.
	Enabled bool `yaml:"enabled"`
	// Directory is where archive files are written.
	Directory string `yaml:"directory"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector endpoint. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// ServiceName is the reported service name.
	ServiceName string `yaml:"service_name"`
}

// CurationConfig holds all configuration under the "curation" top-level key.
type CurationConfig struct {
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Bulk contains the bulk execution engine configuration.
	Bulk BulkConfig `yaml:"bulk"`
	// Guard contains rate and quota limits.
	Guard GuardConfig `yaml:"guard"`
	// Override contains single-page override settings.
	Override OverrideConfig `yaml:"override"`
	// Server contains HTTP server settings.
	Server ServerConfig `yaml:"server"`
	// Database contains persistence settings.
	Database DatabaseConfig `yaml:"database"`
	// Audit contains audit sink settings.
	Audit AuditConfig `yaml:"audit"`
	// Archive contains result archiver settings.
	Archive ArchiveConfig `yaml:"archive"`
	// Telemetry contains tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Curation contains the top-level configuration for the curation service.
	Curation CurationConfig `yaml:"curation"`
}

// NewConfig returns a Config populated with defaults. YAML and environment
// overrides are layered on top by the loader.
func NewConfig() *Config {
	return &Config{
		Curation: CurationConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Bulk: BulkConfig{
				MaxBatchSize:     500,
				SyncThreshold:    20,
				WorkerCount:      8,
				RetentionMinutes: 60,
				Retry: RetryConfig{
					MaxAttempts:     3,
					InitialInterval: 50,
					MaxInterval:     1000,
					Factor:          2.0,
				},
			},
			Guard: GuardConfig{
				StandardLimit:         120,
				StandardWindowSeconds: 60,
				BulkLimit:             10,
				BulkWindowSeconds:     60,
				// Destructive status rewrites carry tighter caps than
				// cheap metadata updates.
				ActionCaps: map[string]int{
					"reset_status":    100,
					"restore_filter":  100,
					"override_filter": 200,
					"manual_process":  300,
					"manual_skip":     300,
					"update_priority": 500,
				},
			},
			Override: OverrideConfig{
				RepositoryTimeoutSeconds: 5,
			},
			Server: ServerConfig{
				Address:                ":8080",
				ReadTimeoutSeconds:     15,
				ShutdownTimeoutSeconds: 10,
			},
			Database: DatabaseConfig{
				Driver: "sqlite",
				DSN:    "curation.db",
			},
			Audit: AuditConfig{
				BufferSize: 256,
			},
			Archive: ArchiveConfig{
				Enabled:   false,
				Directory: "archive",
			},
			Telemetry: TelemetryConfig{
				ServiceName: "chrono-curation",
			},
		},
	}
}
