package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.uber.org/fx"

	exception "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/exception"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from defaults, the embedded YAML, and
// environment variables, in increasing order of precedence. It is intended
// to be called only once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		var yamlConfig Config
		if err := yaml.Unmarshal(embeddedConfig, &yamlConfig); err != nil {
			return nil, exception.New(moduleName, exception.CodeInvalidParameter, "failed to unmarshal embedded config", err, false)
		}
		mergeConfig(cfg, &yamlConfig)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.New(moduleName, exception.CodeInvalidParameter, "failed to load config from environment variables", err, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also applies the configured log level before any other component starts.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Curation.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Curation.System.Logging.Level)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// validate rejects configurations that would make the engine misbehave.
func (c *Config) validate() error {
	bulk := c.Curation.Bulk
	if bulk.MaxBatchSize <= 0 {
		return exception.Newf(moduleName, exception.CodeInvalidParameter, "bulk.max_batch_size must be positive, got %d", bulk.MaxBatchSize)
	}
	if bulk.WorkerCount <= 0 {
		return exception.Newf(moduleName, exception.CodeInvalidParameter, "bulk.worker_count must be positive, got %d", bulk.WorkerCount)
	}
	if bulk.SyncThreshold < 0 || bulk.SyncThreshold > bulk.MaxBatchSize {
		return exception.Newf(moduleName, exception.CodeInvalidParameter, "bulk.sync_threshold must be within [0, %d], got %d", bulk.MaxBatchSize, bulk.SyncThreshold)
	}
	switch c.Curation.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return exception.Newf(moduleName, exception.CodeInvalidParameter, "database.driver %q is not supported", c.Curation.Database.Driver)
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero values in sourceConfig overwrite the corresponding defaults.
func mergeConfig(destConfig, sourceConfig *Config) {
	dest, source := &destConfig.Curation, &sourceConfig.Curation

	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}

	mergeBulkConfig(&dest.Bulk, &source.Bulk)
	mergeGuardConfig(&dest.Guard, &source.Guard)

	if source.Override.RepositoryTimeoutSeconds != 0 {
		dest.Override.RepositoryTimeoutSeconds = source.Override.RepositoryTimeoutSeconds
	}

	if source.Server.Address != "" {
		dest.Server.Address = source.Server.Address
	}
	if source.Server.ReadTimeoutSeconds != 0 {
		dest.Server.ReadTimeoutSeconds = source.Server.ReadTimeoutSeconds
	}
	if source.Server.ShutdownTimeoutSeconds != 0 {
		dest.Server.ShutdownTimeoutSeconds = source.Server.ShutdownTimeoutSeconds
	}

	if source.Database.Driver != "" {
		dest.Database.Driver = source.Database.Driver
	}
	if source.Database.DSN != "" {
		dest.Database.DSN = source.Database.DSN
	}

	if source.Audit.BufferSize != 0 {
		dest.Audit.BufferSize = source.Audit.BufferSize
	}

	if source.Archive.Enabled {
		dest.Archive.Enabled = true
	}
	if source.Archive.Directory != "" {
		dest.Archive.Directory = source.Archive.Directory
	}

	if source.Telemetry.OTLPEndpoint != "" {
		dest.Telemetry.OTLPEndpoint = source.Telemetry.OTLPEndpoint
	}
	if source.Telemetry.ServiceName != "" {
		dest.Telemetry.ServiceName = source.Telemetry.ServiceName
	}
}

// mergeBulkConfig merges source into dest.
func mergeBulkConfig(dest, source *BulkConfig) {
	if source.MaxBatchSize != 0 {
		dest.MaxBatchSize = source.MaxBatchSize
	}
	if source.SyncThreshold != 0 {
		dest.SyncThreshold = source.SyncThreshold
	}
	if source.WorkerCount != 0 {
		dest.WorkerCount = source.WorkerCount
	}
	if source.RetentionMinutes != 0 {
		dest.RetentionMinutes = source.RetentionMinutes
	}
	if source.Retry.MaxAttempts != 0 {
		dest.Retry.MaxAttempts = source.Retry.MaxAttempts
	}
	if source.Retry.InitialInterval != 0 {
		dest.Retry.InitialInterval = source.Retry.InitialInterval
	}
	if source.Retry.MaxInterval != 0 {
		dest.Retry.MaxInterval = source.Retry.MaxInterval
	}
	if source.Retry.Factor != 0 {
		dest.Retry.Factor = source.Retry.Factor
	}
}

// mergeGuardConfig merges source into dest.
func mergeGuardConfig(dest, source *GuardConfig) {
	if source.StandardLimit != 0 {
		dest.StandardLimit = source.StandardLimit
	}
	if source.StandardWindowSeconds != 0 {
		dest.StandardWindowSeconds = source.StandardWindowSeconds
	}
	if source.BulkLimit != 0 {
		dest.BulkLimit = source.BulkLimit
	}
	if source.BulkWindowSeconds != 0 {
		dest.BulkWindowSeconds = source.BulkWindowSeconds
	}
	if source.ActionCaps != nil {
		if dest.ActionCaps == nil {
			dest.ActionCaps = make(map[string]int)
		}
		for key, value := range source.ActionCaps {
			dest.ActionCaps[key] = value
		}
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables, using the "yaml" tag to derive the variable name.
// Example: curation.bulk.worker_count is overridden by CURATION_BULK_WORKER_COUNT.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
