// Package config provides core configuration structures and loading for the
// curation service. This module defines Fx providers for configuration-related
// components.
package config

import "go.uber.org/fx"

// NewBulkConfigProvider extracts and provides *BulkConfig from *Config.
func NewBulkConfigProvider(cfg *Config) *BulkConfig {
	return &cfg.Curation.Bulk
}

// NewGuardConfigProvider extracts and provides *GuardConfig from *Config.
func NewGuardConfigProvider(cfg *Config) *GuardConfig {
	return &cfg.Curation.Guard
}

// NewDatabaseConfigProvider extracts and provides *DatabaseConfig from *Config.
func NewDatabaseConfigProvider(cfg *Config) *DatabaseConfig {
	return &cfg.Curation.Database
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewBulkConfigProvider),
	fx.Provide(NewGuardConfigProvider),
	fx.Provide(NewDatabaseConfigProvider),
)
