// Package config provides configuration loading and management.
package config

// Config represents the ~/.reef/config.yaml config file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Engine  EngineConfig  `yaml:"engine"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level sets the logging level (trace, debug, info, warn, error).
	Level string `yaml:"level"`
	// Pretty enables human-readable console output.
	Pretty bool `yaml:"pretty"`
}

// EngineConfig contains debug-engine limits.
type EngineConfig struct {
	// TableBuckets is the module table's bucket count. 0 uses the default.
	TableBuckets int `yaml:"table_buckets,omitempty"`
	// MaxTrackedModules caps the number of live shadow records. 0 is
	// unlimited; a full table fails module-load tracking with a resource
	// error.
	MaxTrackedModules int `yaml:"max_tracked_modules,omitempty"`
}
