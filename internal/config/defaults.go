package config

// DefaultDir is the config directory under the user's home.
const DefaultDir = ".reef"

// ConfigFile is the config file name inside DefaultDir.
const ConfigFile = "config.yaml"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Engine: EngineConfig{
			TableBuckets:      0, // DefaultBucketCount
			MaxTrackedModules: 0, // unlimited
		},
	}
}
