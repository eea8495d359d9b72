package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values (production chart of accounts, standard tolerances)
// 2. Configuration file (reconbank.toml)
// 3. .env file, if present (DB credentials live here, never in TOML)
// 4. Environment variables (RECONBANK_ prefix)
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults first
	setDefaults(v)

	// 2. Load the configuration file when one was given
	if configPath != "" {
		if err := loadMainConfig(v, configPath); err != nil {
			return nil, fmt.Errorf("failed to load main config: %w", err)
		}
	}

	// 3. Pull a .env into the process environment (ignored when absent)
	_ = godotenv.Load()

	// 4. Set up environment variable support
	v.SetEnvPrefix("RECONBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 5. Unmarshal into the typed config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Build the account registry and ledger catalog
	registry, err := NewRegistry(config.Accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to build account registry: %w", err)
	}
	config.registry = registry

	catalog, err := BuildCatalog(config.CatalogRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger catalog: %w", err)
	}
	config.catalog = catalog

	// 7. Store the path for reference
	config.configPath = configPath

	// 8. Validate the complete configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadMainConfig loads the main configuration file.
func loadMainConfig(v *viper.Viper, configPath string) error {
	v.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}

// LoadDefaultConfig loads configuration from the default location,
// falling back to pure defaults when no file exists.
func LoadDefaultConfig() (*Config, error) {
	path := "reconbank.toml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}
	return LoadConfig(path)
}
