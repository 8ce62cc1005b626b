// Package config loads configuration structs from environment variables.
//
// Load reads optional .env files with github.com/joho/godotenv (existing
// process variables always win), then parses the environment into the
// given struct with github.com/caarlos0/env/v11 tags. Each struct type is
// parsed once per process; later calls return the cached copy.
//
//	type Config struct {
//	    BaseURL string `env:"BASE_URL,required"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg, config.WithPrefix("ROOMSYNC_")); err != nil {
//	    return err
//	}
//
// Reset clears the cache and is meant for tests.
package config
