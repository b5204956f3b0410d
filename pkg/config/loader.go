package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.corsOrigins", []string{"http://localhost:8080"})
	v.SetDefault("realtime.path", "/realtime")
	v.SetDefault("realtime.jwtSecret", "")
	v.SetDefault("realtime.backendURL", "https://riverflow-server.onrender.com/api")
	v.SetDefault("realtime.lookupTimeout", "10s")
	v.SetDefault("realtime.connectionLimit.maxPerUser", 0)
	v.SetDefault("realtime.connectionLimit.mode", "cycle")
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("transport.writeTimeout", "10s")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("keys.file", "data/api-keys.json")
	v.SetDefault("log.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("RIVERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}

	return &cfg, nil
}
