package config

import "time"

type Config struct {
	Server    ServerConfig
	Realtime  RealtimeConfig
	Transport TransportConfig
	SMTP      SMTPConfig `mapstructure:"smtp"`
	Keys      KeysConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address     string
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

type RealtimeConfig struct {
	// Path the websocket endpoint is served under.
	Path string
	// Secret for verifying bearer tokens at handshake. Empty disables
	// verification and every connection is anonymous.
	JWTSecret string `mapstructure:"jwtSecret"`
	// Base URL of the document service consulted on join.
	BackendURL string `mapstructure:"backendURL"`
	// Upper bound on a single document-service lookup.
	LookupTimeout   time.Duration         `mapstructure:"lookupTimeout"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type KeysConfig struct {
	// Static key accepted for the email endpoints, alongside stored keys.
	APIKey string `mapstructure:"apiKey"`
	// Key required for API-key management endpoints.
	MasterKey string `mapstructure:"masterKey"`
	// File the key store persists to.
	File string
}

type LogConfig struct {
	Level string
}
