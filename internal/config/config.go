package config

import (
	"time"

	"lotmarket/internal/database/db_client"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
	LogFormat      string `env:"LOG_FORMAT"       envDefault:"console" validate:"oneof=console json"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres" validate:"oneof=postgres memory"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"lotmarket"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"lotmarket"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"lotmarket"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	PostgresMaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"50" validate:"min=1"`
	PostgresMigrate  bool   `env:"POSTGRES_MIGRATE"  envDefault:"false"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"true"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379" validate:"min=1000,max=65535"`

	JwtSecret    string        `env:"JWT_SECRET,unset" validate:"required,min=16"`
	JwtIssuer    string        `env:"JWT_ISSUER"      envDefault:"lotmarket"`
	JwtTTL       time.Duration `env:"JWT_TTL"         envDefault:"12h" validate:"gt=0"`
	AuthMaxDelay time.Duration `env:"AUTH_MAX_DELAY"  envDefault:"300ms" validate:"gte=0"`

	BidRetryAttempts int           `env:"BID_RETRY_ATTEMPTS" envDefault:"3"     validate:"min=1,max=10"`
	BidTxTimeout     time.Duration `env:"BID_TX_TIMEOUT"     envDefault:"3s"    validate:"gt=0"`
	BidLockTimeout   time.Duration `env:"BID_LOCK_TIMEOUT"   envDefault:"500ms" validate:"gte=0"`

	LotSyncInterval time.Duration `env:"LOT_SYNC_INTERVAL" envDefault:"10s" validate:"gt=0"`
}

// Postgres returns the connection options for db_client.Open.
func (c *Config) Postgres() db_client.Options {
	return db_client.Options{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Database: c.PostgresDb,
		SSLMode:  c.PostgresSSLMode,
		MaxConns: c.PostgresMaxConns,
	}
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	// Parse config from environment variables
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
