package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Ledger      LedgerConfig
	Attachments AttachmentsConfig
	Agent       AgentConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIELDLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"FIELDLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FIELDLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIELDLEDGER_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"FIELDLEDGER_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FIELDLEDGER_DB_DSN"`
	Driver string `envconfig:"FIELDLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FIELDLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"FIELDLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FIELDLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"FIELDLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"FIELDLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"FIELDLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FIELDLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FIELDLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FIELDLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FIELDLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FIELDLEDGER_REDIS_URL"`
	Address      string        `envconfig:"FIELDLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"FIELDLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"FIELDLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FIELDLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FIELDLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FIELDLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FIELDLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FIELDLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FIELDLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FIELDLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FIELDLEDGER_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// LedgerConfig carries the server-side business settings. The governing
// timezone decides civil-day bucketing and the reversal cutoff.
type LedgerConfig struct {
	Timezone            string `envconfig:"FIELDLEDGER_LEDGER_TIMEZONE" default:"America/Guatemala"`
	ProjectionWindow    int    `envconfig:"FIELDLEDGER_LEDGER_PROJECTION_WINDOW" default:"100"`
	ProjectionMovements int    `envconfig:"FIELDLEDGER_LEDGER_PROJECTION_MOVEMENTS" default:"5"`
}

type AttachmentsConfig struct {
	Dir         string `envconfig:"FIELDLEDGER_ATTACHMENTS_DIR" default:"./data/attachments"`
	MaxUploadMB int    `envconfig:"FIELDLEDGER_ATTACHMENTS_MAX_UPLOAD_MB" default:"20"`
}

// AgentConfig configures the device-side field agent.
type AgentConfig struct {
	ServerURL    string        `envconfig:"FIELDLEDGER_AGENT_SERVER_URL"`
	Token        string        `envconfig:"FIELDLEDGER_AGENT_TOKEN"`
	DataDir      string        `envconfig:"FIELDLEDGER_AGENT_DATA_DIR" default:"./data/agent"`
	LocalPort    string        `envconfig:"FIELDLEDGER_AGENT_LOCAL_PORT" default:"8191"`
	SyncInterval time.Duration `envconfig:"FIELDLEDGER_AGENT_SYNC_INTERVAL" default:"2m"`
	GeoTimeout   time.Duration `envconfig:"FIELDLEDGER_AGENT_GEO_TIMEOUT" default:"3s"`
	HTTPTimeout  time.Duration `envconfig:"FIELDLEDGER_AGENT_HTTP_TIMEOUT" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
