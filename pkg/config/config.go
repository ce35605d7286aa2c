package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	FeatureFlags FeatureFlagsConfig
	ImageCDN     ImageCDNConfig
	ObjectStore  ObjectStoreConfig
	Media        MediaConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.ObjectStore.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PEARL_APP_ENV" required:"true"`
	Port         string `envconfig:"PEARL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PEARL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PEARL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PEARL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PEARL_DB_DSN"`
	Driver string `envconfig:"PEARL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PEARL_DB_HOST"`
	LegacyPort     int    `envconfig:"PEARL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PEARL_DB_USER"`
	LegacyPassword string `envconfig:"PEARL_DB_PASSWORD"`
	LegacyName     string `envconfig:"PEARL_DB_NAME"`
	LegacySSLMode  string `envconfig:"PEARL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PEARL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PEARL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PEARL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PEARL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PEARL_AUTO_MIGRATE" default:"false"`
}

// ImageCDNConfig holds Cloudinary upload credentials.
type ImageCDNConfig struct {
	CloudName    string        `envconfig:"PEARL_IMAGECDN_CLOUD_NAME" required:"true"`
	APIKey       string        `envconfig:"PEARL_IMAGECDN_API_KEY" required:"true"`
	APISecret    string        `envconfig:"PEARL_IMAGECDN_API_SECRET" required:"true"`
	UploadFolder string        `envconfig:"PEARL_IMAGECDN_UPLOAD_FOLDER" default:"products"`
	Timeout      time.Duration `envconfig:"PEARL_IMAGECDN_TIMEOUT" default:"30s"`
}

// ObjectStoreConfig holds Backblaze B2 (S3 protocol) settings for video assets.
type ObjectStoreConfig struct {
	Endpoint       string        `envconfig:"PEARL_OBJECTSTORE_ENDPOINT" required:"true"`
	Region         string        `envconfig:"PEARL_OBJECTSTORE_REGION" default:"eu-central-003"`
	Bucket         string        `envconfig:"PEARL_OBJECTSTORE_BUCKET" required:"true"`
	KeyID          string        `envconfig:"PEARL_OBJECTSTORE_KEY_ID" required:"true"`
	ApplicationKey string        `envconfig:"PEARL_OBJECTSTORE_APP_KEY" required:"true"`
	MaxSignTTL     time.Duration `envconfig:"PEARL_OBJECTSTORE_MAX_SIGN_TTL" default:"168h"`
	RefreshMargin  time.Duration `envconfig:"PEARL_OBJECTSTORE_REFRESH_MARGIN" default:"24h"`
	Timeout        time.Duration `envconfig:"PEARL_OBJECTSTORE_TIMEOUT" default:"60s"`
}

// SignTTLCap is the hard ceiling the backend enforces on presigned GET URLs.
const SignTTLCap = 7 * 24 * time.Hour

func (o *ObjectStoreConfig) validate() error {
	if o.MaxSignTTL <= 0 {
		return fmt.Errorf("object store max sign ttl must be positive")
	}
	if o.MaxSignTTL > SignTTLCap {
		o.MaxSignTTL = SignTTLCap
	}
	if o.RefreshMargin <= 0 {
		return fmt.Errorf("object store refresh margin must be positive")
	}
	if o.RefreshMargin >= o.MaxSignTTL {
		return fmt.Errorf("refresh margin %s must be below max sign ttl %s", o.RefreshMargin, o.MaxSignTTL)
	}
	return nil
}

type MediaConfig struct {
	MaxUploadMB      int           `envconfig:"PEARL_MEDIA_MAX_UPLOAD_MB" default:"200"`
	UploadRetries    int           `envconfig:"PEARL_MEDIA_UPLOAD_RETRIES" default:"3"`
	UploadRetryDelay time.Duration `envconfig:"PEARL_MEDIA_UPLOAD_RETRY_DELAY" default:"1s"`
	ResolverWorkers  int           `envconfig:"PEARL_MEDIA_RESOLVER_WORKERS" default:"8"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PEARL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"PEARL_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	CatalogTopic        string `envconfig:"PEARL_PUBSUB_CATALOG_TOPIC" required:"true"`
	CatalogSubscription string `envconfig:"PEARL_PUBSUB_CATALOG_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PEARL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PEARL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PEARL_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
