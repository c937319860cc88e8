package config

import (
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverREST     = "rest"
)

type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	RESTURL        string        `mapstructure:"rest_url"`
	ServiceRoleKey string        `mapstructure:"service_role_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type FirebaseConfig struct {
	ServiceAccountFile string `mapstructure:"service_account_file"`
	ClientEmail        string `mapstructure:"client_email"`
	PrivateKey         string `mapstructure:"private_key"`
	PrivateKeyID       string `mapstructure:"private_key_id"`
	ProjectID          string `mapstructure:"project_id"`
	TokenURL           string `mapstructure:"token_url"`
	Endpoint           string `mapstructure:"endpoint"`
	CacheToken         bool   `mapstructure:"cache_token"`
}

type DedupConfig struct {
	Window   time.Duration `mapstructure:"window"`
	RedisURL string        `mapstructure:"redis_url"`
}

type DispatchConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
}

type WebhookConfig struct {
	// SecretHash is a bcrypt hash of the shared secret the webhook sends as a bearer token.
	SecretHash string `mapstructure:"secret_hash"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	LogLevel    string         `mapstructure:"log_level"`
	Migrate     bool           `mapstructure:"migrate"`
	Store       StoreConfig    `mapstructure:"store"`
	Firebase    FirebaseConfig `mapstructure:"firebase"`
	Dedup       DedupConfig    `mapstructure:"dedup"`
	Dispatch    DispatchConfig `mapstructure:"dispatch"`
	Webhook     WebhookConfig  `mapstructure:"webhook"`
}

// Load reads the configuration from config.yaml and the environment and returns a Config instance.
func Load() *Config {
	config, err := Read(".", "./config")
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return config
}

// Read looks for config.yaml in the given directories. A missing file is not an error,
// so the service can be configured purely from the environment.
func Read(paths ...string) (*Config, error) {
	v := viper.New()

	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Names used by the hosted deployment.
	_ = v.BindEnv("store.rest_url", "STORE_REST_URL", "SUPABASE_URL")
	_ = v.BindEnv("store.service_role_key", "STORE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("migrate", false)
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.rest_url", "")
	v.SetDefault("store.service_role_key", "")
	v.SetDefault("store.timeout", 10*time.Second)
	v.SetDefault("firebase.service_account_file", "")
	v.SetDefault("firebase.client_email", "")
	v.SetDefault("firebase.private_key", "")
	v.SetDefault("firebase.private_key_id", "")
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("firebase.endpoint", "https://fcm.googleapis.com")
	v.SetDefault("firebase.cache_token", false)
	v.SetDefault("dedup.window", 5*time.Minute)
	v.SetDefault("dedup.redis_url", "")
	v.SetDefault("dispatch.max_concurrency", 0)
	v.SetDefault("dispatch.send_timeout", 10*time.Second)
	v.SetDefault("webhook.secret_hash", "")
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url must be set for the postgres store")
		}
	case StoreDriverREST:
		if c.Store.RESTURL == "" || c.Store.ServiceRoleKey == "" {
			return errors.New("store.rest_url and store.service_role_key must be set for the rest store")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Firebase.ServiceAccountFile == "" && (c.Firebase.ClientEmail == "" || c.Firebase.PrivateKey == "") {
		return errors.New("firebase.service_account_file or firebase.client_email and firebase.private_key must be set")
	}
	if c.Dedup.Window <= 0 {
		return errors.New("dedup.window must be positive")
	}
	if c.Dispatch.MaxConcurrency < 0 {
		return errors.New("dispatch.max_concurrency cannot be negative")
	}
	return nil
}
