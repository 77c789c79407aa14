package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Video    VideoConfig    `yaml:"video"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Retry    RetryConfig    `yaml:"retry"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver          string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DSN             string        `yaml:"dsn" env:"DB_DSN"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"10"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"25"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"30m"`
	// EnforceRLS installs the row-level security policies and sets the caller on
	// every transaction. Postgres only.
	EnforceRLS bool `yaml:"enforce_rls" env:"DB_ENFORCE_RLS" env-default:"false"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"JWT_ISSUER"`
}

type VideoConfig struct {
	ProviderHost string `yaml:"provider_host" env:"VIDEO_PROVIDER_HOST" env-default:"meet.jit.si"`
	Namespace    string `yaml:"namespace" env:"VIDEO_NAMESPACE" env-default:"counsel"`
}

type RealtimeConfig struct {
	Buffer       int           `yaml:"buffer" env-default:"64"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
	PingInterval time.Duration `yaml:"ping_interval" env-default:"25s"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env-default:"3"`
	Initial  time.Duration `yaml:"initial" env-default:"100ms"`
	Max      time.Duration `yaml:"max" env-default:"2s"`
}

type NotifyConfig struct {
	SendGridKey  string `yaml:"sendgrid_key" env:"SENDGRID_API_KEY"`
	SendGridHost string `yaml:"sendgrid_host" env:"SENDGRID_HOST"`
	FromEmail    string `yaml:"from_email" env:"NOTIFY_FROM_EMAIL" env-default:"no-reply@counsel.local"`
	AppName      string `yaml:"app_name" env-default:"Counsel Portal"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "file:counsel.db?_foreign_keys=on"
	}
	if c.Realtime.Buffer <= 0 {
		c.Realtime.Buffer = 64
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 1
	}
}
