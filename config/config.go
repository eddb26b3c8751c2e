// Package config loads membergate settings from an optional file, a .env
// file and the process environment.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/PaulFidika/membergate/core"
	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/password"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AppConfig holds the complete configuration for the server and CLI.
type AppConfig struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	LogFormat   string         `mapstructure:"log_format"`
	HTTP        HTTPConfig     `mapstructure:"http"`
	Supabase    SupabaseConfig `mapstructure:"supabase"`
	Stripe      StripeConfig   `mapstructure:"stripe"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Admin       AdminConfig    `mapstructure:"admin"`
	Routes      RoutesConfig   `mapstructure:"routes"`
	Jobs        JobsConfig     `mapstructure:"jobs"`
}

type HTTPConfig struct {
	Addr          string `mapstructure:"addr"`
	SiteURL       string `mapstructure:"site_url"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

type SupabaseConfig struct {
	URL            string        `mapstructure:"url"`
	AnonKey        string        `mapstructure:"anon_key"`
	ServiceRoleKey string        `mapstructure:"service_role_key"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWKSURL        string        `mapstructure:"jwks_url"`
	FlowTTL        time.Duration `mapstructure:"flow_ttl"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	PriceID       string `mapstructure:"price_id"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type PostgresConfig struct {
	URI      string `mapstructure:"uri"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

type RoutesConfig struct {
	Login   string `mapstructure:"login"`
	Members string `mapstructure:"members"`
	Offer   string `mapstructure:"offer"`
}

type JobsConfig struct {
	Workers       int    `mapstructure:"workers"`
	SweepSchedule string `mapstructure:"sweep_schedule"`
	SweepBatch    int    `mapstructure:"sweep_batch"`
}

// Load reads .env (when present), then the config file at path (when set),
// then the environment. Environment values win.
func Load(path string) (*AppConfig, error) {
	if err := loadDotenv(".env"); err != nil {
		return nil, err
	}
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.site_url", "http://localhost:8080")
	v.SetDefault("http.secure_cookies", true)
	v.SetDefault("supabase.flow_ttl", 15*time.Minute)
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("routes.login", "/login")
	v.SetDefault("routes.members", "/videos")
	v.SetDefault("routes.offer", "/pricing")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.sweep_schedule", "@every 15m")
	v.SetDefault("jobs.sweep_batch", 100)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// Nested keys need explicit bindings for Unmarshal. The second name is
	// the one the storefront deployment already exports.
	_ = v.BindEnv("environment", "ENVIRONMENT")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")
	_ = v.BindEnv("http.addr", "HTTP_ADDR")
	_ = v.BindEnv("http.site_url", "SITE_URL", "NEXT_PUBLIC_SITE_URL")
	_ = v.BindEnv("http.secure_cookies", "HTTP_SECURE_COOKIES")
	_ = v.BindEnv("supabase.url", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	_ = v.BindEnv("supabase.anon_key", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY")
	_ = v.BindEnv("supabase.service_role_key", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE")
	_ = v.BindEnv("supabase.jwt_secret", "SUPABASE_JWT_SECRET")
	_ = v.BindEnv("supabase.jwks_url", "SUPABASE_JWKS_URL")
	_ = v.BindEnv("supabase.flow_ttl", "SUPABASE_FLOW_TTL")
	_ = v.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	_ = v.BindEnv("stripe.price_id", "STRIPE_PRICE_ID", "NEXT_PUBLIC_PRICE_ID_15")
	_ = v.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	_ = v.BindEnv("postgres.uri", "DATABASE_URL", "POSTGRES_URI")
	_ = v.BindEnv("postgres.max_conns", "POSTGRES_MAX_CONNS")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("admin.secret", "ADMIN_SECRET", "ADMIN_CONFIRM_SECRET")
	_ = v.BindEnv("routes.login", "ROUTES_LOGIN")
	_ = v.BindEnv("routes.members", "ROUTES_MEMBERS")
	_ = v.BindEnv("routes.offer", "ROUTES_OFFER")
	_ = v.BindEnv("jobs.workers", "JOBS_WORKERS")
	_ = v.BindEnv("jobs.sweep_schedule", "JOBS_SWEEP_SCHEDULE")
	_ = v.BindEnv("jobs.sweep_batch", "JOBS_SWEEP_BATCH")

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.HTTP.SiteURL = strings.TrimRight(cfg.HTTP.SiteURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Validate checks the keys every command needs. Postgres and Redis are
// optional; without them the server runs on in-memory stores.
func (c *AppConfig) Validate() error {
	if c.Supabase.URL == "" {
		return errors.New("supabase.url is required")
	}
	if c.Supabase.AnonKey == "" {
		return errors.New("supabase.anon_key is required")
	}
	if c.Stripe.SecretKey == "" {
		return errors.New("stripe.secret_key is required")
	}
	if c.HTTP.SiteURL == "" {
		return errors.New("http.site_url is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.New("log_format must be text or json")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Core translates routing and batch settings for core.NewService.
func (c *AppConfig) Core() core.Config {
	return core.Config{
		LoginPath:      c.Routes.Login,
		MemberRedirect: c.Routes.Members,
		OfferRedirect:  c.Routes.Offer,
		SweepBatch:     c.Jobs.SweepBatch,
	}
}

// GoTrue translates the Supabase settings for gotrue.NewClient.
func (c *AppConfig) GoTrue() gotrue.Config {
	return gotrue.Config{
		URL:            c.Supabase.URL,
		AnonKey:        c.Supabase.AnonKey,
		ServiceRoleKey: c.Supabase.ServiceRoleKey,
		Accept: gotrue.AcceptConfig{
			JWTSecret: c.Supabase.JWTSecret,
			JWKSURL:   c.Supabase.JWKSURL,
		},
	}
}

// ConfigureLogger applies level and format to l.
func (c *AppConfig) ConfigureLogger(l *logrus.Logger) {
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Diag reports which settings are present. Secrets show only a short
// prefix and their length.
func (c *AppConfig) Diag() map[string]string {
	missing := func(v string) string {
		if v == "" {
			return "MISSING"
		}
		return v
	}
	secret := func(v string) string {
		if v == "" {
			return "MISSING"
		}
		return password.Redact(v)
	}
	set := func(v string) string {
		if v == "" {
			return "MISSING"
		}
		return "SET"
	}
	return map[string]string{
		"environment":               c.Environment,
		"site_url":                  missing(c.HTTP.SiteURL),
		"supabase_url":              missing(c.Supabase.URL),
		"supabase_anon_key":         set(c.Supabase.AnonKey),
		"supabase_service_role_key": secret(c.Supabase.ServiceRoleKey),
		"supabase_jwt_secret":       set(c.Supabase.JWTSecret),
		"stripe_secret_key":         secret(c.Stripe.SecretKey),
		"stripe_webhook_secret":     set(c.Stripe.WebhookSecret),
		"stripe_price_id":           missing(c.Stripe.PriceID),
		"postgres":                  set(c.Postgres.URI),
		"redis":                     set(c.Redis.Addr),
		"admin_secret":              set(c.Admin.Secret),
	}
}
