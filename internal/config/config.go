package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"forex-academy/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Per client, per minute, on payment endpoints. 0 disables.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type CryptoConfig struct {
	Enabled bool `yaml:"enabled"`
	// Receiving addresses keyed by asset, e.g. usdt_trc20: T...
	Addresses map[string]string `yaml:"addresses"`
}

type MobileMoneyConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Provider       string        `yaml:"provider"`
	CallbackSecret string        `yaml:"callback_secret"`
	Simulate       bool          `yaml:"simulate"`
	SimulatedDelay time.Duration `yaml:"simulated_delay"`
	Workers        int           `yaml:"workers"`
}

type PaymentConfig struct {
	Currency    string            `yaml:"currency"`
	IntentTTL   time.Duration     `yaml:"intent_ttl"`
	Stripe      StripeConfig      `yaml:"stripe"`
	Crypto      CryptoConfig      `yaml:"crypto"`
	MobileMoney MobileMoneyConfig `yaml:"mobile_money"`
}

type ProgramConfig struct {
	Name       string `yaml:"name"`
	Title      string `yaml:"title"`
	Role       string `yaml:"role"`
	PriceCents int64  `yaml:"price_cents"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileBatch    int           `yaml:"reconcile_batch"`
	ExpireInterval    time.Duration `yaml:"expire_interval"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Language     string  `yaml:"language"` // review message locale, default en
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Programs  []ProgramConfig `yaml:"programs"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`
	Telegram  TelegramConfig  `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the environment
// (and a .env file next to the process, if any), applies defaults and validates.
// An empty path skips the file and relies on the environment alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Payment.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	set(&cfg.Payment.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	set(&cfg.Payment.MobileMoney.CallbackSecret, "MOBILE_MONEY_CALLBACK_SECRET")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Auth.JWTSecret, "JWT_SECRET")
	set(&cfg.Security.EncryptionKey, "ENCRYPTION_KEY")
	set(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	cfg.Payment.Currency = strings.ToLower(strings.TrimSpace(cfg.Payment.Currency))
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "usd"
	}
	if cfg.Payment.IntentTTL <= 0 {
		cfg.Payment.IntentTTL = 24 * time.Hour
	}
	if cfg.Payment.MobileMoney.Provider == "" {
		cfg.Payment.MobileMoney.Provider = "simulated"
	}
	if cfg.Payment.MobileMoney.SimulatedDelay <= 0 {
		cfg.Payment.MobileMoney.SimulatedDelay = 3 * time.Second
	}
	if cfg.Payment.MobileMoney.Workers <= 0 {
		cfg.Payment.MobileMoney.Workers = 4
	}

	if len(cfg.Programs) == 0 {
		cfg.Programs = DefaultPrograms()
	}

	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = time.Minute
	}
	if cfg.Scheduler.ReconcileBatch <= 0 {
		cfg.Scheduler.ReconcileBatch = 200
	}
	if cfg.Telegram.Language == "" {
		cfg.Telegram.Language = "en"
	}
	if cfg.Scheduler.ExpireInterval <= 0 {
		cfg.Scheduler.ExpireInterval = 15 * time.Minute
	}
}

// DefaultPrograms is the catalog used when the config file declares none.
func DefaultPrograms() []ProgramConfig {
	return []ProgramConfig{
		{Name: "academy", Title: "Forex Academy", Role: model.RoleAcademyStudent, PriceCents: 49700},
		{Name: "mentorship", Title: "1:1 Mentorship", Role: model.RoleMentorshipStudent, PriceCents: 149700},
		{Name: "community", Title: "Trading Community", Role: model.RoleCommunityStudent, PriceCents: 4700},
	}
}

// Validate fails fast on anything that would make the service run unauthenticated
// or hand out unknown roles.
func (c *Config) Validate() error {
	if c.Payment.Stripe.SecretKey == "" {
		return errors.New("payment.stripe.secret_key (STRIPE_SECRET_KEY) is required")
	}
	if c.Payment.Stripe.WebhookSecret == "" {
		return errors.New("payment.stripe.webhook_secret (STRIPE_WEBHOOK_SECRET) is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url (DATABASE_URL) is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Payment.MobileMoney.Enabled && c.Payment.MobileMoney.CallbackSecret == "" {
		return errors.New("payment.mobile_money.callback_secret is required when mobile money is enabled")
	}
	if c.Payment.Crypto.Enabled && len(c.Payment.Crypto.Addresses) == 0 {
		return errors.New("payment.crypto.addresses is required when crypto is enabled")
	}
	if n := len(c.Security.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}
	seen := map[string]bool{}
	for _, p := range c.Programs {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return errors.New("programs: name is required")
		}
		if seen[name] {
			return fmt.Errorf("programs: duplicate program %q", name)
		}
		seen[name] = true
		if !model.IsKnownRole(p.Role) || p.Role == model.RoleAdmin {
			return fmt.Errorf("programs: %q maps to invalid role %q", name, p.Role)
		}
	}
	return nil
}

// Catalog builds the program catalog from config.
func (c *Config) Catalog() *model.Catalog {
	ps := make([]model.Program, 0, len(c.Programs))
	for _, p := range c.Programs {
		ps = append(ps, model.Program{Name: p.Name, Title: p.Title, Role: p.Role, PriceCents: p.PriceCents})
	}
	return model.NewCatalog(ps)
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
