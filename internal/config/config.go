package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/storyreel/backend/internal/catalog"
)

// Config captures the runtime configuration for the StoryReel backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Credits       CreditsConfig       `mapstructure:"credits"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Assets        AssetsConfig        `mapstructure:"assets"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Limits        LimitsConfig        `mapstructure:"limits"`
	Reporting     ReportingConfig     `mapstructure:"reporting"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

// AdminConfig guards the /admin surface. The routes stay unmounted when no
// token is configured.
type AdminConfig struct {
	APIToken string `mapstructure:"api_token"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	GenerationTimeout     time.Duration `mapstructure:"generation_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// CreditsConfig controls the internal credit currency.
type CreditsConfig struct {
	StartingCredits int64            `mapstructure:"starting_credits"`
	BalanceCacheTTL time.Duration    `mapstructure:"balance_cache_ttl"`
	Costs           map[string]int64 `mapstructure:"costs"`
}

// CostFor resolves the credit price for an operation, falling back to the
// built-in catalog price when no override is configured.
func (c CreditsConfig) CostFor(op catalog.Operation) int64 {
	if cost, ok := c.Costs[op.String()]; ok && cost > 0 {
		return cost
	}
	return catalog.DefaultCreditCost(op)
}

type PricingConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ProvidersConfig carries the platform-owned upstream credentials. Per-user
// credentials live in the database and take precedence via the resolver.
type ProvidersConfig struct {
	GeminiKey          string `mapstructure:"gemini_key"`
	OpenAIKey          string `mapstructure:"openai_key"`
	KieAIKey           string `mapstructure:"kieai_key"`
	ElevenLabsKey      string `mapstructure:"elevenlabs_key"`
	ModalTokenID       string `mapstructure:"modal_token_id"`
	ModalTokenSecret   string `mapstructure:"modal_token_secret"`
	ModalImageEndpoint string `mapstructure:"modal_image_endpoint"`
	ModalVideoEndpoint string `mapstructure:"modal_video_endpoint"`
}

// PlatformKey returns the platform credential for the provider, if any.
func (p ProvidersConfig) PlatformKey(provider catalog.Provider) string {
	switch provider {
	case catalog.ProviderGemini:
		return p.GeminiKey
	case catalog.ProviderOpenAI:
		return p.OpenAIKey
	case catalog.ProviderKieAI:
		return p.KieAIKey
	case catalog.ProviderElevenLabs:
		return p.ElevenLabsKey
	case catalog.ProviderModal:
		return p.ModalTokenSecret
	default:
		return ""
	}
}

type AssetsConfig struct {
	Storage   string            `mapstructure:"storage"`
	PublicURL string            `mapstructure:"public_url"`
	S3        AssetsS3Config    `mapstructure:"s3"`
	Local     AssetsLocalConfig `mapstructure:"local"`
}

type AssetsS3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type AssetsLocalConfig struct {
	Directory string `mapstructure:"directory"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// LimitsConfig throttles the generation endpoints per user. Zero disables the
// corresponding cap.
type LimitsConfig struct {
	GenerationsPerMinute int `mapstructure:"generations_per_minute"`
	ParallelGenerations  int `mapstructure:"parallel_generations"`
}

type ReportingConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("STORYREEL_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("storyreel")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("STORYREEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 20)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.generation_timeout", "280s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("credits.starting_credits", 100)
	v.SetDefault("credits.balance_cache_ttl", "60s")

	v.SetDefault("pricing.cache_ttl", "5m")

	v.SetDefault("assets.storage", "local")
	v.SetDefault("assets.local.directory", "./data/assets")
	v.SetDefault("assets.public_url", "/assets")

	v.SetDefault("limits.generations_per_minute", 30)
	v.SetDefault("limits.parallel_generations", 4)

	v.SetDefault("observability.enable_metrics", true)

	v.SetDefault("reporting.timezone", "UTC")
}

// Validate ensures required values are set.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" {
		missing = append(missing, "STORYREEL_DATABASE_URL")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "STORYREEL_REDIS_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Database.RunMigrations && c.Database.MigrationsDir == "" {
		return fmt.Errorf("database.migrations_dir must be provided when run_migrations is true")
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}

	if c.Credits.StartingCredits < 0 {
		return fmt.Errorf("credits.starting_credits must be >= 0")
	}
	if c.Credits.BalanceCacheTTL <= 0 {
		c.Credits.BalanceCacheTTL = time.Minute
	}
	for name, cost := range c.Credits.Costs {
		if _, ok := catalog.ParseOperation(name); !ok {
			return fmt.Errorf("credits.costs: unknown operation %q", name)
		}
		if cost <= 0 {
			return fmt.Errorf("credits.costs.%s must be > 0", name)
		}
	}

	if c.Pricing.CacheTTL <= 0 {
		c.Pricing.CacheTTL = 5 * time.Minute
	}

	switch strings.ToLower(strings.TrimSpace(c.Assets.Storage)) {
	case "", "local":
		c.Assets.Storage = "local"
	case "s3":
		c.Assets.Storage = "s3"
		if strings.TrimSpace(c.Assets.S3.Bucket) == "" {
			return fmt.Errorf("assets.s3.bucket must be provided when assets.storage is s3")
		}
	default:
		return fmt.Errorf("assets.storage must be local or s3")
	}

	tz := strings.TrimSpace(c.Reporting.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid reporting.timezone: %w", err)
	}
	c.Reporting.Timezone = tz

	return nil
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
