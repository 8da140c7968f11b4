// Package config handles application configuration from environment
// variables and optional HCL files.
package config

import (
	"fmt"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string  `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDs         []int64 `hcl:"admin_ids" env:"ADMIN_IDS"`

	DatabasePath string `hcl:"database_path" env:"DATABASE_PATH" default:"./data/newswatch.db"`

	OpenAIKey       string        `hcl:"openai_key" env:"OPENAI_KEY"`
	OpenAIBaseURL   string        `hcl:"openai_base_url" env:"OPENAI_BASE_URL" default:"https://api.deepseek.com/v1"`
	OpenAIModel     string        `hcl:"openai_model" env:"OPENAI_MODEL" default:"deepseek-chat"`
	ClassifyTimeout time.Duration `hcl:"classify_timeout" env:"CLASSIFY_TIMEOUT" default:"10s"`
	ComposeTimeout  time.Duration `hcl:"compose_timeout" env:"COMPOSE_TIMEOUT" default:"50s"`

	FetchInterval   time.Duration `hcl:"fetch_interval" env:"FETCH_INTERVAL" default:"1m"`
	ConsumeInterval time.Duration `hcl:"consume_interval" env:"CONSUME_INTERVAL" default:"1m"`
	FetchTimeout    time.Duration `hcl:"fetch_timeout" env:"FETCH_TIMEOUT" default:"30s"`
	RecencyWindow   time.Duration `hcl:"recency_window" env:"RECENCY_WINDOW" default:"1h"`

	CoinMarketCapKey   string        `hcl:"coinmarketcap_key" env:"COINMARKETCAP_KEY"`
	CryptoTickInterval time.Duration `hcl:"crypto_tick_interval" env:"CRYPTO_TICK_INTERVAL" default:"1s"`

	LogLevel string `hcl:"log_level" env:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from config.hcl, config.local.hcl and NW_*
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "NW",
		SkipFlags: true,
		Files:     []string{"./config.hcl", "./config.local.hcl"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
