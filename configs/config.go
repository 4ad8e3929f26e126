package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	Sheets struct {
		SpreadsheetID  string        `koanf:"spreadsheet_id"`
		CredsFile      string        `koanf:"creds_file"`
		ProductsSheet  string        `koanf:"products_sheet"`
		OrdersSheet    string        `koanf:"orders_sheet"`
		DiscountsSheet string        `koanf:"discounts_sheet"`
		VersionCell    string        `koanf:"version_cell"`
		CallTimeout    time.Duration `koanf:"call_timeout"`
		Retries        int           `koanf:"retries"`
	} `koanf:"sheets"`

	Catalog struct {
		TTL               time.Duration `koanf:"ttl"`
		LowStockThreshold int           `koanf:"low_stock_threshold"`
	} `koanf:"catalog"`

	Discounts struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"discounts"`

	Commit struct {
		Retries int           `koanf:"retries"`
		Backoff time.Duration `koanf:"backoff"`
	} `koanf:"commit"`

	Redis struct {
		Addr       string        `koanf:"addr"`
		Password   string        `koanf:"password"`
		SessionTTL time.Duration `koanf:"session_ttl"`
	} `koanf:"redis"`

	Rabbit struct {
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers       []string `koanf:"brokers"`
		TopicPayments string   `koanf:"topic_payments"`
		GroupID       string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Payment struct {
		BaseURL  string        `koanf:"base_url"`
		APIKey   string        `koanf:"api_key"`
		Currency string        `koanf:"currency"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"payment"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix BAZARINO_, nested with __)
	// e.g. BAZARINO_SHEETS__SPREADSHEET_ID, BAZARINO_REDIS__PASSWORD
	if err := k.Load(env.Provider("BAZARINO_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BAZARINO_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id required")
	}
	if c.Sheets.ProductsSheet == "" || c.Sheets.OrdersSheet == "" {
		return fmt.Errorf("sheets.products_sheet and sheets.orders_sheet required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required")
	}
	return nil
}
