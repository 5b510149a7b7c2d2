// Package config is the configuration shared by every entry point.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/configutil"
	"catalogsync/internal/mutator"
	"catalogsync/internal/report"
	"catalogsync/internal/retry"
	"catalogsync/internal/runlog"
	"catalogsync/internal/scrapers/storefront"
	"catalogsync/internal/woocommerce"

	"github.com/joho/godotenv"
)

const (
	EnvBaseUrl        = "WP_API_BASE_URL"
	EnvConsumerKey    = "WP_API_CONSUMER_KEY"
	EnvConsumerSecret = "WP_API_CONSUMER_SECRET"
)

const (
	DefaultConfigFile = "config.json5"
	DefaultSourceCsv  = "website_products.csv"
	DefaultRemoteCsv  = "woocommerce_products.csv"
)

var ErrNoCategories = errors.New("no category urls configured")

type StorefrontConfig struct {
	BaseUrl string `json:"base_url"`
	// SearchPath is queried with ?q=<sku> to find a product's page.
	SearchPath   string   `json:"search_path"`
	CategoryUrls []string `json:"category_urls"`
	Workers      int      `json:"workers"`
	// RequestsPerSecond limits outgoing requests, 0 means unlimited.
	RequestsPerSecond float64      `json:"requests_per_second"`
	TimeoutSeconds    int          `json:"timeout_seconds"`
	Retry             retry.Policy `json:"retry"`
	BypassCloudflare  bool         `json:"bypass_cloudflare"`
	UserAgent         string       `json:"user_agent"`
}

type WooCommerceConfig struct {
	// BaseUrl is the products endpoint, ex. https://shop.example/wp-json/wc/v3/products
	BaseUrl        string `json:"base_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	PerPage        int    `json:"per_page"`
	ForceDelete    bool   `json:"force_delete"`
	// RequestTimeoutSeconds bounds every remote call.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

type FilesConfig struct {
	SourceCsv string `json:"source_csv"`
	RemoteCsv string `json:"remote_csv"`
	// HttpDumpDir receives a dump of every http message when set.
	HttpDumpDir string `json:"http_dump_dir"`
}

type Config struct {
	Storefront  StorefrontConfig  `json:"storefront"`
	WooCommerce WooCommerceConfig `json:"woocommerce"`
	Files       FilesConfig       `json:"files"`
	RunLog      runlog.Config     `json:"run_log"`
	Smtp        report.SmtpConfig `json:"smtp"`
	// Timezone is the location run timestamps are displayed in, empty is local time.
	Timezone string `json:"timezone"`
	// Schedule is the cron spec compare passes run on in schedule mode.
	Schedule string `json:"schedule"`
	Verbose  bool   `json:"verbose"`
}

// Load reads the config file (with its .local override), a .env file in the working directory
// and the WP_API_* environment variables, in increasing order of priority.
// A missing config file is not an error.
func Load(path string) (Config, error) {
	config, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	config.applyEnv()
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBaseUrl); v != "" {
		c.WooCommerce.BaseUrl = v
	}
	if v := os.Getenv(EnvConsumerKey); v != "" {
		c.WooCommerce.ConsumerKey = v
	}
	if v := os.Getenv(EnvConsumerSecret); v != "" {
		c.WooCommerce.ConsumerSecret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Storefront.Workers <= 0 {
		c.Storefront.Workers = 4
	}
	if c.Storefront.Retry.MaxAttempts <= 0 {
		c.Storefront.Retry = retry.Default
	}
	if c.Storefront.TimeoutSeconds <= 0 {
		c.Storefront.TimeoutSeconds = 30
	}
	if c.WooCommerce.RequestTimeoutSeconds <= 0 {
		c.WooCommerce.RequestTimeoutSeconds = 30
	}
	if c.Files.SourceCsv == "" {
		c.Files.SourceCsv = DefaultSourceCsv
	}
	if c.Files.RemoteCsv == "" {
		c.Files.RemoteCsv = DefaultRemoteCsv
	}
}

// HttpOutput is the dump target of http messages, nil if dumps are disabled.
func (c Config) HttpOutput() (telemetry.InstrumentOutput, error) {
	if c.Files.HttpDumpDir == "" {
		return nil, nil
	}
	output, err := telemetry.NewFilesystemOutput(c.Files.HttpDumpDir)
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (c Config) StorefrontOptions(output telemetry.InstrumentOutput) (storefront.Options, error) {
	if len(c.Storefront.CategoryUrls) == 0 {
		return storefront.Options{}, ErrNoCategories
	}
	return storefront.Options{
		BaseUrl:           c.Storefront.BaseUrl,
		Workers:           c.Storefront.Workers,
		Retry:             c.Storefront.Retry,
		RequestsPerSecond: c.Storefront.RequestsPerSecond,
		Timeout:           time.Duration(c.Storefront.TimeoutSeconds) * time.Second,
		SearchPath:        c.Storefront.SearchPath,
		BypassCloudflare:  c.Storefront.BypassCloudflare,
		UserAgent:         c.Storefront.UserAgent,
		Output:            output,
	}, nil
}

func (c Config) WooCommerceOptions(output telemetry.InstrumentOutput) woocommerce.Options {
	return woocommerce.Options{
		BaseUrl:        c.WooCommerce.BaseUrl,
		ConsumerKey:    c.WooCommerce.ConsumerKey,
		ConsumerSecret: c.WooCommerce.ConsumerSecret,
		Timeout:        c.RequestTimeout(),
		PerPage:        c.WooCommerce.PerPage,
		ForceDelete:    c.WooCommerce.ForceDelete,
		Output:         output,
	}
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.WooCommerce.RequestTimeoutSeconds) * time.Second
}

func (c Config) MutatorOptions(dryRun bool) mutator.Options {
	return mutator.Options{
		RequestTimeout: c.RequestTimeout(),
		DryRun:         dryRun,
	}
}
