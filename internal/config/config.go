package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
		// File enables a rotating log file next to stderr output.
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"logging"`
	Server struct {
		Enabled             bool     `yaml:"enabled"`
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
	} `yaml:"server"`
	Feed struct {
		PublisherAddr    string        `yaml:"publisher_addr"`
		ListenAddr       string        `yaml:"listen_addr"`
		ReceiveTimeout   time.Duration `yaml:"receive_timeout"`
		RateByteOrder    string        `yaml:"rate_byte_order"`
		MaxDatagramBytes int           `yaml:"max_datagram_bytes"`
	} `yaml:"feed"`
	Arbitrage struct {
		ReferenceCurrency       string        `yaml:"reference_currency"`
		PriceExpirationInterval time.Duration `yaml:"price_expiration_interval"`
		RelaxationTolerance     float64       `yaml:"relaxation_tolerance"`
		CycleTolerance          float64       `yaml:"cycle_tolerance"`
		StartingNotional        float64       `yaml:"starting_notional"`
		PrintQuotes             bool          `yaml:"print_quotes"`
	} `yaml:"arbitrage"`
	Redis struct {
		Enabled             bool    `yaml:"enabled"`
		Addr                string  `yaml:"addr"`
		Password            string  `yaml:"password"`
		DB                  int     `yaml:"db"`
		Channel             string  `yaml:"channel"`
		MaxPublishPerSecond float64 `yaml:"max_publish_per_second"`
	} `yaml:"redis"`
	Replay struct {
		File        string `yaml:"file"`
		BatchFrames int    `yaml:"batch_frames"`
	} `yaml:"replay"`
}

// Default returns the built-in settings before any file or env override.
func Default() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Logging.MaxSizeMB = 100
	c.Logging.MaxBackups = 3
	c.Server.Enabled = true
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Feed.PublisherAddr = "localhost:50403"
	c.Feed.ListenAddr = "127.0.0.1:0"
	c.Feed.ReceiveTimeout = 1500 * time.Millisecond
	c.Feed.RateByteOrder = "little"
	c.Feed.MaxDatagramBytes = 4096
	c.Arbitrage.ReferenceCurrency = "USD"
	c.Arbitrage.PriceExpirationInterval = 1500 * time.Millisecond
	c.Arbitrage.RelaxationTolerance = 1e-12
	c.Arbitrage.CycleTolerance = 1e-12
	c.Arbitrage.StartingNotional = 100
	c.Arbitrage.PrintQuotes = true
	c.Redis.Enabled = false
	c.Redis.Addr = "localhost:6379"
	c.Redis.Channel = "fxarb:arbitrage"
	c.Redis.MaxPublishPerSecond = 20
	c.Replay.BatchFrames = 16
	return c
}

// Load builds the configuration from defaults, the YAML file named by
// FXARB_CONFIG, a .env file if present and FXARB_* variables, in that order.
func Load() Config {
	c := Default()
	if path := os.Getenv("FXARB_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	_ = godotenv.Load()

	setStr(&c.Logging.Level, "FXARB_LOG_LEVEL")
	setBool(&c.Logging.Pretty, "FXARB_LOG_PRETTY")
	setStr(&c.Logging.File, "FXARB_LOG_FILE")
	setBool(&c.Server.Enabled, "FXARB_HTTP_ENABLED")
	setStr(&c.Server.Addr, "FXARB_HTTP_ADDR")
	setBool(&c.Server.Pprof, "FXARB_PPROF")
	if v := os.Getenv("FXARB_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	setStr(&c.Feed.PublisherAddr, "FXARB_PUBLISHER_ADDR")
	setStr(&c.Feed.ListenAddr, "FXARB_LISTEN_ADDR")
	setDuration(&c.Feed.ReceiveTimeout, "FXARB_RECEIVE_TIMEOUT")
	setStr(&c.Feed.RateByteOrder, "FXARB_RATE_BYTE_ORDER")
	setStr(&c.Arbitrage.ReferenceCurrency, "FXARB_REFERENCE_CURRENCY")
	setDuration(&c.Arbitrage.PriceExpirationInterval, "FXARB_PRICE_EXPIRATION_INTERVAL")
	setFloat(&c.Arbitrage.RelaxationTolerance, "FXARB_RELAXATION_TOLERANCE")
	setFloat(&c.Arbitrage.CycleTolerance, "FXARB_CYCLE_TOLERANCE")
	setFloat(&c.Arbitrage.StartingNotional, "FXARB_STARTING_NOTIONAL")
	setBool(&c.Arbitrage.PrintQuotes, "FXARB_PRINT_QUOTES")
	setBool(&c.Redis.Enabled, "FXARB_REDIS_ENABLED")
	setStr(&c.Redis.Addr, "FXARB_REDIS_ADDR")
	// secrets only from env
	setStr(&c.Redis.Password, "FXARB_REDIS_PASSWORD")
	setStr(&c.Redis.Channel, "FXARB_REDIS_CHANNEL")
	setStr(&c.Replay.File, "FXARB_REPLAY_FILE")
	return c
}

// Validate reports settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Arbitrage.ReferenceCurrency) != 3 {
		errs = append(errs, fmt.Errorf("arbitrage.reference_currency %q must be 3 characters", c.Arbitrage.ReferenceCurrency))
	}
	if c.Arbitrage.PriceExpirationInterval <= 0 {
		errs = append(errs, errors.New("arbitrage.price_expiration_interval must be positive"))
	}
	if c.Arbitrage.RelaxationTolerance <= 0 || c.Arbitrage.CycleTolerance <= 0 {
		errs = append(errs, errors.New("arbitrage tolerances must be positive"))
	}
	if c.Arbitrage.StartingNotional <= 0 {
		errs = append(errs, errors.New("arbitrage.starting_notional must be positive"))
	}
	if c.Feed.ReceiveTimeout <= 0 {
		errs = append(errs, errors.New("feed.receive_timeout must be positive"))
	}
	switch c.Feed.RateByteOrder {
	case "little", "big":
	default:
		errs = append(errs, fmt.Errorf("feed.rate_byte_order %q must be little or big", c.Feed.RateByteOrder))
	}
	if c.Feed.MaxDatagramBytes < 32 {
		errs = append(errs, errors.New("feed.max_datagram_bytes must hold at least one frame"))
	}
	if c.Redis.Enabled && c.Redis.Channel == "" {
		errs = append(errs, errors.New("redis.channel is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "1", "true":
		*dst = true
	case "0", "false":
		*dst = false
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
