package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"FountainProtocol/internal/calculator"
)

const (
	SourceMirror = "mirror"
	SourceStatic = "static"
)

// Config holds all application configuration.
type Config struct {
	Oracle struct {
		Protocol          string  `yaml:"protocol"`
		BaseAmount        int64   `yaml:"base_amount"`
		GrowthThreshold   float64 `yaml:"growth_threshold"`
		GrowthIncrement   float64 `yaml:"growth_increment"`
		DecayEnabled      bool    `yaml:"decay_enabled"`
		DecayAmount       float64 `yaml:"decay_amount"`
		MultiplierCap     float64 `yaml:"multiplier_cap"`
		BoosterMultiplier float64 `yaml:"booster_multiplier"`
		BoosterCap        int64   `yaml:"booster_cap"`
		EntitlementCap    int64   `yaml:"entitlement_cap"`
	} `yaml:"oracle"`
	Source string `yaml:"source"`
	Mirror struct {
		BaseURL           string   `yaml:"base_url"`
		MembershipTokenID string   `yaml:"membership_token_id"`
		DonorBadgeTokenID string   `yaml:"donor_badge_token_id"`
		ExcludeAccounts   []string `yaml:"exclude_accounts"`
		MinBalance        int64    `yaml:"min_balance"`
		PageSize          int      `yaml:"page_size"`
		RequestsPerSecond float64  `yaml:"requests_per_second"`
	} `yaml:"mirror"`
	Static struct {
		ActiveHolders int64 `yaml:"active_holders"`
		NewDonors     int64 `yaml:"new_donors"`
	} `yaml:"static"`
	Publisher struct {
		BaseURL string `yaml:"base_url"`
		TopicID string `yaml:"topic_id"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"publisher"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		StateFile  string `yaml:"state_file"`
	} `yaml:"database"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// Default returns the configuration used for anything the file and environment leave unset.
func Default() *Config {
	cfg := &Config{}
	p := calculator.DefaultParams()
	cfg.Oracle.Protocol = "fountain"
	cfg.Oracle.BaseAmount = p.BaseAmount
	cfg.Oracle.GrowthThreshold = p.GrowthThreshold.InexactFloat64()
	cfg.Oracle.GrowthIncrement = p.GrowthIncrement.InexactFloat64()
	cfg.Oracle.DecayEnabled = p.DecayEnabled
	cfg.Oracle.DecayAmount = p.DecayAmount.InexactFloat64()
	cfg.Oracle.MultiplierCap = p.MultiplierCap.InexactFloat64()
	cfg.Oracle.BoosterMultiplier = p.BoosterMultiplier.InexactFloat64()
	cfg.Oracle.BoosterCap = p.BoosterCap
	cfg.Oracle.EntitlementCap = p.EntitlementCap
	cfg.Source = SourceMirror
	cfg.Mirror.BaseURL = "https://mainnet-public.mirrornode.hedera.com"
	cfg.Mirror.MinBalance = 1
	cfg.Mirror.PageSize = 100
	cfg.Mirror.RequestsPerSecond = 10
	cfg.Schedule.DailyCron = "0 5 0 * * *"
	cfg.Database.SQLitePath = "data/fountain_oracle.db"
	cfg.Metrics.ListenAddr = ":9090"
	return cfg
}

// Load reads config from a YAML file on top of the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ORACLE_SOURCE":        &c.Source,
		"MIRROR_NODE_URL":      &c.Mirror.BaseURL,
		"MEMBERSHIP_TOKEN_ID":  &c.Mirror.MembershipTokenID,
		"DONOR_BADGE_TOKEN_ID": &c.Mirror.DonorBadgeTokenID,
		"TOPIC_GATEWAY_URL":    &c.Publisher.BaseURL,
		"TOPIC_ID":             &c.Publisher.TopicID,
		"TOPIC_API_KEY":        &c.Publisher.APIKey,
		"TELEGRAM_BOT_TOKEN":   &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":     &c.Telegram.ChatID,
		"CRON_DAILY":           &c.Schedule.DailyCron,
		"SQLITE_PATH":          &c.Database.SQLitePath,
		"STATE_FILE":           &c.Database.StateFile,
		"METRICS_ADDR":         &c.Metrics.ListenAddr,
		"HTTPS_PROXY":          &c.Proxy,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("TREASURY_ACCOUNTS"); v != "" {
		c.Mirror.ExcludeAccounts = nil
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				c.Mirror.ExcludeAccounts = append(c.Mirror.ExcludeAccounts, a)
			}
		}
	}
	if v := os.Getenv("DECAY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: DECAY_ENABLED: %v", calculator.ErrInvalidConfiguration, err)
		}
		c.Oracle.DecayEnabled = b
	}
	if v := os.Getenv("BASE_DAILY_AMOUNT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: BASE_DAILY_AMOUNT: %v", calculator.ErrInvalidConfiguration, err)
		}
		c.Oracle.BaseAmount = n
	}
	return nil
}

// Params converts the oracle section into formula parameters.
func (c *Config) Params() calculator.Params {
	o := c.Oracle
	return calculator.Params{
		BaseAmount:        o.BaseAmount,
		GrowthThreshold:   decimal.NewFromFloat(o.GrowthThreshold),
		GrowthIncrement:   decimal.NewFromFloat(o.GrowthIncrement),
		DecayEnabled:      o.DecayEnabled,
		DecayAmount:       decimal.NewFromFloat(o.DecayAmount),
		MultiplierCap:     decimal.NewFromFloat(o.MultiplierCap),
		BoosterMultiplier: decimal.NewFromFloat(o.BoosterMultiplier),
		BoosterCap:        o.BoosterCap,
		EntitlementCap:    o.EntitlementCap,
	}
}

// TopicEnabled reports whether audit records go to a consensus topic.
func (c *Config) TopicEnabled() bool {
	return c.Publisher.BaseURL != "" && c.Publisher.TopicID != ""
}

// TelegramEnabled reports whether the Telegram notifier is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks every recognized option. Errors wrap calculator.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Oracle.Protocol == "" {
		return invalid("oracle.protocol is required")
	}
	switch c.Source {
	case SourceMirror:
		if c.Mirror.BaseURL == "" {
			return invalid("mirror.base_url is required")
		}
		if c.Mirror.MembershipTokenID == "" {
			return invalid("mirror.membership_token_id is required")
		}
		if c.Mirror.DonorBadgeTokenID == "" {
			return invalid("mirror.donor_badge_token_id is required")
		}
		if c.Mirror.MinBalance <= 0 {
			return invalid("mirror.min_balance must be positive")
		}
		if c.Mirror.PageSize <= 0 || c.Mirror.PageSize > 100 {
			return invalid("mirror.page_size must be between 1 and 100")
		}
		if c.Mirror.RequestsPerSecond <= 0 {
			return invalid("mirror.requests_per_second must be positive")
		}
	case SourceStatic:
		if c.Static.ActiveHolders < 0 || c.Static.NewDonors < 0 {
			return invalid("static counts must not be negative")
		}
	default:
		return invalid(fmt.Sprintf("unknown source %q", c.Source))
	}
	if (c.Publisher.BaseURL == "") != (c.Publisher.TopicID == "") {
		return invalid("publisher.base_url and publisher.topic_id must be set together")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return invalid("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Telegram.Polling && !c.TelegramEnabled() {
		return invalid("telegram.polling needs bot_token and chat_id")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.DailyCron); err != nil {
		return invalid(fmt.Sprintf("schedule.daily_cron: %v", err))
	}
	if c.Database.SQLitePath == "" && c.Database.StateFile == "" {
		return invalid("database.sqlite_path or database.state_file is required")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", calculator.ErrInvalidConfiguration, msg)
}
