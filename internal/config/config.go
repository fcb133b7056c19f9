// Package config provides YAML-based configuration loading for WatchTower.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level WatchTower configuration, loaded from watchtower.yaml.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	State        StateConfig        `yaml:"state"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
	Images       ImagesConfig       `yaml:"images"`
	LLM          LLMConfig          `yaml:"llm"`
	Conversation ConversationConfig `yaml:"conversation"`
	Idle         IdleConfig         `yaml:"idle"`
	SMS          SMSConfig          `yaml:"sms"`
	Escalation   EscalationConfig   `yaml:"escalation"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig controls the webhook HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects and configures the incident database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// StateConfig selects the conversation state store.
type StateConfig struct {
	Store string `yaml:"store"` // "memory" or "database"
}

// CatalogConfig points at a procedure catalog file. Empty uses the built-in catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// KnowledgeConfig points at the document used for general question answering.
type KnowledgeConfig struct {
	Path string `yaml:"path"`
}

// ImagesConfig controls how step image references become URLs.
type ImagesConfig struct {
	BaseURL string `yaml:"base_url"`
	Dir     string `yaml:"dir"` // served under /images when set
}

// LLMConfig configures the reasoning service.
type LLMConfig struct {
	Provider            string        `yaml:"provider"` // "anthropic" or "gemini"
	APIKey              string        `yaml:"api_key"`
	Model               string        `yaml:"model"`
	BaseURL             string        `yaml:"base_url"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxTokens           int           `yaml:"max_tokens"`
	ConfidenceThreshold int           `yaml:"confidence_threshold"`
}

// ConversationConfig tunes the state machine.
type ConversationConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	HistoryLimit int `yaml:"history_limit"`
}

// IdleConfig tunes the idle-conversation scan.
type IdleConfig struct {
	ScanSchedule string        `yaml:"scan_schedule"`
	Timeout      time.Duration `yaml:"timeout"`
	AbandonAfter time.Duration `yaml:"abandon_after"`
}

// SMSConfig selects the SMS transport.
type SMSConfig struct {
	Provider    string            `yaml:"provider"` // "ringcentral" or "console"
	RingCentral RingCentralConfig `yaml:"ringcentral"`
}

// RingCentralConfig holds RingCentral platform credentials.
type RingCentralConfig struct {
	Server            string `yaml:"server"`
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	JWT               string `yaml:"jwt"`
	FromNumber        string `yaml:"from_number"`
	VerificationToken string `yaml:"verification_token"`
}

// EscalationConfig lists the supervisor channels notified on escalation.
type EscalationConfig struct {
	SupervisorPhone string        `yaml:"supervisor_phone"`
	Slack           SlackConfig   `yaml:"slack"`
	Discord         DiscordConfig `yaml:"discord"`
	GitHub          GitHubConfig  `yaml:"github"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// GitHubConfig holds settings for opening maintenance issues.
type GitHubConfig struct {
	Token  string   `yaml:"token"`
	Owner  string   `yaml:"owner"`
	Repo   string   `yaml:"repo"`
	Labels []string `yaml:"labels"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. ${VAR} references
// are expanded from the environment before parsing.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and the
// console SMS transport. Used by commands that can run without a config file.
func Default() *Config {
	var cfg Config
	cfg.SMS.Provider = "console"
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "watchtower.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "watchtower"
		}
	}
	if c.State.Store == "" {
		c.State.Store = "memory"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.Model = "gemini-2.5-flash"
		default:
			c.LLM.Model = "claude-sonnet-4-20250514"
		}
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 20 * time.Second
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 300
	}
	if c.LLM.ConfidenceThreshold == 0 {
		c.LLM.ConfidenceThreshold = 70
	}
	if c.Conversation.MaxRetries == 0 {
		c.Conversation.MaxRetries = 2
	}
	if c.Conversation.HistoryLimit == 0 {
		c.Conversation.HistoryLimit = 500
	}
	if c.Idle.ScanSchedule == "" {
		c.Idle.ScanSchedule = "@every 1m"
	}
	if c.Idle.Timeout == 0 {
		c.Idle.Timeout = 15 * time.Minute
	}
	if c.Idle.AbandonAfter == 0 {
		c.Idle.AbandonAfter = 2 * time.Hour
	}
	if c.SMS.Provider == "" {
		c.SMS.Provider = "ringcentral"
	}
	if c.SMS.RingCentral.Server == "" {
		c.SMS.RingCentral.Server = "https://platform.ringcentral.com"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.User == "" {
		errs = append(errs, "database.user is required for mysql")
	}
	switch c.State.Store {
	case "memory", "database":
	default:
		errs = append(errs, fmt.Sprintf("state.store %q must be memory or database", c.State.Store))
	}
	switch c.LLM.Provider {
	case "anthropic", "gemini":
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q must be anthropic or gemini", c.LLM.Provider))
	}
	if c.LLM.ConfidenceThreshold < 0 || c.LLM.ConfidenceThreshold > 100 {
		errs = append(errs, "llm.confidence_threshold must be between 0 and 100")
	}
	if c.Conversation.MaxRetries < 1 {
		errs = append(errs, "conversation.max_retries must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Idle.ScanSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("idle.scan_schedule: %v", err))
	}
	if c.Idle.AbandonAfter < c.Idle.Timeout {
		errs = append(errs, "idle.abandon_after must not be shorter than idle.timeout")
	}
	switch c.SMS.Provider {
	case "console":
	case "ringcentral":
		rc := c.SMS.RingCentral
		if rc.ClientID == "" {
			errs = append(errs, "sms.ringcentral.client_id is required")
		}
		if rc.ClientSecret == "" {
			errs = append(errs, "sms.ringcentral.client_secret is required")
		}
		if rc.JWT == "" {
			errs = append(errs, "sms.ringcentral.jwt is required")
		}
		if rc.FromNumber == "" {
			errs = append(errs, "sms.ringcentral.from_number is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("sms.provider %q must be ringcentral or console", c.SMS.Provider))
	}
	if (c.Escalation.Slack.BotToken == "") != (c.Escalation.Slack.ChannelID == "") {
		errs = append(errs, "escalation.slack needs both bot_token and channel_id")
	}
	if (c.Escalation.Discord.BotToken == "") != (c.Escalation.Discord.ChannelID == "") {
		errs = append(errs, "escalation.discord needs both bot_token and channel_id")
	}
	if gh := c.Escalation.GitHub; gh.Token != "" && (gh.Owner == "" || gh.Repo == "") {
		errs = append(errs, "escalation.github needs owner and repo when token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
