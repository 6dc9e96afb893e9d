package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level bridge configuration.
type Config struct {
	Bridge    BridgeConfig    `json:"bridge"`
	Provider  ProviderConfig  `json:"provider"`
	API       APIConfig       `json:"api"`
	Portal    PortalConfig    `json:"portal"`
	Connector ConnectorConfig `json:"connector"`
	Notify    NotifyConfig    `json:"notify"`
	Janitor   JanitorConfig   `json:"janitor"`
}

// BridgeConfig holds service-level settings.
type BridgeConfig struct {
	DataDir string `json:"data_dir"`
	// Poll intervals for the visitor widget and the agent console, in
	// seconds. Zero means the defaults (2 and 3).
	VisitorPollSecs int `json:"visitor_poll_secs,omitempty"`
	ConsolePollSecs int `json:"console_poll_secs,omitempty"`
}

// ProviderConfig holds language-model service settings.
type ProviderConfig struct {
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url,omitempty"`
	Model         string `json:"model,omitempty"`
	AnalysisModel string `json:"analysis_model,omitempty"`
	TimeoutSecs   int    `json:"timeout_secs,omitempty"`
}

// APIConfig holds REST server settings. Key, when set, protects the agent
// console endpoints with a bearer token.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"key,omitempty"`
}

// PortalConfig holds the console login gate settings.
type PortalConfig struct {
	Passkey string `json:"passkey,omitempty"`
}

// ConnectorConfig holds visitor channel settings.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig holds Telegram bot settings for the visitor channel.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// NotifyConfig holds ticket-event notification settings.
type NotifyConfig struct {
	Slack *SlackConfig `json:"slack,omitempty"`
}

// SlackConfig holds the Slack notifier settings.
type SlackConfig struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

// JanitorConfig holds the stale-ticket sweep settings.
type JanitorConfig struct {
	// Spec is a cron expression; empty disables the sweeps.
	Spec string `json:"spec,omitempty"`
	// StaleMins is how long an Open ticket may sit unanswered before its
	// priority is raised. Zero means the default (30).
	StaleMins int `json:"stale_mins,omitempty"`
}

// Timeout returns the per-call AI deadline; zero means the client default.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// StaleAfter returns the unanswered window before a priority bump.
func (j JanitorConfig) StaleAfter() time.Duration {
	return time.Duration(j.StaleMins) * time.Minute
}

// VisitorPoll returns the visitor widget's poll interval.
func (c *Config) VisitorPoll() time.Duration {
	if c.Bridge.VisitorPollSecs > 0 {
		return time.Duration(c.Bridge.VisitorPollSecs) * time.Second
	}
	return 2 * time.Second
}

// ConsolePoll returns the agent console's poll interval.
func (c *Config) ConsolePoll() time.Duration {
	if c.Bridge.ConsolePollSecs > 0 {
		return time.Duration(c.Bridge.ConsolePollSecs) * time.Second
	}
	return 3 * time.Second
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with the BRIDGE_
// prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Bridge: BridgeConfig{
			DataDir:         getenv("BRIDGE_DATA_DIR", "/data"),
			VisitorPollSecs: getenvInt("BRIDGE_VISITOR_POLL_SECS", 0),
			ConsolePollSecs: getenvInt("BRIDGE_CONSOLE_POLL_SECS", 0),
		},
		Provider: ProviderConfig{
			APIKey:        os.Getenv("BRIDGE_OPENAI_API_KEY"),
			BaseURL:       os.Getenv("BRIDGE_OPENAI_BASE_URL"),
			Model:         os.Getenv("BRIDGE_MODEL"),
			AnalysisModel: os.Getenv("BRIDGE_ANALYSIS_MODEL"),
			TimeoutSecs:   getenvInt("BRIDGE_AI_TIMEOUT_SECS", 0),
		},
		API: APIConfig{
			Host: getenv("BRIDGE_API_HOST", "0.0.0.0"),
			Port: getenvInt("BRIDGE_API_PORT", 8080),
			Key:  os.Getenv("BRIDGE_API_KEY"),
		},
		Portal: PortalConfig{
			Passkey: os.Getenv("BRIDGE_PORTAL_PASSKEY"),
		},
		Janitor: JanitorConfig{
			Spec:      os.Getenv("BRIDGE_JANITOR_SPEC"),
			StaleMins: getenvInt("BRIDGE_JANITOR_STALE_MINS", 0),
		},
	}

	if token := os.Getenv("BRIDGE_TELEGRAM_TOKEN"); token != "" {
		cfg.Connector.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("BRIDGE_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: BRIDGE_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connector.Telegram.AllowFrom = parsed
		}
	}

	if token := os.Getenv("BRIDGE_SLACK_TOKEN"); token != "" {
		cfg.Notify.Slack = &SlackConfig{
			Token:   token,
			Channel: getenv("BRIDGE_SLACK_CHANNEL", "#support"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.DataDir == "" {
		errs = append(errs, "bridge.data_dir is required")
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, "provider.api_key is required")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}
	if c.Connector.Telegram != nil && c.Connector.Telegram.Token == "" {
		errs = append(errs, "connector.telegram.token is required")
	}
	if c.Notify.Slack != nil {
		if c.Notify.Slack.Token == "" {
			errs = append(errs, "notify.slack.token is required")
		}
		if c.Notify.Slack.Channel == "" {
			errs = append(errs, "notify.slack.channel is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
