package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Regions    []Region   `yaml:"regions"`
	AppStore   AppStore   `yaml:"appstore"`
	GooglePlay GooglePlay `yaml:"google_play"`
	News       News       `yaml:"news"`
	Collect    Collect    `yaml:"collect"`
	Detection  Detection  `yaml:"detection"`
	Storage    Storage    `yaml:"storage"`
	Analysis   Analysis   `yaml:"analysis"`
	Notify     Notify     `yaml:"notify"`
	Schedule   Schedule   `yaml:"schedule"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Region struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	Lang string `yaml:"lang"`
}

type Chart struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

type AppStore struct {
	Enabled bool    `yaml:"enabled"`
	GenreID string  `yaml:"genre_id"`
	Limit   int     `yaml:"limit"`
	Charts  []Chart `yaml:"charts"`
}

type GooglePlay struct {
	Enabled bool    `yaml:"enabled"`
	Limit   int     `yaml:"limit"`
	Charts  []Chart `yaml:"charts"`
}

type News struct {
	Enabled      bool    `yaml:"enabled"`
	Hours        int     `yaml:"hours"`
	FetchContent bool    `yaml:"fetch_content"`
	Feeds        []Feed  `yaml:"feeds"`
	NewsAPI      NewsAPI `yaml:"newsapi"`
}

type NewsAPI struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
	PageSize  int    `yaml:"page_size"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Collect struct {
	Workers        int    `yaml:"workers"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type Detection struct {
	Threshold int `yaml:"threshold"`
	TopN      int `yaml:"top_n"`
}

type Storage struct {
	Backend string `yaml:"backend"` // "sqlite" or "file"
	DataDir string `yaml:"data_dir"`
	Redis   Redis  `yaml:"redis"`
}

type Redis struct {
	URLEnv     string `yaml:"url_env"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type Analysis struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	OllamaURL     string `yaml:"ollama_url"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	APIKeyEnv     string `yaml:"api_key_env"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type Notify struct {
	WeCom WeCom `yaml:"wecom"`
	Email Email `yaml:"email"`
}

type WeCom struct {
	WebhookURLEnv string `yaml:"webhook_url_env"`
}

type Email struct {
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	UserEnv     string   `yaml:"user_env"`
	PasswordEnv string   `yaml:"password_env"`
	To          []string `yaml:"to"`
}

type Schedule struct {
	Daily  string `yaml:"daily"`
	Weekly string `yaml:"weekly"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// ConfigDir returns the XDG config directory for chartpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "chartpulse")
}

// DataDir returns the XDG data directory for chartpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "chartpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/chartpulse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'chartpulse init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		AppStore:   AppStore{Enabled: true, GenreID: "6014", Limit: 100},
		GooglePlay: GooglePlay{Enabled: true, Limit: 100},
		News: News{
			Enabled: true,
			Hours:   48,
			NewsAPI: NewsAPI{APIKeyEnv: "NEWSAPI_KEY", Query: `"mobile game" OR "mobile games"`, PageSize: 50},
		},
		Collect: Collect{
			Workers:        4,
			TimeoutSeconds: 20,
			UserAgent:      "Mozilla/5.0 (compatible; chartpulse/1.0)",
		},
		Detection: Detection{Threshold: 5, TopN: 20},
		Storage: Storage{
			Backend: "sqlite",
			Redis:   Redis{URLEnv: "REDIS_URL", TTLSeconds: 3600},
		},
		Analysis: Analysis{
			Provider:      "openai",
			Model:         "qwen2.5:7b",
			OllamaURL:     "http://localhost:11434",
			OpenAIModel:   "gpt-4o-mini",
			OpenAIBaseURL: "https://api.openai.com/v1",
			APIKeyEnv:     "OPENAI_API_KEY",
			MaxTokens:     2000,
		},
		Notify: Notify{
			WeCom: WeCom{WebhookURLEnv: "WECOM_WEBHOOK_URL"},
			Email: Email{
				SMTPHost:    "smtp.gmail.com",
				SMTPPort:    587,
				UserEnv:     "EMAIL_USER",
				PasswordEnv: "EMAIL_PASS",
			},
		},
		Schedule: Schedule{Daily: "0 1 * * *", Weekly: "0 1 * * 1"},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "INFO", Encoding: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Backend != "sqlite" && c.Storage.Backend != "file" {
		return fmt.Errorf("unknown storage backend %q (want sqlite or file)", c.Storage.Backend)
	}
	for _, r := range c.Regions {
		if r.Code == "" {
			return fmt.Errorf("region without code in config")
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// RegionName returns the display name configured for a region code.
func (c *Config) RegionName(code string) string {
	for _, r := range c.Regions {
		if r.Code == code && r.Name != "" {
			return r.Name
		}
	}
	return code
}

// CollectTimeout returns the per-request timeout for collectors.
func (c *Config) CollectTimeout() time.Duration {
	if c.Collect.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.Collect.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
