package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Mailbox       Mailbox       `yaml:"mailbox"`
	Feeds         []Feed        `yaml:"feeds"`
	Fetch         Fetch         `yaml:"fetch"`
	Registry      Registry      `yaml:"registry"`
	Batch         Batch         `yaml:"batch"`
	Summarization Summarization `yaml:"summarization"`
	Delivery      Delivery      `yaml:"delivery"`
	Output        Output        `yaml:"output"`
	Logging       Logging       `yaml:"logging"`
}

// Mailbox configures the IMAP source of alert messages. Credentials are
// referenced by environment variable name, never stored in the file.
type Mailbox struct {
	Server        string   `yaml:"server"`
	UserEnv       string   `yaml:"user_env"`
	PassEnv       string   `yaml:"pass_env"`
	LookbackHours int      `yaml:"lookback_hours"`
	Subjects      []string `yaml:"subjects"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Fetch struct {
	UserAgent      string   `yaml:"user_agent"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MinPDFBytes    int      `yaml:"min_pdf_bytes"`
	HostIntervalMS int      `yaml:"host_interval_ms"`
	HostJitterMS   int      `yaml:"host_jitter_ms"`
	SniffLabels    []string `yaml:"sniff_labels"`
}

type Registry struct {
	CrossrefMailto string `yaml:"crossref_mailto"`
	UnpaywallEmail string `yaml:"unpaywall_email"`
}

type Batch struct {
	AcquireLimit int `yaml:"acquire_limit"`
	AnalyzeLimit int `yaml:"analyze_limit"`
	MaxRetries   int `yaml:"max_retries"`
}

type Summarization struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	OllamaURL     string `yaml:"ollama_url"`
	OpenAIModel   string `yaml:"openai_model"`
	APIKeyEnv     string `yaml:"api_key_env"`
	MaxTokens     int    `yaml:"max_tokens"`
	MaxInputChars int    `yaml:"max_input_chars"`
}

type Delivery struct {
	SMTPServer  string `yaml:"smtp_server"`
	SMTPPort    int    `yaml:"smtp_port"`
	UserEnv     string `yaml:"user_env"`
	PassEnv     string `yaml:"pass_env"`
	To          string `yaml:"to"`
	MaxBundleMB int    `yaml:"max_bundle_mb"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for paperdigest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "paperdigest")
}

// DataDir returns the XDG data directory for paperdigest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "paperdigest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/paperdigest/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'paperdigest init' to create a default config",
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
		Mailbox: Mailbox{
			Server:        "imap.gmail.com:993",
			UserEnv:       "EMAIL_USER",
			PassEnv:       "EMAIL_PASS",
			LookbackHours: 24,
		},
		Fetch: Fetch{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
			TimeoutSeconds: 60,
			MinPDFBytes:    1024,
			HostIntervalMS: 2000,
			HostJitterMS:   750,
			SniffLabels:    []string{"download", "full text", "fulltext", "pdf"},
		},
		Registry: Registry{
			CrossrefMailto: "paperdigest@example.com",
			UnpaywallEmail: "paperdigest@example.com",
		},
		Batch: Batch{
			AcquireLimit: 25,
			AnalyzeLimit: 10,
			MaxRetries:   3,
		},
		Summarization: Summarization{
			Provider:      "ollama",
			Model:         "qwen2.5:7b",
			OllamaURL:     "http://localhost:11434",
			OpenAIModel:   "gpt-4o-mini",
			APIKeyEnv:     "OPENAI_API_KEY",
			MaxTokens:     1024,
			MaxInputChars: 50000,
		},
		Delivery: Delivery{
			SMTPServer:  "smtp.gmail.com",
			SMTPPort:    465,
			UserEnv:     "EMAIL_USER",
			PassEnv:     "EMAIL_PASS",
			MaxBundleMB: 19,
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DownloadDir returns the directory where fetched documents are materialized.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.GetDataDir(), "downloads")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
