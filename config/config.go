package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	FallbackCSV  = "csv"
	FallbackNone = "none"
)

type Config struct {
	LLM     LLMSection     `toml:"llm"`
	Paths   PathsSection   `toml:"paths"`
	Vault   VaultSection   `toml:"vault"`
	IMAP    IMAPSection    `toml:"imap"`
	Deps    DepsSection    `toml:"deps"`
	Logging LoggingSection `toml:"logging"`
}

type LLMSection struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// Fallback is what a request does when the LLM is unusable: "csv" runs
	// the built-in CSV combiner in degraded mode, "none" fails the request.
	Fallback string `toml:"fallback"`
}

type PathsSection struct {
	InputDir        string `toml:"input_dir"`
	OutputDir       string `toml:"output_dir"`
	ActionsDir      string `toml:"actions_dir"`
	PluginsManifest string `toml:"plugins_manifest"`
	IndexPath       string `toml:"index_path"`
}

type VaultSection struct {
	Binary          string            `toml:"binary"`
	Server          string            `toml:"server"`
	Email           string            `toml:"email"`
	Password        string            `toml:"-"`
	SessionFile     string            `toml:"session_file"`
	SessionIdentity string            `toml:"session_identity"`
	SeedsFile       string            `toml:"seeds_file"`
	EnvMap          map[string]string `toml:"env_map"`
}

type IMAPSection struct {
	Server   string `toml:"server"`
	Port     int    `toml:"port"`
	Email    string `toml:"email"`
	Password string `toml:"-"`
	Folder   string `toml:"folder"`
}

type DepsSection struct {
	// Installer is a command template; {name} is replaced by the
	// dependency name. Empty disables installing.
	Installer  string            `toml:"installer"`
	Installers map[string]string `toml:"installers"`
}

type LoggingSection struct {
	Level string `toml:"level"`
	Debug bool   `toml:"debug"`
}

// Timeout returns the LLM request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// Load builds the configuration from defaults, the TOML file at path (a
// missing file is not an error), .env and the process environment, in
// that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// .env never overrides variables already set in the environment
	_ = godotenv.Load()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	port := "8082"
	return &Config{
		LLM: LLMSection{
			BaseURL:        "http://localhost:11434",
			Model:          "mistral:7b",
			TimeoutSeconds: 30,
			Fallback:       FallbackCSV,
		},
		Paths: PathsSection{
			InputDir:   "data",
			OutputDir:  "output",
			ActionsDir: "actions",
			IndexPath:  "dun.bleve",
		},
		Vault: VaultSection{
			Binary:      "bw",
			Server:      "http://localhost:" + port,
			SessionFile: "session.txt",
			EnvMap: map[string]string{
				"IMAP_USER":    "intranet",
				"IMAP_PASS":    "intranet",
				"GMAIL_USER":   "gmail",
				"GMAIL_PASS":   "gmail",
				"OUTLOOK_USER": "outlook",
				"OUTLOOK_PASS": "outlook",
				"GITHUB_USER":  "github",
				"GITHUB_PASS":  "github",
			},
		},
		IMAP: IMAPSection{
			Port:   993,
			Folder: "INBOX",
		},
		Logging: LoggingSection{
			Level: "info",
		},
	}
}

func (c *Config) applyEnvOverrides() {
	setString(&c.LLM.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.LLM.Model, "OLLAMA_MODEL")
	setInt(&c.LLM.TimeoutSeconds, "OLLAMA_TIMEOUT")
	setString(&c.LLM.Fallback, "DUN_FALLBACK")

	setString(&c.Paths.InputDir, "INPUT_DIR")
	setString(&c.Paths.OutputDir, "OUTPUT_DIR")
	setString(&c.Paths.ActionsDir, "DUN_ACTIONS_DIR")
	setString(&c.Paths.PluginsManifest, "DUN_PLUGINS_MANIFEST")
	setString(&c.Paths.IndexPath, "DUN_INDEX_PATH")

	setString(&c.Vault.Binary, "BW_BIN")
	if port := os.Getenv("PORT"); port != "" {
		c.Vault.Server = "http://localhost:" + port
	}
	setString(&c.Vault.Server, "BW_SERVER")
	setString(&c.Vault.Email, "BW_EMAIL")
	setString(&c.Vault.Password, "BW_PASSWORD")
	setString(&c.Vault.SessionFile, "BW_SESSION_FILE")
	setString(&c.Vault.SessionIdentity, "BW_SESSION_IDENTITY")
	setString(&c.Vault.SeedsFile, "BW_SEEDS_FILE")

	setString(&c.IMAP.Server, "IMAP_SERVER")
	setInt(&c.IMAP.Port, "IMAP_PORT")
	setString(&c.IMAP.Email, "IMAP_EMAIL")
	setString(&c.IMAP.Password, "IMAP_PASSWORD")
	setString(&c.IMAP.Folder, "IMAP_FOLDER")

	setString(&c.Deps.Installer, "DUN_INSTALLER")

	setString(&c.Logging.Level, "LOG_LEVEL")
	if v, ok := os.LookupEnv("DEBUG"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Logging.Debug = b
		}
	}
}

func (c *Config) Validate() error {
	switch c.LLM.Fallback {
	case FallbackCSV, FallbackNone:
	default:
		return fmt.Errorf("llm.fallback must be %q or %q, got %q", FallbackCSV, FallbackNone, c.LLM.Fallback)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive")
	}
	u, err := url.Parse(c.LLM.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("llm.base_url is not a valid URL: %q", c.LLM.BaseURL)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port out of range: %d", c.IMAP.Port)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
