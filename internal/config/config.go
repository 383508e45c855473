package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`

	Runner struct {
		ScenariosPath string        `yaml:"scenarios_path"`
		OutputDir     string        `yaml:"output_dir"`
		Models        []string      `yaml:"models"`
		Pause         time.Duration `yaml:"pause"`
	} `yaml:"runner"`

	Analysis struct {
		ResultsDir          string `yaml:"results_dir"`
		ClassificationsPath string `yaml:"classifications_path"`
		SummaryPath         string `yaml:"summary_path"`
	} `yaml:"analysis"`

	Database struct {
		Path string `yaml:"path"` // SQLite path; empty disables the run archive
	} `yaml:"database"`
}

// ProviderConfig holds credentials and transport settings for one vendor
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

const (
	DefaultGPTModel    = "gpt-5.2"
	DefaultClaudeModel = "claude-sonnet-4-5-20250929"
)

// LoadConfig loads configuration from a YAML file. A missing file yields defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	config.applyDefaults()
	config.expandEnv()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8002"
	}

	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 2 * time.Minute
	}
	if c.Anthropic.BaseURL == "" {
		c.Anthropic.BaseURL = "https://api.anthropic.com/v1"
	}
	if c.Anthropic.Timeout == 0 {
		c.Anthropic.Timeout = 2 * time.Minute
	}

	if c.Runner.ScenariosPath == "" {
		c.Runner.ScenariosPath = "data/test_scenarios.csv"
	}
	if c.Runner.OutputDir == "" {
		c.Runner.OutputDir = "results/raw_responses"
	}
	if len(c.Runner.Models) == 0 {
		c.Runner.Models = []string{DefaultGPTModel, DefaultClaudeModel}
	}
	if c.Runner.Pause == 0 {
		c.Runner.Pause = time.Second
	}

	if c.Analysis.ResultsDir == "" {
		c.Analysis.ResultsDir = c.Runner.OutputDir
	}
	if c.Analysis.ClassificationsPath == "" {
		c.Analysis.ClassificationsPath = "results/manual_classifications.csv"
	}
	if c.Analysis.SummaryPath == "" {
		c.Analysis.SummaryPath = "results/analysis_summary.csv"
	}
}

// expandEnv resolves ${VAR} references in API keys and falls back to the
// conventional vendor environment variables.
func (c *Config) expandEnv() {
	c.OpenAI.APIKey = os.ExpandEnv(c.OpenAI.APIKey)
	c.Anthropic.APIKey = os.ExpandEnv(c.Anthropic.APIKey)

	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	c.Database.Path = os.ExpandEnv(c.Database.Path)
}
