package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Paths     PathsConfig     `yaml:"paths"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type GeminiConfig struct {
	// APIKey is never read from YAML; it comes from the GEMINI_API_KEY
	// environment variable so the config file stays committable.
	APIKey           string `yaml:"-"`
	SummaryModel     string `yaml:"summary_model"`
	FlashModel       string `yaml:"flash_model"`
	PollIntervalSecs int    `yaml:"poll_interval_secs"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

type PathsConfig struct {
	Uploads         string `yaml:"uploads"`
	Summaries       string `yaml:"summaries"`
	KnowledgeSource string `yaml:"knowledge_source"`
	IndexDB         string `yaml:"index_db"`
	ContextFile     string `yaml:"context_file"`
	ContextDocs     string `yaml:"context_docs"`
	WatchInput      string `yaml:"watch_input"`
}

type KnowledgeConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config from path and applies validation and defaults.
// The Gemini API key is taken from the environment afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Paths.Uploads == "" {
		return fmt.Errorf("paths.uploads is required")
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 500
	}
	if c.Gemini.SummaryModel == "" {
		c.Gemini.SummaryModel = "gemini-2.5-pro"
	}
	if c.Gemini.FlashModel == "" {
		c.Gemini.FlashModel = "gemini-2.5-flash"
	}
	if c.Gemini.PollIntervalSecs == 0 {
		c.Gemini.PollIntervalSecs = 2
	}
	if c.Gemini.TimeoutSecs == 0 {
		c.Gemini.TimeoutSecs = 600
	}
	if c.Paths.ContextFile == "" {
		c.Paths.ContextFile = "data/context.json"
	}
	if c.Paths.IndexDB == "" {
		c.Paths.IndexDB = "data/knowledge.db"
	}
	if c.Knowledge.ChunkSize == 0 {
		c.Knowledge.ChunkSize = 1000
	}
	if c.Knowledge.ChunkOverlap == 0 {
		c.Knowledge.ChunkOverlap = 150
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("knowledge.chunk_overlap must be smaller than knowledge.chunk_size")
	}
	if c.Knowledge.TopK == 0 {
		c.Knowledge.TopK = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}
