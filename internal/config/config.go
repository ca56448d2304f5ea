package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// Directory holding vocabulary.json, model.msgpack and manifest.yaml
	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`

	Database struct {
		Path string `yaml:"path"` // SQLite path or PostgreSQL URL
		Type string `yaml:"type"` // "sqlite" or "postgres"
	} `yaml:"database"`

	Training Training `yaml:"training"`
}

// Training holds the pipeline inputs and loop constants
type Training struct {
	CorpusPath     string `yaml:"corpus_path"`
	EmbeddingsPath string `yaml:"embeddings_path"`
	EmbeddingDim   int    `yaml:"embedding_dim"`

	ValidationSplit   float64 `yaml:"validation_split"` // 0 selects 0.1; a held-out set is always used
	SuccessThreshold  float64 `yaml:"success_threshold"`
	TargetSuccessRate float64 `yaml:"target_success_rate"`
	MaxEpochs         int     `yaml:"max_epochs"`
	KeepBest          bool    `yaml:"keep_best"`

	HiddenUnits  int     `yaml:"hidden_units"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"` // 0 selects 32

	Seed int64 `yaml:"seed"` // 0 picks a time-based seed
}

// LoadConfig loads configuration from YAML file. A .env file in the working
// directory is loaded first so ${VAR} references can use it.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.SetDefaults()

	config.Database.Path = os.ExpandEnv(config.Database.Path)
	config.Artifacts.Dir = os.ExpandEnv(config.Artifacts.Dir)
	config.Training.CorpusPath = os.ExpandEnv(config.Training.CorpusPath)
	config.Training.EmbeddingsPath = os.ExpandEnv(config.Training.EmbeddingsPath)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SetDefaults fills zero values
func (c *Config) SetDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "./models"
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/history.db"
	}

	t := &c.Training
	if t.CorpusPath == "" {
		t.CorpusPath = "./datasets/spam-dataset.csv"
	}
	if t.EmbeddingsPath == "" {
		t.EmbeddingsPath = "./datasets/glove.6B.100d.txt"
	}
	if t.EmbeddingDim == 0 {
		t.EmbeddingDim = 100
	}
	if t.ValidationSplit == 0 {
		t.ValidationSplit = 0.1
	}
	if t.SuccessThreshold == 0 {
		t.SuccessThreshold = 0.9
	}
	if t.TargetSuccessRate == 0 {
		t.TargetSuccessRate = 0.95
	}
	if t.MaxEpochs == 0 {
		t.MaxEpochs = 200
	}
	if t.HiddenUnits == 0 {
		t.HiddenUnits = 128
	}
	if t.LearningRate == 0 {
		t.LearningRate = 0.01
	}
	if t.BatchSize == 0 {
		t.BatchSize = 32
	}
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	t := c.Training
	if t.ValidationSplit <= 0 || t.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split %v must be in (0, 1)", t.ValidationSplit)
	}
	if t.EmbeddingDim < 0 || t.BatchSize <= 0 || t.MaxEpochs < 0 {
		return fmt.Errorf("embedding_dim and max_epochs must not be negative, batch_size must be positive")
	}
	return nil
}
