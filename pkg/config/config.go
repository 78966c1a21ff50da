package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	ADO       ADOConfig
	OpenArena OpenArenaConfig
	Embedding EmbeddingConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Analysis  AnalysisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

// ADOConfig holds the Azure DevOps organization credentials. OrgURL and PAT
// have no defaults; the adapter reports itself unconfigured without them.
type ADOConfig struct {
	OrgURL     string
	Project    string
	PAT        string
	TimeoutSec int
	CacheTTL   int
}

// OpenArenaConfig drives the remote inference similarity strategy. The
// strategy is only selectable when Enabled is set and Token, BaseURL and
// WorkflowID are all present.
type OpenArenaConfig struct {
	Enabled    bool
	BaseURL    string
	Token      string
	WorkflowID string
	TimeoutSec int
	MaxRetries int
}

type EmbeddingConfig struct {
	APIKey string
	Model  string
	Dim    int
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type AnalysisConfig struct {
	SimilarityThreshold float64
	MaxResults          int
	MinCommentScore     int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bug-analyzer")

	viper.SetEnvPrefix("BUG_ANALYZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("ado.timeoutSec", 10)
	viper.SetDefault("ado.cacheTTL", 300)

	viper.SetDefault("openarena.enabled", false)
	viper.SetDefault("openarena.timeoutSec", 30)
	viper.SetDefault("openarena.maxRetries", 3)

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dim", 1536)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "bug_embeddings")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("sqlite.path", "./data/buganalyzer.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("analysis.similarityThreshold", 0.85)
	viper.SetDefault("analysis.maxResults", 10)
	viper.SetDefault("analysis.minCommentScore", 15)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
