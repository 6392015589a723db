// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	RAG           RAGConfig           `mapstructure:"rag"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	VectorStore   VectorStoreConfig   `mapstructure:"vector_store"`
	Registry      RegistryConfig      `mapstructure:"registry"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Tika          TikaConfig          `mapstructure:"tika"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`
	ShutdownGrace int    `mapstructure:"shutdown_grace_seconds"`
	SeedDir       string `mapstructure:"seed_dir"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RAGConfig 控制分块、检索与置信度策略。
type RAGConfig struct {
	ChunkSize             int     `mapstructure:"chunk_size"`
	ChunkOverlap          int     `mapstructure:"chunk_overlap"`
	TopK                  int     `mapstructure:"top_k"`
	QAConfidenceThreshold float64 `mapstructure:"qa_confidence_threshold"`
	MaxDocContext         int     `mapstructure:"max_doc_context"`
	MaxQAContext          int     `mapstructure:"max_qa_context"`
	SystemPrompt          string  `mapstructure:"system_prompt"`
	NotFoundText          string  `mapstructure:"not_found_text"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	SystemMessage  string              `mapstructure:"system_message"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// Provider 为 "openai" 时调用兼容 OpenAI 的接口，为 "hash" 时使用本地特征哈希向量。
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// VectorStoreConfig 选择向量索引后端。Driver: bolt | elasticsearch | pgvector。
type VectorStoreConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

// RegistryConfig 选择文档登记表后端。Driver: json | mysql | sqlite。
type RegistryConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// PostgresConfig 存储 pgvector 所在数据库的连接串。
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// RedisConfig 存储 Redis 的配置，Addr 为空表示不启用向量缓存。
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	TTLHours  int    `mapstructure:"ttl_hours"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// KafkaConfig 存储 Kafka 相关的配置，Brokers 为空表示不发布文档事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，Endpoint 为空表示不归档原始文件。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TikaConfig 存储 Tika 服务器相关的配置，ServerURL 为空时使用内置解析器。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// 环境变量到配置键的映射，环境变量优先于配置文件。
var envBindings = map[string]string{
	"llm.api_key":                 "PERPLEXITY_API_KEY",
	"llm.model":                   "PERPLEXITY_MODEL",
	"vector_store.dir":            "CHROMA_DB_DIR",
	"rag.qa_confidence_threshold": "QA_CONFIDENCE_THRESHOLD",
	"rag.system_prompt":           "SYSTEM_PROMPT",
	"embedding.api_key":           "EMBEDDING_API_KEY",
	"server.port":                 "PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.shutdown_grace_seconds", 5)
	v.SetDefault("server.seed_dir", "initfile")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rag.chunk_size", 500)
	v.SetDefault("rag.chunk_overlap", 50)
	v.SetDefault("rag.top_k", 8)
	v.SetDefault("rag.qa_confidence_threshold", 0.85)
	v.SetDefault("rag.max_doc_context", 3)
	v.SetDefault("rag.max_qa_context", 3)
	v.SetDefault("rag.not_found_text", "Not in policy")

	v.SetDefault("llm.base_url", "https://api.perplexity.ai")
	v.SetDefault("llm.model", "llama-3.1-sonar-large-32k-chat")
	v.SetDefault("llm.system_message", "You are a helpful assistant")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.generation.max_tokens", 500)

	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 384)

	v.SetDefault("vector_store.driver", "bolt")
	v.SetDefault("vector_store.dir", "./db")

	v.SetDefault("registry.driver", "json")

	v.SetDefault("elasticsearch.index_name", "policy_vectors")
	v.SetDefault("postgres.table", "policy_vectors")
	v.SetDefault("redis.ttl_hours", 168)
	v.SetDefault("redis.key_prefix", "emb:")
	v.SetDefault("kafka.topic", "policy-documents")
	v.SetDefault("minio.bucket_name", "policy-uploads")
}

// Load 读取 .env、YAML 配置文件与环境变量，返回合并后的配置。
// configPath 不存在时仅使用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	// .env 可选，缺失不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 文件失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("检查配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = filepath.Join(cfg.VectorStore.Dir, "registry.json")
	}
	return &cfg, nil
}
