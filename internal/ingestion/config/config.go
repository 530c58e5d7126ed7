// Package config loads ingestion-service configuration from environment
// variables (with .env support) and an optional YAML file, following the
// pattern established by manifold's internal/config and cmd/orchestrator.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"manifold/internal/ingestion/paths"
)

// LLMCreds is one per-provider credential slot. BuildProvider in llm.go
// turns a slot into an llm.Provider; this type only carries the values.
type LLMCreds struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// GraphCreds configures the graph-store backend connection.
type GraphCreds struct {
	DSN string `yaml:"dsn"`
}

// ObjectStoreCreds configures the S3-compatible bucket files are pulled
// from before crawling, mirroring the field names manifold's own
// config.S3Config call sites use (Endpoint, Region, Bucket, Prefix,
// AccessKey, SecretKey, UsePathStyle).
type ObjectStoreCreds struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// EmbeddingCreds configures the embedding endpoint consumed by
// internal/rag/embedder.NewClient.
type EmbeddingCreds struct {
	BaseURL   string `yaml:"base_url"`
	Path      string `yaml:"path"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	APIHeader string `yaml:"api_header"`
	Dimension int    `yaml:"dimension"`
}

// IngestionConfig bundles everything the Orchestrator needs to run.
type IngestionConfig struct {
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`

	Deployment paths.DeploymentType `yaml:"deployment_type"`

	MaxWorkers       int           `yaml:"max_workers"`
	MaxFileSizeBytes int64         `yaml:"max_file_size_bytes"`
	MaxCrawlDepth    int           `yaml:"max_crawl_depth"`
	EmbedBatchSize   int           `yaml:"embed_batch_size"`
	IndexMinRows     int           `yaml:"index_min_rows"`

	AdaptiveHandlerTimeout time.Duration `yaml:"adaptive_handler_timeout"`
	ClassifierTimeout      time.Duration `yaml:"classifier_timeout"`

	ClassifierLLM   LLMCreds `yaml:"classifier_llm"`
	HandlerGenLLM   LLMCreds `yaml:"handler_gen_llm"`
	StructuredLLM   LLMCreds `yaml:"structured_llm"`
	MetadataLLM     LLMCreds `yaml:"metadata_llm"`
	MetadataModel   string   `yaml:"metadata_model"`

	Graph GraphCreds `yaml:"graph"`

	ObjectStore ObjectStoreCreds `yaml:"object_store"`

	// OCREndpoint, when set, is posted the rasterized first page of any
	// PDF whose text layer comes back empty; see handlers.NewHTTPOCR.
	OCREndpoint string `yaml:"ocr_endpoint"`

	// ImageAnalysisEndpoint, when set, is posted the raw bytes of any
	// image file (OCR text recognition or vision captioning, depending
	// on what's behind the endpoint); see handlers.NewHTTPImageAnalysis.
	ImageAnalysisEndpoint string `yaml:"image_analysis_endpoint"`

	Embedding EmbeddingCreds `yaml:"embedding"`

	VectorBackend string `yaml:"vector_backend"` // "qdrant" | "postgres"
	VectorDSN     string `yaml:"vector_dsn"`

	TabularDSN string `yaml:"tabular_dsn"`

	KafkaBrokers string `yaml:"kafka_brokers"`
	KafkaTopic   string `yaml:"kafka_progress_topic"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Default returns the env-driven default configuration.
func Default() IngestionConfig {
	return IngestionConfig{
		LogPath:  getenv("LOG_PATH", ""),
		LogLevel: getenv("LOG_LEVEL", "info"),

		Deployment: paths.DeploymentType(getenv("DEPLOYMENT_TYPE", "")),

		MaxWorkers:       getenvInt("INGEST_MAX_WORKERS", 10),
		MaxFileSizeBytes: getenvInt64("INGEST_MAX_FILE_SIZE_BYTES", 100*1024*1024),
		MaxCrawlDepth:    getenvInt("INGEST_MAX_CRAWL_DEPTH", 20),
		EmbedBatchSize:   getenvInt("INGEST_EMBED_BATCH_SIZE", 32),
		IndexMinRows:     getenvInt("INGEST_INDEX_MIN_ROWS", 256),

		AdaptiveHandlerTimeout: getenvDuration("INGEST_ADAPTIVE_HANDLER_TIMEOUT", 60*time.Second),
		ClassifierTimeout:      getenvDuration("INGEST_CLASSIFIER_TIMEOUT", 30*time.Second),

		ClassifierLLM: LLMCreds{Provider: getenv("CLASSIFIER_LLM_PROVIDER", ""), APIKey: getenv("CLASSIFIER_LLM_API_KEY", ""), Model: getenv("CLASSIFIER_LLM_MODEL", "")},
		HandlerGenLLM: LLMCreds{Provider: getenv("HANDLER_GEN_LLM_PROVIDER", ""), APIKey: getenv("HANDLER_GEN_LLM_API_KEY", ""), Model: getenv("HANDLER_GEN_LLM_MODEL", "")},
		StructuredLLM: LLMCreds{Provider: getenv("STRUCTURED_LLM_PROVIDER", ""), APIKey: getenv("STRUCTURED_LLM_API_KEY", ""), Model: getenv("STRUCTURED_LLM_MODEL", "")},
		MetadataLLM:   LLMCreds{Provider: getenv("METADATA_LLM_PROVIDER", ""), APIKey: getenv("METADATA_LLM_API_KEY", ""), Model: getenv("METADATA_LLM_MODEL", "")},

		Graph: GraphCreds{DSN: getenv("GRAPH_DSN", "")},

		ObjectStore: ObjectStoreCreds{
			Endpoint:     getenv("OBJECT_STORE_ENDPOINT", ""),
			Region:       getenv("OBJECT_STORE_REGION", "us-east-1"),
			Bucket:       getenv("OBJECT_STORE_BUCKET", ""),
			Prefix:       getenv("OBJECT_STORE_PREFIX", ""),
			AccessKey:    getenv("OBJECT_STORE_ACCESS_KEY", ""),
			SecretKey:    getenv("OBJECT_STORE_SECRET_KEY", ""),
			UsePathStyle: getenv("OBJECT_STORE_USE_PATH_STYLE", "") == "true",
		},

		OCREndpoint:           getenv("OCR_ENDPOINT", ""),
		ImageAnalysisEndpoint: getenv("IMAGE_ANALYSIS_ENDPOINT", ""),

		Embedding: EmbeddingCreds{
			BaseURL:   getenv("EMBEDDING_BASE_URL", ""),
			Path:      getenv("EMBEDDING_PATH", "/embeddings"),
			Model:     getenv("EMBEDDING_MODEL", ""),
			APIKey:    getenv("EMBEDDING_API_KEY", ""),
			APIHeader: getenv("EMBEDDING_API_HEADER", "Authorization"),
			Dimension: getenvInt("EMBEDDING_DIMENSION", 768),
		},

		VectorBackend: getenv("VECTOR_BACKEND", "postgres"),
		VectorDSN:     getenv("VECTOR_DSN", ""),

		TabularDSN: getenv("TABULAR_DSN", ""),

		KafkaBrokers: getenv("KAFKA_BROKERS", ""),
		KafkaTopic:   getenv("KAFKA_PROGRESS_TOPIC", "ingestion.progress"),
	}
}

// Load reads a .env file if present (ignored if absent), then builds the
// env-driven Default(), then overlays an optional YAML file at path.
func Load(yamlPath string) (IngestionConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if yamlPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
