package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	// Vector store. "mongo" talks to MongoDB Atlas vector search, "weaviate"
	// to a Weaviate instance. Both expose the same upsert/search contract.
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"mongo"`

	MongoURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGODB_DB" default:"kb_rag"`
	MongoCollection string `envconfig:"MONGODB_COL" default:"chunks"`
	VectorIndex     string `envconfig:"VECTOR_INDEX" default:"default"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Document registry.
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"kbrag"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"kbrag"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Gemini. The key is checked on first collaborator use, not at startup.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	EmbedModel   string `envconfig:"GEMINI_EMBED_MODEL" default:"text-embedding-004"`
	GenModel     string `envconfig:"GEMINI_GEN_MODEL" default:"gemini-2.5-flash"`

	// PDF extraction service.
	ExtractorURL string `envconfig:"EXTRACTOR_URL" default:"http://extractor:8000"`

	// Chunking policy.
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Retrieval candidate pool: max(floor, k*factor) candidates are considered
	// before truncating to k. A tuning default, not a contract.
	CandidatePoolFloor  int `envconfig:"CANDIDATE_POOL_FLOOR" default:"50"`
	CandidatePoolFactor int `envconfig:"CANDIDATE_POOL_FACTOR" default:"10"`

	// Server.
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8080"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience.
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell instead; ignore missing .env files.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.VectorBackend != "mongo" && c.VectorBackend != "weaviate" {
		return fmt.Errorf("%w: VECTOR_BACKEND must be \"mongo\" or \"weaviate\", got %q", ErrInvalidValue, c.VectorBackend)
	}
	if c.VectorBackend == "mongo" && c.MongoURI == "" {
		return fmt.Errorf("%w: MONGODB_URI", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalidValue)
	}
	return nil
}
