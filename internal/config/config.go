package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"chatvault/internal/constants"
	"chatvault/internal/models"
	"chatvault/internal/security"
)

var (
	ErrMissingPlatformURL = models.ConfigError{Message: "missing platform API URL"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingMediaDir    = models.ConfigError{Message: "missing media store directory"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Platform.APIBaseURL == "" {
		return ErrMissingPlatformURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Media.StoreDir == "" {
		return ErrMissingMediaDir
	}
	if c.TenantID == "" {
		return models.ConfigError{Message: "tenant_id is required"}
	}

	switch c.Embedding.Dimension {
	case 0:
		c.Embedding.Dimension = constants.VectorDim768
	case constants.VectorDim768, constants.VectorDim1024, constants.VectorDim1536:
	default:
		return models.ConfigError{Message: fmt.Sprintf("unsupported embedding dimension %d", c.Embedding.Dimension)}
	}
	if c.Embedding.PhotoEmbedding && c.Embedding.VisionModel == "" {
		return models.ConfigError{Message: "photo embedding requires a vision model"}
	}

	if c.Queues.BatchWorkers <= 0 {
		c.Queues.BatchWorkers = constants.DefaultBatchQueueWorkers
	}
	if c.Queues.MediaWorkers <= 0 {
		c.Queues.MediaWorkers = constants.DefaultMediaQueueWorkers
	}
	if c.Embedding.ChunkSize <= 0 {
		c.Embedding.ChunkSize = constants.DefaultEmbeddingChunkSize
	}
	if c.Takeout.PageLimit <= 0 {
		c.Takeout.PageLimit = constants.DefaultTakeoutPageLimit
	}
	if c.Takeout.RateIntervalMs <= 0 {
		c.Takeout.RateIntervalMs = constants.DefaultTakeoutRateIntervalMs
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Feed.PollIntervalSec <= 0 {
		c.Feed.PollIntervalSec = constants.DefaultFeedPollIntervalSec
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("CHATVAULT_PLATFORM_API_URL"); url != "" {
		c.Platform.APIBaseURL = url
	}
	if path := os.Getenv("CHATVAULT_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("CHATVAULT_MEDIA_DIR"); dir != "" {
		c.Media.StoreDir = dir
	}
	if url := os.Getenv("CHATVAULT_EMBEDDING_URL"); url != "" {
		c.Embedding.BaseURL = url
	}
	if tenant := os.Getenv("CHATVAULT_TENANT_ID"); tenant != "" {
		c.TenantID = tenant
	}
	if port := os.Getenv("CHATVAULT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		}
	}
}
