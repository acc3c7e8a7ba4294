package constants

// Default pipeline configuration values
const (
	DefaultBatchQueueWorkers   = 3
	DefaultMediaQueueWorkers   = 5
	DefaultEmbeddingChunkSize  = 64
	DefaultEventBufferSize     = 256
	DefaultRetryBackoffMs      = 1000
	DefaultMaxBackoffMs        = 60000
	DefaultMaxAttempts         = 5
	DefaultServerPort          = 8084
)

// Default takeout configuration values
const (
	DefaultTakeoutPageLimit       = 100
	DefaultTakeoutRateIntervalMs  = 1000
	DefaultTakeoutProgressCeiling = 100
)

// Vector dimensions supported by the denormalized storage layout.
// Exactly one of these columns is populated per message.
const (
	VectorDim768  = 768
	VectorDim1024 = 1024
	VectorDim1536 = 1536
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultEmbeddingTimeoutSec   = 60
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultFeedPollIntervalSec   = 5
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	ServerErrorChannelSize       = 1
)

// Encryption settings for at-rest column encryption
const (
	EncryptionSalt       = "chatvault-message-store-v1"
	EncryptionLookupSalt = "chatvault-lookup-v1"
)
