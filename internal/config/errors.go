package config

import "errors"

var (
	ErrReadingConfigFile      = errors.New("failed to read config file")
	ErrUnmarshallingConfig    = errors.New("failed to unmarshal config")
	ErrConfigFileMissing      = errors.New("config file not found")
	ErrInvalidSampleRate      = errors.New("signal sampleRate must be positive")
	ErrInvalidBand            = errors.New("signal cutoffs must satisfy 0 < lowCut < highCut < sampleRate/2")
	ErrInvalidFilterOrder     = errors.New("signal filterOrder must be at least 1")
	ErrInvalidTotalFrames     = errors.New("signal totalFrames must exceed the minimum filter length")
	ErrInvalidThreshold       = errors.New("signal stabilization thresholds must be positive")
	ErrInvalidHeartRateWindow = errors.New("signal heartRateWindow must be positive")
	ErrInvalidROIThreshold    = errors.New("roi thresholds must not be negative")
	ErrInvalidBatchWorkers    = errors.New("server batchWorkers must be positive")
	ErrInvalidBatchTimeout    = errors.New("server batchTimeout must be positive")
	ErrEmptyKafkaBrokers      = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic        = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID      = errors.New("kafka groupID cannot be empty")
	ErrEmptyNATSURL           = errors.New("nats url cannot be empty")
	ErrEmptyMQTTBroker        = errors.New("mqtt broker cannot be empty")
	ErrEmptyStorageDSN        = errors.New("storage dsn cannot be empty")
)
