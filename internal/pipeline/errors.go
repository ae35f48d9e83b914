package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig     = errors.New("invalid Kafka configuration provided")
	ErrKafkaFetchFailed       = errors.New("failed to fetch message from Kafka")
	ErrConsumerCreationFailed = errors.New("failed to create consumer")
	ErrConsumerRunFailed      = errors.New("consumer component failed")
	ErrProcessorRunFailed     = errors.New("processor component failed")
	ErrReporterRunFailed      = errors.New("reporter component failed")

	ErrInvalidFrame   = errors.New("invalid frame in batch")
	ErrBatchTimeout   = errors.New("batch evaluation timed out")
	ErrBatchCancelled = errors.New("batch evaluation cancelled")
)
