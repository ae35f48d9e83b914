package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sanspareilsmyn/vitalens/internal/dsp"
)

const (
	defaultServerAddr        = ":8080"
	defaultBatchWorkers      = 4
	defaultBatchTimeout      = 2 * time.Minute
	defaultMaxBodyBytes      = 64 << 20
	defaultShutdownTimeout   = 5 * time.Second
	defaultSessionIdleTTL    = 10 * time.Minute
	defaultSessionSweepEvery = 1 * time.Minute

	defaultSampleRate       = 30.0
	defaultLowCut           = 0.85
	defaultHighCut          = 2.3
	defaultFilterOrder      = 4
	defaultSignalStrength   = 0.1
	defaultTotalFrames      = 600
	defaultHeartRateWindow  = 100
	defaultHeartRateMin     = 500
	defaultHRVMin           = 510
	defaultRespirationMin   = 520
	defaultSpO2Min          = 530
	defaultPressureMin      = 540
	defaultConfidencePct    = 8.0
	defaultMovementPixels   = 15.0
	defaultKafkaGroupID     = "vitalens-default-group"
	defaultKafkaTopic       = "vitalens-frames"
	defaultKafkaResults     = "vitalens-reports"
	defaultNATSSubject      = "vitalens.reports"
	defaultMQTTClientID     = "vitalens"
	defaultMQTTTopic        = "vitalens/reports"
	defaultMQTTQoS          = 1
	defaultStorageMaxOpen   = 20
	defaultStorageMaxIdle   = 5
	defaultStorageLifetime  = time.Hour
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
	defaultLogFileEnabled   = false
	defaultLogDirectory     = "log"
	defaultLogFilename      = "vitalens.log"
	defaultLogMaxSizeMB     = 100
	defaultLogMaxBackups    = 3
	defaultLogMaxAgeDays    = 7
	defaultLogCompress      = false

	// Environment variable prefix
	envPrefix = "VITALENS"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Signal  SignalConfig  `mapstructure:"signal"`
	ROI     ROIConfig     `mapstructure:"roi"`
	Session SessionConfig `mapstructure:"session"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	NATS    NATSConfig    `mapstructure:"nats"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	BatchWorkers    int           `mapstructure:"batchWorkers"`
	BatchTimeout    time.Duration `mapstructure:"batchTimeout"`
	MaxBodyBytes    int64         `mapstructure:"maxBodyBytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// SignalConfig tunes the rPPG pipeline. Frequencies are in Hz.
type SignalConfig struct {
	SampleRate              float64    `mapstructure:"sampleRate"`
	LowCut                  float64    `mapstructure:"lowCut"`
	HighCut                 float64    `mapstructure:"highCut"`
	FilterOrder             int        `mapstructure:"filterOrder"`
	SignalStrengthThreshold float64    `mapstructure:"signalStrengthThreshold"`
	TotalFrames             int        `mapstructure:"totalFrames"`     // accepted frames that complete a session
	HeartRateWindow         int        `mapstructure:"heartRateWindow"` // trailing bpm estimates averaged
	Thresholds              Thresholds `mapstructure:"thresholds"`
}

// Thresholds are the per-metric series lengths a running average needs before it moves.
type Thresholds struct {
	HeartRate   int `mapstructure:"heartRate"`
	HRV         int `mapstructure:"hrv"`
	SpO2        int `mapstructure:"spo2"`
	Respiration int `mapstructure:"respiration"`
	Pressure    int `mapstructure:"pressure"`
}

type ROIConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidenceThreshold"` // percent of the frame area
	MovementThreshold   float64 `mapstructure:"movementThreshold"`   // pixels of centre displacement
}

type SessionConfig struct {
	IdleTTL    time.Duration `mapstructure:"idleTTL"`
	SweepEvery time.Duration `mapstructure:"sweepEvery"`
}

type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	GroupID      string   `mapstructure:"groupID"`
	ResultsTopic string   `mapstructure:"resultsTopic"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"clientID"`
	Topic    string `mapstructure:"topic"`
	QoS      int    `mapstructure:"qos"`
}

type StorageConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	return decode(v)
}

// Default returns the built-in configuration with environment overrides applied
// and no file read.
func Default() (*Config, error) {
	v := viper.New()
	configureViper(v, "")
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:8001"})
	v.SetDefault("server.batchWorkers", defaultBatchWorkers)
	v.SetDefault("server.batchTimeout", defaultBatchTimeout)
	v.SetDefault("server.maxBodyBytes", defaultMaxBodyBytes)
	v.SetDefault("server.shutdownTimeout", defaultShutdownTimeout)

	v.SetDefault("signal.sampleRate", defaultSampleRate)
	v.SetDefault("signal.lowCut", defaultLowCut)
	v.SetDefault("signal.highCut", defaultHighCut)
	v.SetDefault("signal.filterOrder", defaultFilterOrder)
	v.SetDefault("signal.signalStrengthThreshold", defaultSignalStrength)
	v.SetDefault("signal.totalFrames", defaultTotalFrames)
	v.SetDefault("signal.heartRateWindow", defaultHeartRateWindow)
	v.SetDefault("signal.thresholds.heartRate", defaultHeartRateMin)
	v.SetDefault("signal.thresholds.hrv", defaultHRVMin)
	v.SetDefault("signal.thresholds.spo2", defaultSpO2Min)
	v.SetDefault("signal.thresholds.respiration", defaultRespirationMin)
	v.SetDefault("signal.thresholds.pressure", defaultPressureMin)

	v.SetDefault("roi.confidenceThreshold", defaultConfidencePct)
	v.SetDefault("roi.movementThreshold", defaultMovementPixels)

	v.SetDefault("session.idleTTL", defaultSessionIdleTTL)
	v.SetDefault("session.sweepEvery", defaultSessionSweepEvery)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", defaultKafkaTopic)
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("kafka.resultsTopic", defaultKafkaResults)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.subject", defaultNATSSubject)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.clientID", defaultMQTTClientID)
	v.SetDefault("mqtt.topic", defaultMQTTTopic)
	v.SetDefault("mqtt.qos", defaultMQTTQoS)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.maxOpenConns", defaultStorageMaxOpen)
	v.SetDefault("storage.maxIdleConns", defaultStorageMaxIdle)
	v.SetDefault("storage.connMaxLifetime", defaultStorageLifetime)

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if err := ValidateSignal(cfg.Signal); err != nil {
		return err
	}
	if cfg.ROI.ConfidenceThreshold < 0 || cfg.ROI.MovementThreshold < 0 {
		return ErrInvalidROIThreshold
	}
	if cfg.Server.BatchWorkers <= 0 {
		return ErrInvalidBatchWorkers
	}
	if cfg.Server.BatchTimeout <= 0 {
		return ErrInvalidBatchTimeout
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return ErrEmptyKafkaBrokers
		}
		if cfg.Kafka.Topic == "" {
			return ErrEmptyKafkaTopic
		}
		if cfg.Kafka.GroupID == "" {
			return ErrEmptyKafkaGroupID
		}
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return ErrEmptyNATSURL
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return ErrEmptyMQTTBroker
	}
	if cfg.Storage.Enabled && cfg.Storage.DSN == "" {
		return ErrEmptyStorageDSN
	}
	return nil
}

// ValidateSignal checks the signal-processing parameters on their own so callers
// building a SignalConfig by hand get the same guarantees as Load.
func ValidateSignal(s SignalConfig) error {
	if s.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if s.LowCut <= 0 || s.HighCut <= s.LowCut || s.HighCut >= s.SampleRate/2 {
		return ErrInvalidBand
	}
	if s.FilterOrder < 1 {
		return ErrInvalidFilterOrder
	}
	if s.TotalFrames <= dsp.MinFilterLength(s.FilterOrder) {
		return ErrInvalidTotalFrames
	}
	t := s.Thresholds
	if t.HeartRate <= 0 || t.HRV <= 0 || t.SpO2 <= 0 || t.Respiration <= 0 || t.Pressure <= 0 {
		return ErrInvalidThreshold
	}
	if s.HeartRateWindow <= 0 {
		return ErrInvalidHeartRateWindow
	}
	return nil
}
