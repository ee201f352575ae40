package config

import "time"

// Storage drivers supported by the event store
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Config contains all application settings
type Config struct {
	BindPort      int    `mapstructure:"PORT" yaml:"port"`
	BindHost      string `mapstructure:"HOST" yaml:"host"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER" yaml:"storage_driver"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`

	// Queue backend. The broker is selected once at startup.
	BrokerEnabled    bool          `mapstructure:"BROKER_ENABLED" yaml:"broker_enabled"`
	NATSServerURL    string        `mapstructure:"NATS_URL" yaml:"nats_url"`
	EventsSubject    string        `mapstructure:"EVENTS_SUBJECT" yaml:"events_subject"`
	EventsStream     string        `mapstructure:"EVENTS_STREAM" yaml:"events_stream"`
	ConsumerGroup    string        `mapstructure:"CONSUMER_GROUP" yaml:"consumer_group"`
	BrokerAckTimeout time.Duration `mapstructure:"BROKER_ACK_TIMEOUT" yaml:"broker_ack_timeout"`

	// Dispatcher
	PollInterval       time.Duration `mapstructure:"POLL_INTERVAL" yaml:"poll_interval"`
	ProcessingMinDelay time.Duration `mapstructure:"PROCESSING_MIN_DELAY" yaml:"processing_min_delay"`
	ProcessingMaxDelay time.Duration `mapstructure:"PROCESSING_MAX_DELAY" yaml:"processing_max_delay"`

	// Housekeeping, zero disables the periodic clean-up
	CleanupInterval time.Duration `mapstructure:"CLEANUP_INTERVAL" yaml:"cleanup_interval"`

	// Subscriber streams
	SubscriberTimeout time.Duration `mapstructure:"SUBSCRIBER_TIMEOUT" yaml:"subscriber_timeout"`
	SubscriberBuffer  int           `mapstructure:"SUBSCRIBER_BUFFER" yaml:"subscriber_buffer"`
	SSEHeartbeat      time.Duration `mapstructure:"SSE_HEARTBEAT" yaml:"sse_heartbeat"`

	LogLevel  string `mapstructure:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `mapstructure:"LOG_FORMAT" yaml:"log_format"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}
