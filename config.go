package beacon

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the process configuration of a coordinator. It is built once at
// startup and handed to every component that needs part of it.
type Config struct {
	// Module names the registered experiment module to run.
	Module string `mapstructure:"experiment_module" yaml:"experiment_module" validate:"required"`

	// Mode is the scheduling mode attached to the experiment.
	Mode SchedulingMode `mapstructure:"scheduling_mode_type" yaml:"scheduling_mode_type" validate:"required,oneof=common special discretionary"`

	// Peer is the identity of the control process requests come from.
	Peer string `mapstructure:"peer" yaml:"peer" validate:"required"`

	// Codec is the snapshot wire format: json or yaml.
	Codec string `mapstructure:"codec" yaml:"codec" validate:"oneof=json yaml"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// ErrorHistory is the number of recent faults kept for inspection.
	ErrorHistory int `mapstructure:"error_history" yaml:"error_history" validate:"gte=0"`

	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Feedback  FeedbackConfig  `mapstructure:"feedback" yaml:"feedback"`
	Send      SendConfig      `mapstructure:"send" yaml:"send"`
}

// TransportConfig addresses the request/reply channel.
type TransportConfig struct {
	// URL is the NATS server URL.
	URL string `mapstructure:"url" yaml:"url" validate:"required"`

	// SubjectPrefix is joined with the peer identity to form the request subject.
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix" validate:"required"`
}

// FeedbackConfig selects where feedback for experiment updates comes from.
type FeedbackConfig struct {
	// Kind is one of none, file, redis, nats.
	Kind string `mapstructure:"kind" yaml:"kind" validate:"oneof=none file redis nats"`

	// Path is the watched file for kind "file".
	Path string `mapstructure:"path" yaml:"path" validate:"required_if=Kind file"`

	// RedisAddr is the Redis address for kind "redis".
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr" validate:"required_if=Kind redis"`

	// Bucket is the JetStream KV bucket for kind "nats".
	Bucket string `mapstructure:"bucket" yaml:"bucket" validate:"required_if=Kind nats"`

	// Key is the Redis key or KV key holding feedback.
	Key string `mapstructure:"key" yaml:"key"`
}

// SendConfig is the retry policy for replies the transport refuses.
type SendConfig struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts" validate:"gte=1"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay" validate:"gte=0"`
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"gtefield=Delay"`
}

// DefaultConfig returns a Config with every optional field set.
func DefaultConfig() Config {
	return Config{
		Peer:     DefaultPeer,
		Codec:    "json",
		LogLevel: "info",
		Transport: TransportConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "beacon",
		},
		Feedback: FeedbackConfig{Kind: "none"},
		Send: SendConfig{
			Attempts: DefaultSendAttempts,
			Delay:    DefaultSendDelay,
			MaxDelay: DefaultSendMaxDelay,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate implements the checks struct tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (c.Feedback.Kind == "redis" || c.Feedback.Kind == "nats") && c.Feedback.Key == "" {
		return fmt.Errorf("invalid config: feedback.key is required for %s feedback", c.Feedback.Kind)
	}
	return nil
}
