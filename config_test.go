package beacon

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Module = "normalscan"
	cfg.Mode = ModeCommon
	return cfg
}

func TestConfig_DefaultsNeedModuleAndMode(t *testing.T) {
	if err := DefaultConfig().Validate(); err == nil {
		t.Error("expected defaults without module and mode to be invalid")
	}
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "urgent" }, "Mode"},
		{"unknown codec", func(c *Config) { c.Codec = "toml" }, "Codec"},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, "LogLevel"},
		{"negative history", func(c *Config) { c.ErrorHistory = -1 }, "ErrorHistory"},
		{"missing url", func(c *Config) { c.Transport.URL = "" }, "URL"},
		{"file feedback without path", func(c *Config) { c.Feedback.Kind = "file" }, "Path"},
		{"redis feedback without addr", func(c *Config) {
			c.Feedback.Kind = "redis"
			c.Feedback.Key = "feedback"
		}, "RedisAddr"},
		{"redis feedback without key", func(c *Config) {
			c.Feedback.Kind = "redis"
			c.Feedback.RedisAddr = "localhost:6379"
		}, "feedback.key"},
		{"nats feedback without bucket", func(c *Config) {
			c.Feedback.Kind = "nats"
			c.Feedback.Key = "feedback"
		}, "Bucket"},
		{"zero attempts", func(c *Config) { c.Send.Attempts = 0 }, "Attempts"},
		{"max delay below delay", func(c *Config) {
			c.Send.Delay = time.Second
			c.Send.MaxDelay = time.Millisecond
		}, "MaxDelay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error mentioning %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestConfig_FeedbackKinds(t *testing.T) {
	cfg := validConfig()
	cfg.Feedback = FeedbackConfig{Kind: "file", Path: "/var/run/beacon/feedback.json"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("file feedback: %v", err)
	}

	cfg.Feedback = FeedbackConfig{Kind: "redis", RedisAddr: "localhost:6379", Key: "beacon:feedback"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis feedback: %v", err)
	}

	cfg.Feedback = FeedbackConfig{Kind: "nats", Bucket: "beacon", Key: "feedback"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("nats feedback: %v", err)
	}
}
