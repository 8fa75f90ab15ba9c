package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zoobzio/beacon"
	"github.com/zoobzio/beacon/experiments"
	bnats "github.com/zoobzio/beacon/pkg/nats"
	bredis "github.com/zoobzio/beacon/pkg/redis"
	"github.com/zoobzio/beacon/pkg/zaplog"
	"go.uber.org/zap"
)

const usage = `Serves one experiment to a control peer over NATS request/reply.

Arguments:
  experiment_module     name of a registered experiment module; the module
                        must define exactly one experiment
  scheduling_mode_type  time slot the experiment runs in: common, special
                        or discretionary

Every flag can also be set in the config file or as a BEACON_* environment
variable, e.g. BEACON_TRANSPORT_URL for --nats-url.`

// deps are the collaborators the command reaches outside the process through.
type deps struct {
	registry *beacon.Registry
	connect  func(url string) (*nats.Conn, error)
	logger   func(level string) (*zap.Logger, error)
}

func defaultDeps() deps {
	r := beacon.NewRegistry()
	experiments.Register(r)
	return deps{
		registry: r,
		connect: func(url string) (*nats.Conn, error) {
			return nats.Connect(url, nats.Name("beacon"))
		},
		logger: zaplog.New,
	}
}

func newRootCmd(d deps) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "beacon [flags] experiment_module scheduling_mode_type",
		Short: "Experiment distribution service for a radar control process",
		Long:  usage,
		Example: `  beacon normalscan common
  beacon --feedback file --feedback-path /var/run/radar/feedback.json adaptivescan special`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, d)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "config file (yaml)")
	flags.String("peer", beacon.DefaultPeer, "identity of the control peer")
	flags.String("codec", "json", "snapshot wire format: json or yaml")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Int("error-history", 0, "number of recent faults to retain")
	flags.String("nats-url", "", "NATS server URL")
	flags.String("subject-prefix", "", "prefix of the peer request subject")
	flags.String("feedback", "none", "feedback source: none, file, redis, nats")
	flags.String("feedback-path", "", "feedback file for --feedback file")
	flags.String("redis-addr", "", "Redis address for --feedback redis")
	flags.String("kv-bucket", "", "JetStream KV bucket for --feedback nats")
	flags.String("feedback-key", "", "Redis or KV key holding feedback")
	flags.Int("send-attempts", beacon.DefaultSendAttempts, "attempts per reply before giving up")

	for key, flag := range map[string]string{
		"config":                   "config",
		"peer":                     "peer",
		"codec":                    "codec",
		"log_level":                "log-level",
		"error_history":            "error-history",
		"transport.url":            "nats-url",
		"transport.subject_prefix": "subject-prefix",
		"feedback.kind":            "feedback",
		"feedback.path":            "feedback-path",
		"feedback.redis_addr":      "redis-addr",
		"feedback.bucket":          "kv-bucket",
		"feedback.key":             "feedback-key",
		"send.attempts":            "send-attempts",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

// loadConfig layers defaults, the config file, environment and flags, then
// takes module and mode from the positional arguments.
func loadConfig(v *viper.Viper, args []string) (beacon.Config, error) {
	defaults := beacon.DefaultConfig()
	v.SetDefault("peer", defaults.Peer)
	v.SetDefault("codec", defaults.Codec)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("error_history", defaults.ErrorHistory)
	v.SetDefault("transport.url", defaults.Transport.URL)
	v.SetDefault("transport.subject_prefix", defaults.Transport.SubjectPrefix)
	v.SetDefault("feedback.kind", defaults.Feedback.Kind)
	v.SetDefault("send.attempts", defaults.Send.Attempts)
	v.SetDefault("send.delay", defaults.Send.Delay)
	v.SetDefault("send.max_delay", defaults.Send.MaxDelay)

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return beacon.Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg beacon.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return beacon.Config{}, fmt.Errorf("decode config: %w", err)
	}

	mode, err := beacon.ParseSchedulingMode(args[1])
	if err != nil {
		return beacon.Config{}, err
	}
	cfg.Module = args[0]
	cfg.Mode = mode

	if err := cfg.Validate(); err != nil {
		return beacon.Config{}, err
	}
	return cfg, nil
}

// run loads the experiment, wires the transport and feedback source, and
// serves until ctx is canceled.
func run(ctx context.Context, cfg beacon.Config, d deps) error {
	logger, err := d.logger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	zaplog.Attach(logger)

	// The module is resolved before anything is connected; a bad module
	// never reaches the serving loop.
	exp, err := d.registry.Load(ctx, cfg.Module)
	if err != nil {
		return err
	}
	if _, ok := exp.(beacon.Updater); ok {
		logger.Debug("experiment accepts feedback updates", zap.String("module", cfg.Module))
	} else {
		logger.Debug("experiment is static", zap.String("module", cfg.Module))
	}

	codec, ok := beacon.CodecByName(cfg.Codec)
	if !ok {
		return fmt.Errorf("unknown codec %q", cfg.Codec)
	}

	nc, err := d.connect(cfg.Transport.URL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Transport.URL, err)
	}
	defer nc.Close()

	transport := bnats.NewTransport(nc, cfg.Transport.SubjectPrefix)
	defer transport.Close() //nolint:errcheck // connection is closing anyway
	if err := transport.Subscribe(cfg.Peer); err != nil {
		return err
	}

	feedback, cleanup, err := feedbackSource(ctx, cfg.Feedback, nc)
	if err != nil {
		return err
	}
	defer cleanup()

	c := beacon.New(exp, cfg.Mode, transport).
		Peer(cfg.Peer).
		Codec(codec).
		SendPolicy(cfg.Send.Attempts, cfg.Send.Delay, cfg.Send.MaxDelay).
		ErrorHistorySize(cfg.ErrorHistory).
		OnStop(func(s beacon.State) {
			logger.Info("serving stopped", zap.Stringer("state", s))
		})
	if feedback != nil {
		c.Feedback(feedback)
	}

	logger.Info("serving experiment",
		zap.String("module", cfg.Module),
		zap.Stringer("mode", cfg.Mode),
		zap.String("subject", bnats.Subject(cfg.Transport.SubjectPrefix, cfg.Peer)),
	)
	return c.Run(ctx)
}

// feedbackSource builds the configured source. A nil source means the
// experiment runs without updates.
func feedbackSource(ctx context.Context, cfg beacon.FeedbackConfig, nc *nats.Conn) (beacon.FeedbackSource, func(), error) {
	noop := func() {}
	switch cfg.Kind {
	case "", "none":
		return nil, noop, nil

	case "file":
		return beacon.NewWatchedFeedback(beacon.NewFileWatcher(cfg.Path)), noop, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		return beacon.NewWatchedFeedback(bredis.New(client, cfg.Key)), func() { client.Close() }, nil

	case "nats":
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, noop, fmt.Errorf("open jetstream: %w", err)
		}
		kv, err := js.KeyValue(ctx, cfg.Bucket)
		if err != nil {
			return nil, noop, fmt.Errorf("open kv bucket %s: %w", cfg.Bucket, err)
		}
		return beacon.NewWatchedFeedback(bnats.NewKVWatcher(kv, cfg.Key)), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown feedback kind %q", cfg.Kind)
	}
}
