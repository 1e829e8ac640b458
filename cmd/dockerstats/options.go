package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rusenback/docker-stats/internal/docker"
	"github.com/rusenback/docker-stats/internal/stats"
	"github.com/rusenback/docker-stats/internal/storage"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

type options struct {
	docker docker.Config

	utc         bool
	all         bool
	follow      bool
	format      string
	dbPath      string
	history     string
	metricsAddr string
	logLevel    string
}

func newOptions() *options {
	return &options{
		docker:   docker.DefaultConfig(),
		utc:      stats.DefaultOptions().UseUTC,
		format:   formatTable,
		logLevel: "info",
	}
}

func (o *options) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.docker.Host, "host", o.docker.Host, "Docker daemon socket to connect to")
	fs.BoolVar(&o.docker.TLSVerify, "tls-verify", o.docker.TLSVerify, "Use TLS and verify the daemon certificate")
	fs.StringVar(&o.docker.CertPath, "cert-path", o.docker.CertPath, "Directory holding ca.pem, cert.pem and key.pem")
	fs.DurationVar(&o.docker.Timeout, "timeout", o.docker.Timeout, "Timeout for connecting to the daemon and for one-shot stats requests")

	fs.BoolVar(&o.utc, "utc", o.utc, "Stamp records in UTC instead of local time")
	fs.BoolVarP(&o.all, "all", "a", o.all, "Include stopped containers when no container is named")
	fs.BoolVarP(&o.follow, "follow", "f", o.follow, "Keep reading the daemon's stats stream until interrupted")
	fs.StringVar(&o.format, "format", o.format, "Output format: table or json")
	fs.StringVar(&o.dbPath, "db", o.dbPath, "Persist records to this SQLite database (\"default\" for ~/.dockerstats/stats.db)")
	fs.StringVar(&o.history, "history", o.history, "Print stored history of one container for a range (30min, 1hour, 6hours, 1day, 1week)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", o.metricsAddr, "Serve Prometheus metrics on this address while following, e.g. :9323")
	fs.StringVar(&o.logLevel, "log-level", o.logLevel, "Log level: debug, info, warn or error")
}

func (o *options) validate(args []string) error {
	if o.format != formatJSON && o.format != formatTable {
		return fmt.Errorf("--format must be %s or %s, got %q", formatTable, formatJSON, o.format)
	}
	if o.docker.Timeout <= 0 {
		return errors.New("--timeout must be greater than 0")
	}
	if o.docker.TLSVerify && o.docker.CertPath == "" {
		return errors.New("--cert-path is required with --tls-verify")
	}
	if _, err := zapcore.ParseLevel(o.logLevel); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	if o.metricsAddr != "" && !o.follow {
		return errors.New("--metrics-addr needs --follow, one-shot runs exit before they can be scraped")
	}

	if o.history != "" {
		if _, err := storage.ParseTimeRange(o.history); err != nil {
			return fmt.Errorf("--history: %w", err)
		}
		if o.dbPath == "" {
			return errors.New("--history needs --db")
		}
		if len(args) != 1 {
			return errors.New("--history needs exactly one container")
		}
		if o.follow {
			return errors.New("--history and --follow are mutually exclusive")
		}
	}

	return nil
}

func (o *options) statsOptions() stats.Options {
	return stats.Options{UseUTC: o.utc}
}

func (o *options) resolveDBPath() (string, error) {
	if o.dbPath == "default" {
		return storage.DefaultPath()
	}
	return o.dbPath, nil
}

// newLogger logs to stderr so stdout only carries records
func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
