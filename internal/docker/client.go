package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/rusenback/docker-stats/internal/stats"
)

// Config holds the Docker client configuration
type Config struct {
	Host      string
	TLSVerify bool
	CertPath  string
	// Timeout bounds the initial ping and every one-shot stats request
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:    "unix:///var/run/docker.sock",
		Timeout: 30 * time.Second,
	}
}

// Client wraps the Docker API client
type Client struct {
	cli     *client.Client
	timeout time.Duration
	deriver *stats.Deriver
	logger  *zap.SugaredLogger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for stream diagnostics
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used to timestamp derived stats
func WithClock(c clock.PassiveClock) Option {
	return func(cl *Client) {
		cl.deriver = stats.NewDeriver(c)
	}
}

// NewClient connects to the daemon described by cfg and pings it
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	clientOpts := []client.Opt{
		client.WithHost(cfg.Host),
		client.WithAPIVersionNegotiation(),
	}

	if cfg.TLSVerify {
		clientOpts = append(clientOpts, client.WithTLSClientConfig(
			filepath.Join(cfg.CertPath, "ca.pem"),
			filepath.Join(cfg.CertPath, "cert.pem"),
			filepath.Join(cfg.CertPath, "key.pem"),
		))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to ping docker daemon at %s: %w", cfg.Host, err)
	}

	c := &Client{
		cli:     cli,
		timeout: cfg.Timeout,
		deriver: stats.NewDeriver(clock.RealClock{}),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}
