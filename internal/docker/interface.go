// internal/docker/interface.go
package docker

import (
	"context"

	"github.com/rusenback/docker-stats/internal/model"
	"github.com/rusenback/docker-stats/internal/stats"
)

// StatsSource is the part of the Docker client the CLI depends on, so it can
// be replaced in tests
type StatsSource interface {
	ListContainers(ctx context.Context, all bool) ([]model.Container, error)
	GetContainerStats(ctx context.Context, id string, opts stats.Options) (*model.Stats, error)
	StreamContainerStats(ctx context.Context, id string, opts stats.Options) (<-chan *model.Stats, <-chan error, func())
	Close() error
}

// Make sure Client implements the interface
var _ StatsSource = (*Client)(nil)
