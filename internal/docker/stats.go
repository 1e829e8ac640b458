// internal/docker/stats.go
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"go.uber.org/zap"

	"github.com/rusenback/docker-stats/internal/model"
	"github.com/rusenback/docker-stats/internal/stats"
)

// ErrNoStats is returned when the daemon closes the stats body without a frame,
// which happens for containers that stopped in the meantime
var ErrNoStats = errors.New("no stats returned")

// ErrFrameSkipped marks stream errors that only affect a single frame. The
// stream keeps running after them.
var ErrFrameSkipped = errors.New("stats frame skipped")

// Snapshot fetches a single raw stats frame. The daemon samples twice for
// one-shot requests, so precpu_stats is populated.
func (c *Client) Snapshot(ctx context.Context, id string) (*types.StatsJSON, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for %s: %w", id, err)
	}
	defer resp.Body.Close()

	var raw types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", id, ErrNoStats)
		}
		return nil, fmt.Errorf("failed to decode stats for %s: %w", id, err)
	}

	return &raw, nil
}

// GetContainerStats fetches one snapshot and derives it
func (c *Client) GetContainerStats(ctx context.Context, id string, opts stats.Options) (*model.Stats, error) {
	raw, err := c.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	derived, err := c.deriver.Derive(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to derive stats for %s: %w", id, err)
	}

	return &derived, nil
}

// StreamContainerStats streams derived stats for a container. The daemon
// decides the cadence; every frame is derived on its own.
// Frames that cannot be derived are reported on the error channel wrapped in
// ErrFrameSkipped and the stream carries on. Any other error ends the stream.
// Both channels are closed when the stream ends; the returned func cancels it.
func (c *Client) StreamContainerStats(ctx context.Context, id string, opts stats.Options) (<-chan *model.Stats, <-chan error, func()) {
	statsChan := make(chan *model.Stats)
	errChan := make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(statsChan)
		defer close(errChan)

		send := func(err error) bool {
			select {
			case errChan <- err:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := c.cli.ContainerStats(ctx, id, true)
		if err != nil {
			send(fmt.Errorf("failed to stream stats for %s: %w", id, err))
			return
		}
		defer resp.Body.Close()

		c.logger.Debugw("Stats stream opened", zap.String("container", id), zap.String("os", resp.OSType))

		decoder := json.NewDecoder(resp.Body)
		for {
			var raw types.StatsJSON
			if err := decoder.Decode(&raw); err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					c.logger.Debugw("Stats stream closed", zap.String("container", id))
					return
				}
				send(fmt.Errorf("failed to decode stats for %s: %w", id, err))
				return
			}

			derived, err := c.deriver.Derive(&raw, opts)
			if err != nil {
				c.logger.Debugw("Skipping stats frame", zap.String("container", id), zap.Error(err))
				if !send(fmt.Errorf("%w: failed to derive stats for %s: %w", ErrFrameSkipped, id, err)) {
					return
				}
				continue
			}

			select {
			case statsChan <- &derived:
			case <-ctx.Done():
				return
			}
		}
	}()

	return statsChan, errChan, cancel
}
