package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/rusenback/docker-stats/internal/docker"
	"github.com/rusenback/docker-stats/internal/metrics"
	"github.com/rusenback/docker-stats/internal/model"
	"github.com/rusenback/docker-stats/internal/render"
	"github.com/rusenback/docker-stats/internal/storage"
	"github.com/rusenback/docker-stats/internal/tui"
)

// maxConcurrentFetches bounds parallel one-shot requests against the daemon
const maxConcurrentFetches = 8

// app wires the stats source to the configured sinks
type app struct {
	opts     *options
	source   docker.StatsSource
	store    *storage.Storage
	recorder *metrics.Recorder
	clock    clock.PassiveClock
	logger   *zap.SugaredLogger

	outMu sync.Mutex
	out   io.Writer
	json  *render.JSONWriter

	// programOptions are appended to the table program's options
	programOptions []tea.ProgramOption
}

func newApp(opts *options, source docker.StatsSource, out io.Writer, logger *zap.SugaredLogger) *app {
	return &app{
		opts:   opts,
		source: source,
		clock:  clock.RealClock{},
		logger: logger,
		out:    out,
		json:   render.NewJSONWriter(out),
	}
}

// target is a container to sample, addressed by ID and labeled by name
type target struct {
	id    string
	label string
}

// resolveTargets returns the named containers, or every running container
// (every container with --all) when none are named
func (a *app) resolveTargets(ctx context.Context, names []string) ([]target, error) {
	if len(names) > 0 {
		targets := make([]target, 0, len(names))
		for _, name := range names {
			targets = append(targets, target{id: name, label: name})
		}
		return targets, nil
	}

	containers, err := a.source.ListContainers(ctx, a.opts.all)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	targets := make([]target, 0, len(containers))
	for _, c := range containers {
		if !c.Running() && !a.opts.all {
			continue
		}
		label := c.Name
		if label == "" {
			label = c.ID
		}
		targets = append(targets, target{id: c.ID, label: label})
	}
	return targets, nil
}

// once derives one record per target and prints them. Targets that fail are
// logged and skipped; the combined error is returned after printing.
func (a *app) once(ctx context.Context, targets []target) error {
	results := make([]*model.ContainerStats, len(targets))
	errs := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, t := range targets {
		g.Go(func() error {
			s, err := a.source.GetContainerStats(gctx, t.id, a.opts.statsOptions())
			if err != nil {
				a.failed(t, err)
				errs[i] = err
				return nil
			}
			results[i] = &model.ContainerStats{Container: t.label, Stats: *s}
			a.record(t, *s)
			return nil
		})
	}
	g.Wait()

	rows := make([]model.ContainerStats, 0, len(results))
	for _, r := range results {
		if r != nil {
			rows = append(rows, *r)
		}
	}
	if err := a.print(rows...); err != nil {
		return err
	}

	return errors.Join(errs...)
}

// follow consumes the daemon's stats stream of every target until ctx is
// done or all streams end. Tables are redrawn in place, JSON is written one
// line per record.
func (a *app) follow(ctx context.Context, targets []target) error {
	if a.opts.format == formatTable {
		return a.followTable(ctx, targets)
	}
	return a.followStreams(ctx, targets, func(ev tui.Event) error {
		if ev.Stats == nil {
			return nil
		}
		return a.json.Write(model.ContainerStats{Container: ev.Container, Stats: *ev.Stats})
	})
}

// followTable runs the stats table as a bubbletea program fed by the streams
func (a *app) followTable(ctx context.Context, targets []target) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tui.Event)
	streamErr := make(chan error, 1)
	go func() {
		err := a.followStreams(ctx, targets, func(ev tui.Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(events)
		streamErr <- err
	}()

	opts := append([]tea.ProgramOption{tea.WithOutput(a.out)}, a.programOptions...)
	p := tea.NewProgram(tui.NewModel(events), opts...)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	cancel()
	if serr := <-streamErr; err == nil {
		err = serr
	}
	return err
}

// followStreams follows every target independently; one failed stream does
// not stop the others. The combined error of failed streams is returned.
func (a *app) followStreams(ctx context.Context, targets []target, emit func(tui.Event) error) error {
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			errs[i] = a.followOne(ctx, t, emit)
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

// followOne emits every record of one stream. Skipped frames are reported
// and the stream goes on; any other error is returned once the stream ends.
func (a *app) followOne(ctx context.Context, t target, emit func(tui.Event) error) error {
	statsChan, errChan, cancel := a.source.StreamContainerStats(ctx, t.id, a.opts.statsOptions())
	defer cancel()
	defer func() {
		if a.recorder != nil {
			a.recorder.Forget(t.label)
		}
	}()

	var streamErr error
	for statsChan != nil || errChan != nil {
		var ev tui.Event
		select {
		case s, ok := <-statsChan:
			if !ok {
				statsChan = nil
				continue
			}
			a.record(t, *s)
			ev = tui.Event{Container: t.label, Stats: s}

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			a.failed(t, err)
			if !errors.Is(err, docker.ErrFrameSkipped) {
				streamErr = fmt.Errorf("stats stream of %s failed: %w", t.label, err)
			}
			ev = tui.Event{Container: t.label, Err: err}

		case <-ctx.Done():
			return nil
		}

		if err := emit(ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if streamErr != nil {
		return streamErr
	}
	a.logger.Infow("Stats stream ended", zap.String("container", t.label))
	return nil
}

// history prints the stored data points of one container
func (a *app) history(container string, timeRange storage.TimeRange) error {
	points, err := a.store.Query(container, timeRange)
	if err != nil {
		return fmt.Errorf("failed to query history of %s: %w", container, err)
	}

	a.outMu.Lock()
	defer a.outMu.Unlock()
	_, err = io.WriteString(a.out, render.History(container, timeRange, points, a.opts.utc))
	return err
}

// record hands a derived record to the configured sinks
func (a *app) record(t target, s model.Stats) {
	if a.store != nil {
		a.store.Write(&storage.Entry{
			ContainerID: t.label,
			RecordedAt:  a.clock.Now(),
			Stats:       s,
		})
	}
	if a.recorder != nil {
		a.recorder.Observe(t.label, s)
	}
}

func (a *app) failed(t target, err error) {
	a.logger.Warnw("Failed to get stats", zap.String("container", t.label), zap.Error(err))
	if a.recorder != nil {
		a.recorder.ObserveError(t.label, err)
	}
}

func (a *app) print(rows ...model.ContainerStats) error {
	if len(rows) == 0 {
		return nil
	}

	if a.opts.format == formatJSON {
		for _, row := range rows {
			if err := a.json.Write(row); err != nil {
				return err
			}
		}
		return nil
	}

	a.outMu.Lock()
	defer a.outMu.Unlock()
	_, err := io.WriteString(a.out, render.Table(rows))
	return err
}
