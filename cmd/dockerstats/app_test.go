package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/rusenback/docker-stats/internal/docker"
	"github.com/rusenback/docker-stats/internal/metrics"
	"github.com/rusenback/docker-stats/internal/model"
	"github.com/rusenback/docker-stats/internal/stats"
	"github.com/rusenback/docker-stats/internal/storage"
)

type fakeSource struct {
	containers []model.Container
	stats      map[string]model.Stats
	frames     map[string][]any // *model.Stats or error

	mu   sync.Mutex
	opts []stats.Options
}

var _ docker.StatsSource = (*fakeSource)(nil)

func (f *fakeSource) ListContainers(_ context.Context, all bool) ([]model.Container, error) {
	if all {
		return f.containers, nil
	}
	var running []model.Container
	for _, c := range f.containers {
		if c.Running() {
			running = append(running, c)
		}
	}
	return running, nil
}

func (f *fakeSource) GetContainerStats(_ context.Context, id string, opts stats.Options) (*model.Stats, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	s, ok := f.stats[id]
	if !ok {
		return nil, fmt.Errorf("failed to derive stats for %s: %w", id, stats.ErrInvalidLimit)
	}
	return &s, nil
}

func (f *fakeSource) StreamContainerStats(ctx context.Context, id string, _ stats.Options) (<-chan *model.Stats, <-chan error, func()) {
	statsChan := make(chan *model.Stats)
	errChan := make(chan error)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(statsChan)
		defer close(errChan)
		for _, frame := range f.frames[id] {
			switch v := frame.(type) {
			case *model.Stats:
				select {
				case statsChan <- v:
				case <-ctx.Done():
					return
				}
			case error:
				select {
				case errChan <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return statsChan, errChan, cancel
}

func (f *fakeSource) Close() error { return nil }

func sample(cpu float64) model.Stats {
	return model.Stats{
		CPUPercent:    cpu,
		MemoryUsageKB: 512,
		MemoryLimitKB: 1024,
		MemoryPercent: 50,
		NetworkTxKB:   1,
		NetworkRxKB:   2,
		Timestamp:     "2024-05-01T12:00:00",
	}
}

func testApp(t *testing.T, src *fakeSource, configure func(*options)) (*app, *bytes.Buffer) {
	t.Helper()

	opts := newOptions()
	opts.format = formatJSON
	if configure != nil {
		configure(opts)
	}

	var out bytes.Buffer
	return newApp(opts, src, &out, zap.NewNop().Sugar()), &out
}

func decodeRows(t *testing.T, out *bytes.Buffer) []model.ContainerStats {
	t.Helper()

	var rows []model.ContainerStats
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var row model.ContainerStats
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Container < rows[j].Container })
	return rows
}

func TestResolveTargets(t *testing.T) {
	src := &fakeSource{
		containers: []model.Container{
			{ID: "aaa", Name: "web", State: "running"},
			{ID: "bbb", Name: "", State: "running"},
			{ID: "ccc", Name: "old", State: "exited"},
		},
	}

	a, _ := testApp(t, src, nil)
	targets, err := a.resolveTargets(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []target{{id: "aaa", label: "web"}, {id: "bbb", label: "bbb"}}, targets)

	a, _ = testApp(t, src, func(o *options) { o.all = true })
	targets, err = a.resolveTargets(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, targets, 3)

	targets, err = a.resolveTargets(context.Background(), []string{"db"})
	require.NoError(t, err)
	assert.Equal(t, []target{{id: "db", label: "db"}}, targets)
}

func TestOnceJSON(t *testing.T) {
	src := &fakeSource{
		containers: []model.Container{
			{ID: "aaa", Name: "web", State: "running"},
			{ID: "bbb", Name: "db", State: "running"},
		},
		stats: map[string]model.Stats{"aaa": sample(10), "bbb": sample(20)},
	}
	a, out := testApp(t, src, func(o *options) { o.utc = false })

	require.NoError(t, a.run(context.Background(), nil))

	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "db", rows[0].Container)
	assert.Equal(t, 20.0, rows[0].CPUPercent)
	assert.Equal(t, "web", rows[1].Container)
	assert.Equal(t, sample(10), rows[1].Stats)

	for _, o := range src.opts {
		assert.False(t, o.UseUTC)
	}
}

func TestOnceTable(t *testing.T) {
	src := &fakeSource{stats: map[string]model.Stats{"web": sample(12.5)}}
	a, out := testApp(t, src, func(o *options) { o.format = formatTable })

	require.NoError(t, a.run(context.Background(), []string{"web"}))
	assert.Contains(t, out.String(), "CONTAINER")
	assert.Contains(t, out.String(), "12.50%")
}

func TestOnceReportsFailures(t *testing.T) {
	src := &fakeSource{stats: map[string]model.Stats{"web": sample(10)}}
	a, out := testApp(t, src, nil)
	reg := prometheus.NewRegistry()
	a.recorder = metrics.NewRecorder(reg)

	err := a.run(context.Background(), []string{"web", "stopped"})
	assert.ErrorIs(t, err, stats.ErrInvalidLimit)

	rows := decodeRows(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "web", rows[0].Container)

	count, err := testutil.GatherAndCount(reg, "dockerstats_derive_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFollow(t *testing.T) {
	first, second := sample(10), sample(30)
	src := &fakeSource{
		frames: map[string][]any{
			"web": {&first, fmt.Errorf("%w: %w", docker.ErrFrameSkipped, stats.ErrInvalidLimit), &second},
		},
	}
	a, out := testApp(t, src, func(o *options) { o.follow = true })
	reg := prometheus.NewRegistry()
	a.recorder = metrics.NewRecorder(reg)

	done := make(chan error, 1)
	go func() { done <- a.run(context.Background(), []string{"web"}) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return after the stream ended")
	}

	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, 30.0, rows[1].CPUPercent)

	// gauges of a finished stream are dropped, failures are kept
	cpu, err := testutil.GatherAndCount(reg, "dockerstats_container_cpu_percent")
	require.NoError(t, err)
	assert.Zero(t, cpu)
	failures, err := testutil.GatherAndCount(reg, "dockerstats_derive_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func TestFollowReportsStreamFailure(t *testing.T) {
	ok := sample(10)
	src := &fakeSource{
		frames: map[string][]any{
			"web":     {&ok},
			"missing": {errors.New("no such container: missing")},
		},
	}
	a, out := testApp(t, src, func(o *options) { o.follow = true })

	err := a.run(context.Background(), []string{"web", "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats stream of missing failed")
	assert.NotErrorIs(t, err, docker.ErrFrameSkipped)

	// the healthy stream is not cut short by the failed one
	rows := decodeRows(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "web", rows[0].Container)
}

func TestFollowTable(t *testing.T) {
	first, second := sample(10), sample(30)
	src := &fakeSource{
		frames: map[string][]any{
			"web": {&first, &second},
			"db":  {fmt.Errorf("%w: %w", docker.ErrFrameSkipped, stats.ErrInvalidLimit)},
		},
	}
	a, out := testApp(t, src, func(o *options) {
		o.follow = true
		o.format = formatTable
	})
	a.programOptions = []tea.ProgramOption{tea.WithInput(nil)}

	done := make(chan error, 1)
	go func() { done <- a.run(context.Background(), []string{"web", "db"}) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("table follow did not return after the streams ended")
	}

	assert.Contains(t, out.String(), "CONTAINER")
	assert.Contains(t, out.String(), "30.00%")
	assert.Contains(t, out.String(), "Stats error (db)")
}

func TestFollowStopsOnCancel(t *testing.T) {
	src := &blockingSource{fakeSource: &fakeSource{}}
	a, _ := testApp(t, src.fakeSource, func(o *options) { o.follow = true })
	a.source = src

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, []string{"web"}) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return after cancel")
	}
}

// blockingSource streams nothing until its context is done
type blockingSource struct {
	*fakeSource
}

func (b *blockingSource) StreamContainerStats(ctx context.Context, _ string, _ stats.Options) (<-chan *model.Stats, <-chan error, func()) {
	statsChan := make(chan *model.Stats)
	errChan := make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(statsChan)
		defer close(errChan)
		<-ctx.Done()
		errChan <- ctx.Err()
	}()

	return statsChan, errChan, cancel
}

func TestPersistAndHistory(t *testing.T) {
	now := time.Unix(1_700_002_800, 0)
	path := filepath.Join(t.TempDir(), "stats.db")

	store, err := storage.NewStorage(path, storage.WithClock(testingclock.NewFakeClock(now)))
	require.NoError(t, err)

	src := &fakeSource{stats: map[string]model.Stats{"web": sample(25)}}
	a, _ := testApp(t, src, nil)
	a.store = store
	a.clock = testingclock.NewFakePassiveClock(now.Add(-time.Minute))

	require.NoError(t, a.run(context.Background(), []string{"web"}))
	require.NoError(t, store.Close())

	store, err = storage.NewStorage(path, storage.WithClock(testingclock.NewFakeClock(now)))
	require.NoError(t, err)
	defer store.Close()

	var out bytes.Buffer
	h := newApp(newOptions(), nil, &out, zap.NewNop().Sugar())
	h.store = store
	require.NoError(t, h.history("web", storage.Range30Min))
	assert.Contains(t, out.String(), "web (30min)")
	assert.Contains(t, out.String(), "25.00%")
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		flags   []string
		wantErr string
	}{
		{name: "defaults"},
		{name: "json", flags: []string{"--format", "json"}},
		{name: "bad format", flags: []string{"--format", "xml"}, wantErr: "--format"},
		{name: "bad timeout", flags: []string{"--timeout", "0s"}, wantErr: "--timeout"},
		{name: "tls without certs", flags: []string{"--tls-verify"}, wantErr: "--cert-path"},
		{name: "bad log level", flags: []string{"--log-level", "loud"}, wantErr: "--log-level"},
		{name: "history", args: []string{"web"}, flags: []string{"--history", "1hour", "--db", "x.db"}},
		{name: "history without db", args: []string{"web"}, flags: []string{"--history", "1hour"}, wantErr: "--db"},
		{name: "history bad range", args: []string{"web"}, flags: []string{"--history", "2days", "--db", "x.db"}, wantErr: "unknown time range"},
		{name: "history two containers", args: []string{"a", "b"}, flags: []string{"--history", "1day", "--db", "x.db"}, wantErr: "exactly one"},
		{name: "metrics with follow", flags: []string{"--metrics-addr", ":9323", "--follow"}},
		{name: "metrics without follow", flags: []string{"--metrics-addr", ":9323"}, wantErr: "--metrics-addr needs --follow"},
		{name: "history and follow", args: []string{"a"}, flags: []string{"--history", "1day", "--db", "x.db", "-f"}, wantErr: "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions()
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			opts.bindFlags(fs)
			require.NoError(t, fs.Parse(tt.flags))

			err := opts.validate(tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := newOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.bindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	assert.True(t, opts.statsOptions().UseUTC)
	assert.Equal(t, docker.DefaultConfig(), opts.docker)
	assert.Equal(t, formatTable, opts.format)

	require.NoError(t, fs.Parse([]string{"--utc=false"}))
	assert.False(t, opts.statsOptions().UseUTC)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger("loud")
	assert.Error(t, err)
}
